package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/salon-events/salonbridge/internal/auth"
	"github.com/salon-events/salonbridge/internal/bookings"
	"github.com/salon-events/salonbridge/internal/dashboard"
	"github.com/salon-events/salonbridge/internal/installs"
	"github.com/salon-events/salonbridge/internal/notify"
	"github.com/salon-events/salonbridge/internal/platform/middleware"
	"github.com/salon-events/salonbridge/internal/platform/telemetry"
	"github.com/salon-events/salonbridge/internal/wixapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings struct {
	list        []bookings.Booking
	listErr     error
	lastFilter  bookings.ListFilter
	lastTenant  string
	reminderErr error
	reminded    []string
}

func (f *fakeBookings) List(_ context.Context, instanceID string, filter bookings.ListFilter) ([]bookings.Booking, error) {
	f.lastTenant = instanceID
	f.lastFilter = filter
	return f.list, f.listErr
}

func (f *fakeBookings) Get(_ context.Context, instanceID, bookingID string) (*bookings.Booking, error) {
	f.lastTenant = instanceID
	for _, b := range f.list {
		if b.ID == bookingID {
			return &b, nil
		}
	}
	return nil, bookings.ErrNotFound
}

func (f *fakeBookings) SendManualReminder(_ context.Context, instanceID, bookingID string) error {
	if f.reminderErr != nil {
		return f.reminderErr
	}
	f.reminded = append(f.reminded, instanceID+"/"+bookingID)
	return nil
}

type fakeEvents struct {
	events    []wixapi.Event
	err       error
	lastFrom  time.Time
	lastLimit int

	registrations []wixapi.Registration
	regErr        error
	lastEventID   string
}

func (f *fakeEvents) QueryEvents(_ context.Context, _ string, from time.Time, limit int) ([]wixapi.Event, error) {
	f.lastFrom, f.lastLimit = from, limit
	return f.events, f.err
}

func (f *fakeEvents) ListRegistrations(_ context.Context, _ string, eventID string) ([]wixapi.Registration, error) {
	f.lastEventID = eventID
	return f.registrations, f.regErr
}

type fakeInstalls struct {
	list []installs.Install
	err  error
}

func (f *fakeInstalls) List(context.Context) ([]installs.Install, error) {
	return f.list, f.err
}

type fakeMailer struct {
	to, subject, body string
	err               error
}

func (m *fakeMailer) SendTest(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

type harness struct {
	bookings *fakeBookings
	events   *fakeEvents
	mailer   *fakeMailer
	installs *fakeInstalls
	handler  http.Handler
}

func newHarness() *harness {
	h := &harness{bookings: &fakeBookings{}, events: &fakeEvents{}, mailer: &fakeMailer{}, installs: &fakeInstalls{}}
	mux := http.NewServeMux()
	dashboard.NewHandler(h.bookings, h.events, h.mailer, telemetry.Discard()).
		WithInstalls(h.installs).
		RegisterRoutes(mux)
	h.handler = middleware.TenantContext(mux)
	return h
}

func (h *harness) do(t *testing.T, method, target, body, tenant string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req = req.WithContext(auth.WithContext(req.Context(), &auth.Context{Mode: auth.ModeVerified, TenantID: tenant}))

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestListAppointments(t *testing.T) {
	h := newHarness()
	h.bookings.list = []bookings.Booking{{ID: "bk-1", Status: "CONFIRMED"}, {ID: "bk-2"}}

	rec, resp := h.do(t, http.MethodGet,
		"/api/appointments?startDate=2026-03-01&endDate=2026-03-31T23:59:59Z&status=CONFIRMED&limit=10&offset=5", "", "site-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.EqualValues(t, 2, resp["count"])
	assert.Equal(t, "site-1", h.bookings.lastTenant)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), h.bookings.lastFilter.From)
	assert.Equal(t, time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC), h.bookings.lastFilter.To)
	assert.Equal(t, "CONFIRMED", h.bookings.lastFilter.Status)
	assert.Equal(t, 10, h.bookings.lastFilter.Limit)
	assert.Equal(t, 5, h.bookings.lastFilter.Offset)
}

func TestListAppointments_EmptyIsArray(t *testing.T) {
	h := newHarness()

	_, resp := h.do(t, http.MethodGet, "/api/appointments", "", "site-1")
	assert.Equal(t, []any{}, resp["data"])
}

func TestListAppointments_BadQuery(t *testing.T) {
	h := newHarness()

	for _, q := range []string{"startDate=soon", "endDate=03/01/2026", "limit=-1", "offset=x"} {
		rec, _ := h.do(t, http.MethodGet, "/api/appointments?"+q, "", "site-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListAppointments_UpstreamFailure(t *testing.T) {
	h := newHarness()
	h.bookings.listErr = errors.New("platform unavailable")

	rec, resp := h.do(t, http.MethodGet, "/api/appointments", "", "site-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, resp["success"])
}

func TestScopedRoutesRequireInstance(t *testing.T) {
	h := newHarness()

	routes := []struct{ method, target, body string }{
		{http.MethodGet, "/api/appointments", ""},
		{http.MethodGet, "/api/appointments/bk-1", ""},
		{http.MethodGet, "/api/dashboard/summary", ""},
		{http.MethodGet, "/api/dashboard/upcoming", ""},
		{http.MethodGet, "/api/events", ""},
		{http.MethodGet, "/api/events/ev-1/registrations", ""},
		{http.MethodPost, "/api/notifications/send-reminder", `{"bookingId":"bk-1"}`},
	}
	for _, route := range routes {
		rec, resp := h.do(t, route.method, route.target, route.body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, route.target)
		assert.Equal(t, "instance id required", resp["error"], route.target)
	}
}

func TestGetAppointment(t *testing.T) {
	h := newHarness()
	h.bookings.list = []bookings.Booking{{ID: "bk-1", ServiceName: "Haircut"}}

	rec, resp := h.do(t, http.MethodGet, "/api/appointments/bk-1", "", "site-1")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, "Haircut", data["serviceName"])

	rec, resp = h.do(t, http.MethodGet, "/api/appointments/missing", "", "site-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment not found", resp["error"])
}

func TestSendReminder(t *testing.T) {
	h := newHarness()

	rec, resp := h.do(t, http.MethodPost, "/api/notifications/send-reminder", `{"bookingId":"bk-1"}`, "site-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Reminder sent successfully", resp["message"])
	assert.Equal(t, []string{"site-1/bk-1"}, h.bookings.reminded)
}

func TestSendReminder_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing booking id", `{}`, nil, http.StatusBadRequest},
		{"malformed body", `{`, nil, http.StatusBadRequest},
		{"unknown booking", `{"bookingId":"x"}`, bookings.ErrNotFound, http.StatusNotFound},
		{"no email", `{"bookingId":"x"}`, bookings.ErrContactEmailMissing, http.StatusUnprocessableEntity},
		{"mail disabled", `{"bookingId":"x"}`, notify.ErrDisabled, http.StatusServiceUnavailable},
		{"mail rejected", `{"bookingId":"x"}`, notify.NewPermanentError(errors.New("invalid address")), http.StatusUnprocessableEntity},
		{"mail failure", `{"bookingId":"x"}`, errors.New("boom"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.bookings.reminderErr = tc.err

			rec, resp := h.do(t, http.MethodPost, "/api/notifications/send-reminder", tc.body, "site-1")
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, false, resp["success"])
		})
	}
}

func TestTestEmail(t *testing.T) {
	h := newHarness()

	// Not instance scoped.
	rec, resp := h.do(t, http.MethodPost, "/api/notifications/test-email", `{"to":"owner@example.com"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test email sent", resp["message"])
	assert.Equal(t, "owner@example.com", h.mailer.to)
	assert.Equal(t, "Test Email", h.mailer.subject)
	assert.Equal(t, "This is a test email from the salon app.", h.mailer.body)

	rec, resp = h.do(t, http.MethodPost, "/api/notifications/test-email", `{"subject":"hi"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "to email address is required", resp["error"])

	h.mailer.err = notify.ErrDisabled
	rec, _ = h.do(t, http.MethodPost, "/api/notifications/test-email", `{"to":"owner@example.com"}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.mailer.err = notify.NewPermanentError(errors.New("sendgrid: 400 invalid address"))
	rec, _ = h.do(t, http.MethodPost, "/api/notifications/test-email", `{"to":"owner@example.com"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	h.mailer.err = errors.New("sendgrid: 503")
	rec, _ = h.do(t, http.MethodPost, "/api/notifications/test-email", `{"to":"owner@example.com"}`, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListEvents(t *testing.T) {
	h := newHarness()
	h.events.events = []wixapi.Event{{ID: "ev-1"}, {ID: "ev-2"}, {ID: "ev-3"}}

	rec, resp := h.do(t, http.MethodGet, "/api/events?startDate=2026-05-01", "", "site-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, resp["count"])
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), h.events.lastFrom)
	assert.Equal(t, 0, h.events.lastLimit)

	rec, resp = h.do(t, http.MethodGet, "/api/events?limit=1&offset=1", "", "site-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, h.events.lastLimit)
	data := resp["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "ev-2", data[0].(map[string]any)["id"])
	assert.False(t, h.events.lastFrom.IsZero(), "defaults to now")

	_, resp = h.do(t, http.MethodGet, "/api/events?offset=9", "", "site-1")
	assert.Equal(t, []any{}, resp["data"])

	rec, _ = h.do(t, http.MethodGet, "/api/events?limit=x", "", "site-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.events.err = errors.New("events app not installed")
	rec, _ = h.do(t, http.MethodGet, "/api/events", "", "site-1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListRegistrations(t *testing.T) {
	h := newHarness()
	h.events.registrations = []wixapi.Registration{{ID: "r-1", Email: "guest@example.com"}}

	rec, resp := h.do(t, http.MethodGet, "/api/events/ev-7/registrations", "", "site-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ev-7", h.events.lastEventID)
	assert.EqualValues(t, 1, resp["count"])
	assert.Equal(t, "guest@example.com", resp["data"].([]any)[0].(map[string]any)["email"])

	h.events.registrations = nil
	_, resp = h.do(t, http.MethodGet, "/api/events/ev-7/registrations", "", "site-1")
	assert.Equal(t, []any{}, resp["data"])

	h.events.regErr = &wixapi.APIError{Status: http.StatusNotFound}
	rec, _ = h.do(t, http.MethodGet, "/api/events/ev-7/registrations", "", "site-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	dashboard.NewHandler(&fakeBookings{}, nil, &fakeMailer{}, telemetry.Discard()).RegisterRoutes(mux)
	handler := middleware.TenantContext(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(auth.WithContext(req.Context(), &auth.Context{Mode: auth.ModeVerified, TenantID: "site-1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Without a registry the instances route is not mounted.
	req = httptest.NewRequest(http.MethodGet, "/api/instances", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpcoming(t *testing.T) {
	h := newHarness()
	h.bookings.list = []bookings.Booking{{ID: "bk-1"}}
	h.events.events = []wixapi.Event{{ID: "ev-1"}}

	rec, resp := h.do(t, http.MethodGet, "/api/dashboard/upcoming", "", "site-1")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp["data"].(map[string]any)
	assert.Len(t, data["appointments"], 1)
	assert.Len(t, data["events"], 1)

	f := h.bookings.lastFilter
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 23, f.To.Hour())
	assert.Equal(t, f.From.YearDay(), f.To.YearDay())
	assert.False(t, f.To.Before(f.From))
	assert.Equal(t, 5, h.events.lastLimit)

	h.events.err = errors.New("events app not installed")
	_, resp = h.do(t, http.MethodGet, "/api/dashboard/upcoming?limit=3", "", "site-1")
	assert.Equal(t, []any{}, resp["data"].(map[string]any)["events"])
	assert.Equal(t, 3, h.bookings.lastFilter.Limit)

	h.bookings.listErr = errors.New("platform unavailable")
	rec, _ = h.do(t, http.MethodGet, "/api/dashboard/upcoming", "", "site-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListInstances(t *testing.T) {
	h := newHarness()
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	h.installs.list = []installs.Install{{InstanceID: "site-1", InstalledAt: at}}

	// Not instance scoped.
	rec, resp := h.do(t, http.MethodGet, "/api/instances", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp["totalInstances"])
	inst := resp["instances"].([]any)[0].(map[string]any)
	assert.Equal(t, "site-1", inst["instanceId"])
	assert.Equal(t, "2026-04-01T12:00:00Z", inst["installedAt"])

	h.installs.err = errors.New("redis down")
	rec, _ = h.do(t, http.MethodGet, "/api/instances", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSummary(t *testing.T) {
	h := newHarness()
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	h.bookings.list = []bookings.Booking{
		{ID: "1", Status: "CONFIRMED", TotalPrice: 40, ServiceName: "Haircut", StartTime: monday},
		{ID: "2", Status: "CONFIRMED", TotalPrice: 60.5, ServiceName: "Color", StartTime: monday},
		{ID: "3", Status: "CANCELED", TotalPrice: 99, ServiceName: "Haircut", StartTime: monday.Add(24 * time.Hour)},
		{ID: "4", Status: "PENDING", ServiceName: "Haircut"},
	}
	h.events.events = []wixapi.Event{{ID: "ev-1"}, {ID: "ev-2"}}

	rec, resp := h.do(t, http.MethodGet, "/api/dashboard/summary?startDate=2026-03-01&endDate=2026-03-31", "", "site-1")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp["data"].(map[string]any)
	assert.EqualValues(t, 4, data["totalAppointments"])
	assert.EqualValues(t, 2, data["confirmedAppointments"])
	assert.EqualValues(t, 1, data["cancelledAppointments"])
	assert.EqualValues(t, 1, data["pendingAppointments"])
	assert.InDelta(t, 100.5, data["totalRevenue"], 0.001)
	assert.EqualValues(t, 2, data["upcomingEvents"])
	assert.Equal(t, map[string]any{"Monday": float64(2), "Tuesday": float64(1)}, data["appointmentsByDay"])

	popular := data["popularServices"].([]any)
	require.Len(t, popular, 2)
	assert.Equal(t, "Haircut", popular[0].(map[string]any)["name"])

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), h.bookings.lastFilter.From)
}

func TestSummary_EventFailureIsTolerated(t *testing.T) {
	h := newHarness()
	h.events.err = errors.New("events app not installed")

	rec, resp := h.do(t, http.MethodGet, "/api/dashboard/summary", "", "site-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, resp["data"].(map[string]any)["upcomingEvents"])
	assert.False(t, h.bookings.lastFilter.From.IsZero(), "defaults to the start of the month")
}

func TestSummary_BookingFailure(t *testing.T) {
	h := newHarness()
	h.bookings.listErr = errors.New("platform unavailable")

	rec, _ := h.do(t, http.MethodGet, "/api/dashboard/summary", "", "site-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWithPermissions(t *testing.T) {
	mux := http.NewServeMux()
	dashboard.NewHandler(&fakeBookings{}, nil, &fakeMailer{}, telemetry.Discard()).
		WithPermissions("BOOKINGS.READ").
		RegisterRoutes(mux)
	handler := middleware.TenantContext(mux)

	serve := func(claims map[string]any) int {
		req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		req = req.WithContext(auth.WithContext(req.Context(), &auth.Context{
			Mode:     auth.ModeVerified,
			TenantID: "site-1",
			Claims:   claims,
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	granted := map[string]any{"data": map[string]any{"metadata": map[string]any{"permissions": []any{"BOOKINGS.READ"}}}}
	assert.Equal(t, http.StatusOK, serve(granted))
	assert.Equal(t, http.StatusForbidden, serve(map[string]any{}))
}
