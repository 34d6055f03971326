// Package dashboard serves the salon dashboard's REST endpoints. Every
// route runs behind request authentication.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/salon-events/salonbridge/internal/auth"
	"github.com/salon-events/salonbridge/internal/bookings"
	"github.com/salon-events/salonbridge/internal/installs"
	"github.com/salon-events/salonbridge/internal/notify"
	"github.com/salon-events/salonbridge/internal/platform/middleware"
	"github.com/salon-events/salonbridge/internal/wixapi"
)

// Bookings is the booking service the dashboard reads through.
type Bookings interface {
	List(ctx context.Context, instanceID string, f bookings.ListFilter) ([]bookings.Booking, error)
	Get(ctx context.Context, instanceID, bookingID string) (*bookings.Booking, error)
	SendManualReminder(ctx context.Context, instanceID, bookingID string) error
}

// Events lists a site's upcoming events and their guests.
type Events interface {
	QueryEvents(ctx context.Context, instanceID string, from time.Time, limit int) ([]wixapi.Event, error)
	ListRegistrations(ctx context.Context, instanceID, eventID string) ([]wixapi.Registration, error)
}

// Installs lists the sites the app is installed on.
type Installs interface {
	List(ctx context.Context) ([]installs.Install, error)
}

// TestMailer sends ad-hoc emails.
type TestMailer interface {
	SendTest(ctx context.Context, to, subject, body string) error
}

const (
	defaultTestSubject = "Test Email"
	defaultTestBody    = "This is a test email from the salon app."
)

// Handler handles dashboard HTTP endpoints.
type Handler struct {
	bookings Bookings
	events   Events
	mailer   TestMailer
	installs Installs
	logger   *slog.Logger
	now      func() time.Time

	permissions []string
}

// NewHandler creates a dashboard handler. events may be nil, in which case
// the summary reports no events.
func NewHandler(b Bookings, events Events, mailer TestMailer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bookings: b, events: events, mailer: mailer, logger: logger, now: time.Now}
}

// WithPermissions makes every dashboard route require the listed token
// permissions.
func (h *Handler) WithPermissions(perms ...string) *Handler {
	h.permissions = perms
	return h
}

// WithInstalls exposes the install registry at /api/instances.
func (h *Handler) WithInstalls(reg Installs) *Handler {
	h.installs = reg
	return h
}

// RegisterRoutes registers dashboard routes on the given mux. Instance
// scoped routes answer 400 when the caller carries no instance id.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	guard := func(next http.Handler) http.Handler {
		if len(h.permissions) == 0 {
			return next
		}
		return auth.RequirePermissions(h.permissions...)(next)
	}
	scoped := func(fn http.HandlerFunc) http.Handler { return guard(middleware.RequireTenant(fn)) }

	mux.Handle("GET /api/appointments", scoped(h.HandleListAppointments))
	mux.Handle("GET /api/appointments/{id}", scoped(h.HandleGetAppointment))
	mux.Handle("GET /api/dashboard/summary", scoped(h.HandleSummary))
	mux.Handle("GET /api/dashboard/upcoming", scoped(h.HandleUpcoming))
	mux.Handle("GET /api/events", scoped(h.HandleListEvents))
	mux.Handle("GET /api/events/{eventId}/registrations", scoped(h.HandleListRegistrations))
	mux.Handle("POST /api/notifications/send-reminder", scoped(h.HandleSendReminder))
	mux.Handle("POST /api/notifications/test-email", guard(http.HandlerFunc(h.HandleTestEmail)))
	if h.installs != nil {
		mux.Handle("GET /api/instances", guard(http.HandlerFunc(h.HandleListInstances)))
	}
}

// HandleListAppointments lists the instance's appointments. Query
// parameters startDate, endDate, status, limit and offset narrow the list.
func (h *Handler) HandleListAppointments(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetTenantID(r.Context())

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.bookings.List(r.Context(), instanceID, filter)
	if err != nil {
		h.logger.Error("listing appointments", "instance_id", instanceID, "error", err)
		writeError(w, http.StatusInternalServerError, "listing appointments failed")
		return
	}
	if list == nil {
		list = []bookings.Booking{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list, "count": len(list)})
}

// HandleGetAppointment returns one appointment by booking id.
func (h *Handler) HandleGetAppointment(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetTenantID(r.Context())
	id := r.PathValue("id")

	b, err := h.bookings.Get(r.Context(), instanceID, id)
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("fetching appointment", "instance_id", instanceID, "booking_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "fetching appointment failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": b})
}

// HandleSendReminder emails the customer of one booking a reminder.
func (h *Handler) HandleSendReminder(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetTenantID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, 10<<10)

	var req struct {
		BookingID string `json:"bookingId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "bookingId is required")
		return
	}

	err := h.bookings.SendManualReminder(r.Context(), instanceID, req.BookingID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Reminder sent successfully"})
	case errors.Is(err, bookings.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, bookings.ErrContactEmailMissing):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, notify.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case notify.IsPermanent(err):
		h.logger.Warn("manual reminder rejected", "instance_id", instanceID, "booking_id", req.BookingID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "reminder rejected by email provider")
	default:
		h.logger.Error("sending manual reminder", "instance_id", instanceID, "booking_id", req.BookingID, "error", err)
		writeError(w, http.StatusBadGateway, "sending reminder failed")
	}
}

// HandleTestEmail sends an ad-hoc email, defaulting subject and body.
func (h *Handler) HandleTestEmail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to email address is required")
		return
	}
	if req.Subject == "" {
		req.Subject = defaultTestSubject
	}
	if req.Body == "" {
		req.Body = defaultTestBody
	}

	err := h.mailer.SendTest(r.Context(), req.To, req.Subject, req.Body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Test email sent"})
	case errors.Is(err, notify.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case notify.IsPermanent(err):
		h.logger.Warn("test email rejected", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "test email rejected by email provider")
	default:
		h.logger.Error("sending test email", "error", err)
		writeError(w, http.StatusBadGateway, "sending test email failed")
	}
}

func parseFilter(r *http.Request) (bookings.ListFilter, error) {
	q := r.URL.Query()
	var f bookings.ListFilter
	var err error

	if f.From, err = parseDate(q.Get("startDate")); err != nil {
		return f, errors.New("invalid startDate")
	}
	if f.To, err = parseDate(q.Get("endDate")); err != nil {
		return f, errors.New("invalid endDate")
	}
	f.Status = q.Get("status")
	if f.Limit, err = parseInt(q.Get("limit")); err != nil {
		return f, errors.New("invalid limit")
	}
	if f.Offset, err = parseInt(q.Get("offset")); err != nil {
		return f, errors.New("invalid offset")
	}
	return f, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
