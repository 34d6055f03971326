package dashboard

import (
	"net/http"
	"sort"
	"time"

	"github.com/salon-events/salonbridge/internal/bookings"
	"github.com/salon-events/salonbridge/internal/platform/middleware"
	"github.com/salon-events/salonbridge/internal/wixapi"
	"golang.org/x/sync/errgroup"
)

const (
	summaryBookingLimit = 500
	summaryEventLimit   = 50
	popularServiceCount = 5
)

// Summary is the dashboard's headline numbers for a date range.
type Summary struct {
	TotalAppointments     int            `json:"totalAppointments"`
	ConfirmedAppointments int            `json:"confirmedAppointments"`
	CancelledAppointments int            `json:"cancelledAppointments"`
	PendingAppointments   int            `json:"pendingAppointments"`
	TotalRevenue          float64        `json:"totalRevenue"`
	UpcomingEvents        int            `json:"upcomingEvents"`
	AppointmentsByDay     map[string]int `json:"appointmentsByDay"`
	PopularServices       []ServiceCount `json:"popularServices"`
	DateRange             DateRange      `json:"dateRange"`
}

type ServiceCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DateRange struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// HandleSummary reports appointment counts and revenue for the requested
// range, by default the current month to date.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetTenantID(r.Context())
	q := r.URL.Query()

	now := h.now().UTC()
	start, err := parseDate(q.Get("startDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startDate")
		return
	}
	end, err := parseDate(q.Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endDate")
		return
	}
	if start.IsZero() {
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = now
	}

	var (
		list   []bookings.Booking
		events []wixapi.Event
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var listErr error
		list, listErr = h.bookings.List(ctx, instanceID, bookings.ListFilter{From: start, To: end, Limit: summaryBookingLimit})
		return listErr
	})
	if h.events != nil {
		g.Go(func() error {
			var eventsErr error
			events, eventsErr = h.events.QueryEvents(ctx, instanceID, now, summaryEventLimit)
			if eventsErr != nil {
				// Events are optional on the dashboard.
				h.logger.Warn("listing upcoming events", "instance_id", instanceID, "error", eventsErr)
				events = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("building dashboard summary", "instance_id", instanceID, "error", err)
		writeError(w, http.StatusInternalServerError, "building summary failed")
		return
	}

	s := summarize(list)
	s.UpcomingEvents = len(events)
	s.DateRange = DateRange{StartDate: start, EndDate: end}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s})
}

func summarize(list []bookings.Booking) Summary {
	s := Summary{
		TotalAppointments: len(list),
		AppointmentsByDay: make(map[string]int),
		PopularServices:   []ServiceCount{},
	}
	services := make(map[string]int)

	for _, b := range list {
		switch b.Status {
		case bookings.StatusConfirmed:
			s.ConfirmedAppointments++
			s.TotalRevenue += b.TotalPrice
		case bookings.StatusCanceled, "CANCELLED", bookings.StatusDeclined:
			s.CancelledAppointments++
		case bookings.StatusPending:
			s.PendingAppointments++
		}
		if !b.StartTime.IsZero() {
			s.AppointmentsByDay[b.StartTime.Weekday().String()]++
		}
		if b.ServiceName != "" {
			services[b.ServiceName]++
		}
	}

	for name, count := range services {
		s.PopularServices = append(s.PopularServices, ServiceCount{Name: name, Count: count})
	}
	sort.Slice(s.PopularServices, func(i, j int) bool {
		a, b := s.PopularServices[i], s.PopularServices[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	if len(s.PopularServices) > popularServiceCount {
		s.PopularServices = s.PopularServices[:popularServiceCount]
	}
	return s
}
