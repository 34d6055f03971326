package dashboard

import (
	"net/http"
	"time"

	"github.com/salon-events/salonbridge/internal/bookings"
	"github.com/salon-events/salonbridge/internal/installs"
	"github.com/salon-events/salonbridge/internal/platform/middleware"
	"github.com/salon-events/salonbridge/internal/wixapi"
	"golang.org/x/sync/errgroup"
)

const (
	upcomingAppointmentLimit = 10
	upcomingEventLimit       = 5
)

// HandleListEvents lists the instance's events starting at or after
// startDate (default now). limit and offset page the result.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetTenantID(r.Context())
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, "events are not available")
		return
	}

	q := r.URL.Query()
	from, err := parseDate(q.Get("startDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startDate")
		return
	}
	if from.IsZero() {
		from = h.now().UTC()
	}
	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := parseInt(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	// The events query has no offset; fetch enough to skip locally.
	fetch := limit
	if fetch > 0 {
		fetch += offset
	}
	events, err := h.events.QueryEvents(r.Context(), instanceID, from, fetch)
	if err != nil {
		h.logger.Error("listing events", "instance_id", instanceID, "error", err)
		writeError(w, http.StatusBadGateway, "listing events failed")
		return
	}
	events = page(events, offset, limit)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": events, "count": len(events)})
}

// HandleListRegistrations lists the guests registered for one event.
func (h *Handler) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetTenantID(r.Context())
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, "events are not available")
		return
	}
	eventID := r.PathValue("eventId")

	regs, err := h.events.ListRegistrations(r.Context(), instanceID, eventID)
	if err != nil {
		if wixapi.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error("listing event registrations", "instance_id", instanceID, "event_id", eventID, "error", err)
		writeError(w, http.StatusBadGateway, "listing registrations failed")
		return
	}
	if regs == nil {
		regs = []wixapi.Registration{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": regs, "count": len(regs)})
}

// HandleUpcoming returns the rest of today's appointments and the next few
// events.
func (h *Handler) HandleUpcoming(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetTenantID(r.Context())

	limit, err := parseInt(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit == 0 {
		limit = upcomingAppointmentLimit
	}

	now := h.now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)

	var (
		appointments []bookings.Booking
		events       []wixapi.Event
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var listErr error
		appointments, listErr = h.bookings.List(ctx, instanceID, bookings.ListFilter{From: now, To: endOfDay, Limit: limit})
		return listErr
	})
	if h.events != nil {
		g.Go(func() error {
			var eventsErr error
			events, eventsErr = h.events.QueryEvents(ctx, instanceID, now, upcomingEventLimit)
			if eventsErr != nil {
				h.logger.Warn("listing upcoming events", "instance_id", instanceID, "error", eventsErr)
				events = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("listing upcoming appointments", "instance_id", instanceID, "error", err)
		writeError(w, http.StatusInternalServerError, "listing upcoming appointments failed")
		return
	}
	if appointments == nil {
		appointments = []bookings.Booking{}
	}
	if events == nil {
		events = []wixapi.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"appointments": appointments, "events": events},
	})
}

// HandleListInstances lists the sites the app is installed on. The registry
// is advisory; it only knows installs seen since it was created.
func (h *Handler) HandleListInstances(w http.ResponseWriter, r *http.Request) {
	list, err := h.installs.List(r.Context())
	if err != nil {
		h.logger.Error("listing installs", "error", err)
		writeError(w, http.StatusInternalServerError, "listing instances failed")
		return
	}
	if list == nil {
		list = []installs.Install{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"totalInstances": len(list), "instances": list})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
