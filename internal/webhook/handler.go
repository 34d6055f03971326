package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/salon-events/salonbridge/internal/tasks"
)

// PathPrefix is where the platform delivers webhooks.
const PathPrefix = "/plugins-and-webhooks"

// BookingHandler applies booking lifecycle events. Implementations run
// inside detached tasks, after the delivery has been acknowledged.
type BookingHandler interface {
	HandleCreated(ctx context.Context, instanceID string, entity map[string]any) error
	HandleUpdated(ctx context.Context, instanceID string, entity map[string]any) error
	HandleCancelled(ctx context.Context, instanceID string, entity map[string]any) error
	HandleDeclined(ctx context.Context, instanceID string, entity map[string]any) error
	HandleRescheduled(ctx context.Context, instanceID string, entity map[string]any, previousStart string) error
	HandleNoop(ctx context.Context, instanceID, eventType string, entity map[string]any) error
}

// InstallRegistry tracks the sites the app is installed on.
type InstallRegistry interface {
	Add(ctx context.Context, instanceID string, at time.Time) error
	Remove(ctx context.Context, instanceID string) error
}

// Handler serves the webhook endpoints. Every route answers 200 as soon as
// the delivery is verified; side effects are submitted to the queue.
type Handler struct {
	verifier *Verifier
	bookings BookingHandler
	installs InstallRegistry
	queue    tasks.Queue
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(verifier *Verifier, bookings BookingHandler, installs InstallRegistry, queue tasks.Queue, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier: verifier,
		bookings: bookings,
		installs: installs,
		queue:    queue,
		logger:   logger,
		now:      time.Now,
	}
}

// Register mounts the webhook routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	verified := Middleware(h.verifier)
	route := func(path string, fn http.HandlerFunc) {
		mux.Handle("POST "+PathPrefix+path, verified(fn))
	}

	route("", h.handleEvent)
	route("/{path...}", h.handleEvent)
	route("/bookings/created", h.handleBookingCreated)
	route("/bookings/cancelled", h.handleBookingCancelled)
	route("/events/created", h.handleEventCreated)
	route("/app/installed", h.handleAppInstalled)
	route("/app/removed", h.handleAppRemoved)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	event := FromContext(r.Context())
	h.logger.Info("webhook received", "path", r.URL.Path, "event_type", event.Type, "instance_id", event.InstanceID)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "received": true})
	h.dispatch(r.Context(), Classify(event.Type), event)
}

func (h *Handler) handleBookingCreated(w http.ResponseWriter, r *http.Request) {
	event := FromContext(r.Context())
	h.logger.Info("booking created webhook received", "event_type", event.Type, "instance_id", event.InstanceID)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "received": true})
	h.dispatch(r.Context(), KindBookingCreated, event)
}

func (h *Handler) handleBookingCancelled(w http.ResponseWriter, r *http.Request) {
	event := FromContext(r.Context())
	h.logger.Info("booking cancelled webhook received", "event_type", event.Type, "instance_id", event.InstanceID)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "received": true})
	h.dispatch(r.Context(), KindBookingCancelled, event)
}

func (h *Handler) handleEventCreated(w http.ResponseWriter, r *http.Request) {
	event := FromContext(r.Context())
	h.logger.Info("event created webhook received", "event_type", event.Type, "instance_id", event.InstanceID)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleAppInstalled(w http.ResponseWriter, r *http.Request) {
	event := FromContext(r.Context())
	h.logger.Info("app installed webhook received", "event_type", event.Type, "instance_id", event.InstanceID)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	if event.InstanceID == "" {
		h.logger.Warn("app installed webhook carries no instance id", "event_id", event.ID)
		return
	}
	at := h.now()
	h.submit(r.Context(), "app.installed", event, func(ctx context.Context) error {
		return h.installs.Add(ctx, event.InstanceID, at)
	})
}

func (h *Handler) handleAppRemoved(w http.ResponseWriter, r *http.Request) {
	event := FromContext(r.Context())
	h.logger.Info("app removed webhook received", "event_type", event.Type, "instance_id", event.InstanceID)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	if event.InstanceID == "" {
		h.logger.Warn("app removed webhook carries no instance id", "event_id", event.ID)
		return
	}
	h.submit(r.Context(), "app.removed", event, func(ctx context.Context) error {
		return h.installs.Remove(ctx, event.InstanceID)
	})
}

func (h *Handler) dispatch(ctx context.Context, kind Kind, event *Event) {
	entity := Unwrap(event.Payload)
	id := event.InstanceID

	switch kind {
	case KindBookingCreated:
		h.submit(ctx, "booking.created", event, func(ctx context.Context) error {
			return h.bookings.HandleCreated(ctx, id, entity)
		})
	case KindBookingUpdated:
		h.submit(ctx, "booking.updated", event, func(ctx context.Context) error {
			return h.bookings.HandleUpdated(ctx, id, entity)
		})
	case KindBookingCancelled:
		h.submit(ctx, "booking.cancelled", event, func(ctx context.Context) error {
			return h.bookings.HandleCancelled(ctx, id, entity)
		})
	case KindBookingDeclined:
		h.submit(ctx, "booking.declined", event, func(ctx context.Context) error {
			return h.bookings.HandleDeclined(ctx, id, entity)
		})
	case KindBookingRescheduled:
		previous, _ := lookupString(event.Payload, "actionEvent", "body", "previousStartDate")
		h.submit(ctx, "booking.rescheduled", event, func(ctx context.Context) error {
			return h.bookings.HandleRescheduled(ctx, id, entity, previous)
		})
	case KindBookingMarkedAsPending, KindBookingParticipantsUpdated:
		h.submit(ctx, "booking.noted", event, func(ctx context.Context) error {
			return h.bookings.HandleNoop(ctx, id, event.Type, entity)
		})
	default:
		h.logger.Info("unhandled webhook event type", "event_type", event.Type, "instance_id", id)
	}
}

func (h *Handler) submit(ctx context.Context, name string, event *Event, run func(context.Context) error) {
	key := event.ID
	if key == "" {
		key = stringField(Unwrap(event.Payload), "id")
	}
	// Failures are logged by the queue; the delivery is already acknowledged.
	_ = h.queue.Submit(ctx, tasks.Task{
		Name:     name,
		TenantID: event.InstanceID,
		Key:      key,
		Run:      run,
	})
}

func lookupString(m map[string]any, path ...string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	obj, ok := objectAt(m, path[:len(path)-1]...)
	if !ok {
		return "", false
	}
	s, ok := obj[path[len(path)-1]].(string)
	return s, ok
}
