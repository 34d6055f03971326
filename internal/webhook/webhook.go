// Package webhook verifies signed platform event notifications and
// dispatches them to detached handlers.
package webhook

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrServerConfiguration   = errors.New("verification key not configured")
	ErrMalformedBody         = errors.New("invalid request body")
	ErrSignatureVerification = errors.New("signature verification failed")
	ErrMalformedEventData    = errors.New("invalid event data format")
)

// Event is a verified, decoded webhook notification. It is built per
// delivery and never stored directly.
type Event struct {
	Type       string
	InstanceID string
	ID         string
	Time       string
	Payload    map[string]any
}

type eventContextKey struct{}

// WithEvent stores a verified event in ctx.
func WithEvent(ctx context.Context, event *Event) context.Context {
	return context.WithValue(ctx, eventContextKey{}, event)
}

// FromContext retrieves the verified event from ctx.
func FromContext(ctx context.Context) *Event {
	event, _ := ctx.Value(eventContextKey{}).(*Event)
	return event
}

// Kind is the booking lifecycle transition an event type denotes.
type Kind string

const (
	KindUnknown                    Kind = ""
	KindBookingCreated             Kind = "booking_created"
	KindBookingUpdated             Kind = "booking_updated"
	KindBookingCancelled           Kind = "booking_cancelled"
	KindBookingDeclined            Kind = "booking_declined"
	KindBookingRescheduled         Kind = "booking_rescheduled"
	KindBookingMarkedAsPending     Kind = "booking_markedAsPending"
	KindBookingParticipantsUpdated Kind = "booking_number_of_participants_updated"
)

var kinds = []Kind{
	KindBookingCreated,
	KindBookingUpdated,
	KindBookingCancelled,
	KindBookingDeclined,
	KindBookingRescheduled,
	KindBookingMarkedAsPending,
	KindBookingParticipantsUpdated,
}

// Classify maps the platform's event type names onto a Kind. Both the
// versioned dotted form (wix.bookings.v2.booking_created) and the slash
// form (bookings/booking-created) are accepted.
func Classify(eventType string) Kind {
	for _, k := range kinds {
		suffix := strings.TrimPrefix(string(k), "booking_")
		switch eventType {
		case "wix.bookings.v1." + string(k),
			"wix.bookings.v2." + string(k),
			"bookings/booking-" + suffix:
			return k
		}
	}
	return KindUnknown
}

// Unwrap extracts the booking entity from an event payload. The platform
// wraps the same entity differently for created, updated and action
// events; the raw payload is returned when no known wrapper matches.
func Unwrap(payload map[string]any) map[string]any {
	for _, path := range [][]string{
		{"createdEvent", "entity"},
		{"updatedEvent", "currentEntityAsJson"},
		{"actionEvent", "body", "booking"},
		{"booking"},
		{"entity"},
	} {
		if entity, ok := objectAt(payload, path...); ok {
			return entity
		}
	}
	return payload
}

func objectAt(m map[string]any, path ...string) (map[string]any, bool) {
	cur := m
	for _, key := range path {
		next, ok := decodeObject(cur[key])
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
