// Package bookings keeps the salon's appointment records in step with the
// platform's booking lifecycle events and sends the related emails.
package bookings

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/salon-events/salonbridge/internal/notify"
)

var (
	ErrNotFound            = errors.New("booking not found")
	ErrContactEmailMissing = errors.New("contact email not found")
)

const (
	StatusCreated   = "CREATED"
	StatusConfirmed = "CONFIRMED"
	StatusCanceled  = "CANCELED"
	StatusDeclined  = "DECLINED"
	StatusPending   = "PENDING"
)

// Booking is a salon appointment as stored locally and served to the
// dashboard.
type Booking struct {
	ID                   string    `json:"id"`
	InstanceID           string    `json:"instanceId,omitempty"`
	ContactID            string    `json:"contactId,omitempty"`
	CustomerName         string    `json:"customerName,omitempty"`
	CustomerEmail        string    `json:"customerEmail,omitempty"`
	CustomerPhone        string    `json:"customerPhone,omitempty"`
	ServiceID            string    `json:"serviceId,omitempty"`
	ServiceName          string    `json:"serviceName,omitempty"`
	StaffMemberID        string    `json:"staffMemberId,omitempty"`
	StaffName            string    `json:"staffName,omitempty"`
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"`
	DurationMinutes      int       `json:"duration,omitempty"`
	Status               string    `json:"status"`
	Notes                string    `json:"notes"`
	TotalPrice           float64   `json:"totalPrice"`
	LocationID           string    `json:"locationId,omitempty"`
	LocationName         string    `json:"locationName,omitempty"`
	NumberOfParticipants int       `json:"numberOfParticipants"`
}

// Appointment returns the fields shown in appointment emails.
func (b Booking) Appointment() notify.Appointment {
	return notify.Appointment{
		ID:          b.ID,
		ServiceName: b.ServiceName,
		StaffName:   b.StaffName,
		StartTime:   b.StartTime,
	}
}

// FromEntity maps a platform booking entity onto a Booking. It understands
// the v2 shape (bookedEntity.slot, contactDetails) and falls back to the
// flat v1 fields.
func FromEntity(entity map[string]any) Booking {
	e := object(entity)
	slot := e.obj("bookedEntity").obj("slot")
	if slot == nil {
		slot = e.obj("slot")
	}
	contact := e.obj("contactDetails")
	if contact == nil {
		contact = e.obj("contact")
	}
	resource := slot.obj("resource")
	location := slot.obj("location")

	b := Booking{
		ID:            first(e.str("id"), e.str("_id")),
		ContactID:     first(contact.str("contactId"), e.str("contactId")),
		CustomerName:  customerName(contact, e),
		CustomerEmail: first(contact.str("email"), e.str("customerEmail")),
		CustomerPhone: first(contact.str("phone"), e.str("customerPhone")),
		ServiceID:     first(slot.str("serviceId"), e.str("serviceId")),
		ServiceName: first(
			e.obj("bookedEntity").obj("item").obj("service").str("name"),
			slot.obj("service").str("name"),
			e.str("serviceName"),
			e.obj("bookedEntity").str("title"),
		),
		StaffMemberID: first(resource.str("id"), e.str("staffMemberId")),
		StaffName:     first(resource.str("name"), e.str("staffName")),
		StartTime:     parseTime(first(slot.str("startDate"), e.str("startDate"), e.str("startTime"))),
		EndTime:       parseTime(first(slot.str("endDate"), e.str("endDate"), e.str("endTime"))),
		Status:        first(e.str("status"), StatusCreated),
		Notes:         first(e.str("notes"), e.str("comment")),
		TotalPrice:    e.num("totalPrice"),
		LocationID:    location.str("id"),
		LocationName:  location.str("name"),
	}

	b.DurationMinutes = int(first64(slot.num("duration"), e.num("duration")))
	if b.DurationMinutes == 0 && !b.StartTime.IsZero() && b.EndTime.After(b.StartTime) {
		b.DurationMinutes = int(b.EndTime.Sub(b.StartTime) / time.Minute)
	}
	b.NumberOfParticipants = int(first64(e.num("numberOfParticipants"), e.num("totalParticipants"), 1))
	return b
}

func customerName(contact, e object) string {
	firstName, lastName := contact.str("firstName"), contact.str("lastName")
	if firstName != "" && lastName != "" {
		return firstName + " " + lastName
	}
	return first(firstName, contact.str("name"), e.str("customerName"))
}

// object is a nil-safe view over a decoded JSON object.
type object map[string]any

func (o object) obj(key string) object {
	if o == nil {
		return nil
	}
	child, _ := o[key].(map[string]any)
	return child
}

func (o object) str(key string) string {
	if o == nil {
		return ""
	}
	s, _ := o[key].(string)
	return strings.TrimSpace(s)
}

func (o object) num(key string) float64 {
	if o == nil {
		return 0
	}
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case map[string]any:
		// Money objects carry the amount as a decimal string.
		return object(v).num("value")
	default:
		return 0
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func first64(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
