package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/salon-events/salonbridge/internal/notify"
	"github.com/salon-events/salonbridge/internal/wixapi"
)

// Platform is the subset of the platform API the service reads from.
type Platform interface {
	GetContact(ctx context.Context, instanceID, contactID string) (*wixapi.Contact, error)
	QueryBookings(ctx context.Context, instanceID string, q wixapi.BookingQuery) ([]map[string]any, error)
	GetBooking(ctx context.Context, instanceID, bookingID string) (map[string]any, error)
}

// Mailer sends the appointment emails.
type Mailer interface {
	SendAppointmentConfirmation(ctx context.Context, appt notify.Appointment, to notify.Recipient) error
	SendAppointmentCancellation(ctx context.Context, appt notify.Appointment, to notify.Recipient) error
	SendAppointmentReminder(ctx context.Context, appt notify.Appointment, to notify.Recipient) error
}

// Service applies booking lifecycle events and answers dashboard reads.
// The repository is optional; without one, bookings are only read from the
// platform.
type Service struct {
	platform Platform
	mailer   Mailer
	repo     Repository
	logger   *slog.Logger
}

func NewService(platform Platform, mailer Mailer, repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{platform: platform, mailer: mailer, repo: repo, logger: logger}
}

// HandleCreated stores a new booking and emails the customer a
// confirmation. A failed save is logged and the email is still sent.
func (s *Service) HandleCreated(ctx context.Context, instanceID string, entity map[string]any) error {
	b := FromEntity(entity)
	s.logger.Info("booking created", "instance_id", instanceID, "booking_id", b.ID)

	if err := s.save(ctx, instanceID, b); err != nil {
		s.logger.Error("saving booking", "instance_id", instanceID, "booking_id", b.ID, "error", err)
	}
	return s.notify(ctx, instanceID, b, "confirmation", s.mailer.SendAppointmentConfirmation)
}

// HandleUpdated records the booking's new status.
func (s *Service) HandleUpdated(ctx context.Context, instanceID string, entity map[string]any) error {
	b := FromEntity(entity)
	s.logger.Info("booking updated", "instance_id", instanceID, "booking_id", b.ID, "status", b.Status)
	return s.setStatus(ctx, instanceID, b, b.Status)
}

// HandleCancelled marks the booking cancelled and emails the customer.
func (s *Service) HandleCancelled(ctx context.Context, instanceID string, entity map[string]any) error {
	return s.close(ctx, instanceID, FromEntity(entity), StatusCanceled)
}

// HandleDeclined marks the booking declined and emails the customer.
func (s *Service) HandleDeclined(ctx context.Context, instanceID string, entity map[string]any) error {
	return s.close(ctx, instanceID, FromEntity(entity), StatusDeclined)
}

// HandleRescheduled moves the stored booking to its new slot.
func (s *Service) HandleRescheduled(ctx context.Context, instanceID string, entity map[string]any, previousStart string) error {
	b := FromEntity(entity)
	s.logger.Info("booking rescheduled",
		"instance_id", instanceID,
		"booking_id", b.ID,
		"previous_start", previousStart,
		"start", b.StartTime,
	)
	if s.repo == nil {
		return nil
	}
	err := s.repo.Reschedule(ctx, instanceID, b.ID, b.StartTime, b.EndTime)
	if errors.Is(err, ErrNotFound) {
		return s.save(ctx, instanceID, b)
	}
	return err
}

// HandleNoop logs booking events that need no local change.
func (s *Service) HandleNoop(_ context.Context, instanceID, eventType string, entity map[string]any) error {
	b := FromEntity(entity)
	s.logger.Info("booking event noted", "instance_id", instanceID, "event_type", eventType, "booking_id", b.ID)
	return nil
}

// List returns the instance's bookings from the platform, or from the local
// store when the platform cannot be reached.
func (s *Service) List(ctx context.Context, instanceID string, f ListFilter) ([]Booking, error) {
	entities, err := s.platform.QueryBookings(ctx, instanceID, wixapi.BookingQuery{
		From:   f.From,
		To:     f.To,
		Status: f.Status,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
	if err == nil {
		out := make([]Booking, 0, len(entities))
		for _, e := range entities {
			b := FromEntity(e)
			b.InstanceID = instanceID
			out = append(out, b)
		}
		return out, nil
	}
	if s.repo == nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}

	s.logger.Warn("platform booking query failed, reading local store", "instance_id", instanceID, "error", err)
	return s.repo.List(ctx, instanceID, f)
}

// Get returns one booking, preferring the platform's copy.
func (s *Service) Get(ctx context.Context, instanceID, bookingID string) (*Booking, error) {
	entity, err := s.platform.GetBooking(ctx, instanceID, bookingID)
	if err == nil {
		b := FromEntity(entity)
		b.InstanceID = instanceID
		return &b, nil
	}
	if wixapi.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if s.repo == nil {
		return nil, fmt.Errorf("fetching booking: %w", err)
	}

	s.logger.Warn("platform booking fetch failed, reading local store", "instance_id", instanceID, "booking_id", bookingID, "error", err)
	return s.repo.Get(ctx, instanceID, bookingID)
}

// SendManualReminder emails the customer of one booking a reminder.
func (s *Service) SendManualReminder(ctx context.Context, instanceID, bookingID string) error {
	b, err := s.Get(ctx, instanceID, bookingID)
	if err != nil {
		return err
	}
	if err := s.SendReminder(ctx, instanceID, *b); err != nil {
		return err
	}
	s.logger.Info("manual appointment reminder sent", "instance_id", instanceID, "booking_id", bookingID)
	return nil
}

// SendReminder emails the booking's customer a reminder. Unlike the
// lifecycle handlers it reports a disabled mailer to the caller.
func (s *Service) SendReminder(ctx context.Context, instanceID string, b Booking) error {
	to, err := s.recipient(ctx, instanceID, b)
	if err != nil {
		return err
	}
	return s.mailer.SendAppointmentReminder(ctx, b.Appointment(), to)
}

func (s *Service) close(ctx context.Context, instanceID string, b Booking, status string) error {
	s.logger.Info("booking closed", "instance_id", instanceID, "booking_id", b.ID, "status", status)
	if err := s.setStatus(ctx, instanceID, b, status); err != nil {
		s.logger.Error("updating booking status", "instance_id", instanceID, "booking_id", b.ID, "error", err)
	}
	return s.notify(ctx, instanceID, b, "cancellation", s.mailer.SendAppointmentCancellation)
}

func (s *Service) setStatus(ctx context.Context, instanceID string, b Booking, status string) error {
	if s.repo == nil {
		return nil
	}
	err := s.repo.UpdateStatus(ctx, instanceID, b.ID, status)
	if errors.Is(err, ErrNotFound) {
		b.Status = status
		return s.save(ctx, instanceID, b)
	}
	return err
}

func (s *Service) save(ctx context.Context, instanceID string, b Booking) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Upsert(ctx, instanceID, b)
}

type sendFunc func(ctx context.Context, appt notify.Appointment, to notify.Recipient) error

func (s *Service) notify(ctx context.Context, instanceID string, b Booking, kind string, send sendFunc) error {
	to, err := s.recipient(ctx, instanceID, b)
	if errors.Is(err, ErrContactEmailMissing) {
		s.logger.Warn("no email for booking contact", "instance_id", instanceID, "booking_id", b.ID, "email", kind)
		return nil
	}
	if err != nil {
		return err
	}

	err = send(ctx, b.Appointment(), to)
	if errors.Is(err, notify.ErrDisabled) {
		s.logger.Debug("email notifications disabled", "booking_id", b.ID, "email", kind)
		return nil
	}
	return err
}

// recipient resolves who gets a booking's emails: the CRM contact when it
// has an email, else the contact details on the booking itself.
func (s *Service) recipient(ctx context.Context, instanceID string, b Booking) (notify.Recipient, error) {
	to := notify.Recipient{Email: b.CustomerEmail, FirstName: firstWord(b.CustomerName)}

	if b.ContactID != "" {
		contact, err := s.platform.GetContact(ctx, instanceID, b.ContactID)
		switch {
		case err != nil:
			s.logger.Warn("fetching booking contact", "instance_id", instanceID, "contact_id", b.ContactID, "error", err)
		case contact.Email() != "":
			to.Email = contact.Email()
			if name := contact.FirstName(); name != "" {
				to.FirstName = name
			}
		}
	}

	if to.Email == "" {
		return notify.Recipient{}, ErrContactEmailMissing
	}
	return to, nil
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// Upcoming returns the confirmed bookings starting within window of now.
func (s *Service) Upcoming(ctx context.Context, instanceID string, now time.Time, window time.Duration) ([]Booking, error) {
	return s.List(ctx, instanceID, ListFilter{From: now, To: now.Add(window), Status: StatusConfirmed})
}
