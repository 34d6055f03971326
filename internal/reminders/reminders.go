// Package reminders runs the scheduled reminder emails: an hourly sweep of
// confirmed appointments in the next day and a daily sweep of upcoming
// events.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/salon-events/salonbridge/internal/bookings"
	"github.com/salon-events/salonbridge/internal/installs"
	"github.com/salon-events/salonbridge/internal/notify"
	"github.com/salon-events/salonbridge/internal/wixapi"
)

const (
	defaultAppointmentSchedule = "0 * * * *"
	defaultEventSchedule       = "0 9 * * *"
	defaultAppointmentWindow   = 24 * time.Hour
	defaultEventWindow         = 7 * 24 * time.Hour
	eventQueryLimit            = 100
)

// Installs lists the sites to send reminders for.
type Installs interface {
	List(ctx context.Context) ([]installs.Install, error)
}

// Appointments finds bookings due a reminder and sends it.
type Appointments interface {
	Upcoming(ctx context.Context, instanceID string, now time.Time, window time.Duration) ([]bookings.Booking, error)
	SendReminder(ctx context.Context, instanceID string, b bookings.Booking) error
}

// Events reads upcoming events, their guests and the guests' contacts.
type Events interface {
	QueryEvents(ctx context.Context, instanceID string, from time.Time, limit int) ([]wixapi.Event, error)
	ListRegistrations(ctx context.Context, instanceID, eventID string) ([]wixapi.Registration, error)
	GetContact(ctx context.Context, instanceID, contactID string) (*wixapi.Contact, error)
}

// EventMailer sends event reminder emails.
type EventMailer interface {
	SendEventReminder(ctx context.Context, event notify.Event, to notify.Recipient) error
}

// Config sets the cron schedules and look-ahead windows. Zero values use
// the hourly and daily defaults.
type Config struct {
	AppointmentSchedule string
	EventSchedule       string
	AppointmentWindow   time.Duration
	EventWindow         time.Duration
}

// Result counts the outcome of one sweep.
type Result struct {
	Sent    int
	Skipped int
	Failed  int
}

// Scheduler owns the reminder cron jobs.
type Scheduler struct {
	cfg          Config
	installs     Installs
	appointments Appointments
	events       Events
	mailer       EventMailer
	logger       *slog.Logger
	now          func() time.Time

	// reminded maps instance/booking to the appointment start, so the
	// hourly sweep emails each booking once.
	mu       sync.Mutex
	reminded map[string]time.Time
}

func NewScheduler(cfg Config, reg Installs, appointments Appointments, events Events, mailer EventMailer, logger *slog.Logger) *Scheduler {
	if cfg.AppointmentSchedule == "" {
		cfg.AppointmentSchedule = defaultAppointmentSchedule
	}
	if cfg.EventSchedule == "" {
		cfg.EventSchedule = defaultEventSchedule
	}
	if cfg.AppointmentWindow <= 0 {
		cfg.AppointmentWindow = defaultAppointmentWindow
	}
	if cfg.EventWindow <= 0 {
		cfg.EventWindow = defaultEventWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:          cfg,
		installs:     reg,
		appointments: appointments,
		events:       events,
		mailer:       mailer,
		logger:       logger,
		now:          time.Now,
		reminded:     make(map[string]time.Time),
	}
}

// Run starts both jobs and blocks until ctx is done. Jobs still running at
// shutdown are waited for.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.logger}),
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	))

	if _, err := c.AddFunc(s.cfg.AppointmentSchedule, func() { s.SendAppointmentReminders(ctx) }); err != nil {
		return fmt.Errorf("scheduling appointment reminders: %w", err)
	}
	if _, err := c.AddFunc(s.cfg.EventSchedule, func() { s.SendEventReminders(ctx) }); err != nil {
		return fmt.Errorf("scheduling event reminders: %w", err)
	}

	c.Start()
	s.logger.Info("reminder jobs started",
		"appointment_schedule", s.cfg.AppointmentSchedule,
		"event_schedule", s.cfg.EventSchedule,
	)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("reminder jobs stopped")
	return nil
}

// SendAppointmentReminders emails every customer with a confirmed booking
// starting within the appointment window, for every installed site. A
// booking is reminded once per start time.
func (s *Scheduler) SendAppointmentReminders(ctx context.Context) Result {
	var res Result
	now := s.now().UTC()
	s.forgetPast(now)

	for _, instanceID := range s.instanceIDs(ctx) {
		if ctx.Err() != nil {
			break
		}
		due, err := s.appointments.Upcoming(ctx, instanceID, now, s.cfg.AppointmentWindow)
		if err != nil {
			s.logger.Error("listing appointments to remind", "instance_id", instanceID, "error", err)
			res.Failed++
			continue
		}
		s.logger.Info("appointments to remind", "instance_id", instanceID, "count", len(due))

		for _, b := range due {
			if s.alreadyReminded(instanceID, b) {
				res.Skipped++
				continue
			}
			err := s.appointments.SendReminder(ctx, instanceID, b)
			switch {
			case err == nil:
				res.Sent++
				s.markReminded(instanceID, b)
				s.logger.Info("appointment reminder sent", "instance_id", instanceID, "booking_id", b.ID)
			case errors.Is(err, bookings.ErrContactEmailMissing), errors.Is(err, notify.ErrDisabled):
				res.Skipped++
			case notify.IsPermanent(err):
				// The provider refused the message; later sweeps would fail the same way.
				res.Skipped++
				s.markReminded(instanceID, b)
				s.logger.Warn("appointment reminder rejected", "instance_id", instanceID, "booking_id", b.ID, "error", err)
			default:
				res.Failed++
				s.logger.Error("sending appointment reminder", "instance_id", instanceID, "booking_id", b.ID, "error", err)
			}
		}
	}
	return res
}

func (s *Scheduler) alreadyReminded(instanceID string, b bookings.Booking) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.reminded[instanceID+"/"+b.ID]
	return ok && start.Equal(b.StartTime)
}

func (s *Scheduler) markReminded(instanceID string, b bookings.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminded[instanceID+"/"+b.ID] = b.StartTime
}

func (s *Scheduler) forgetPast(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, start := range s.reminded {
		if start.Before(now) {
			delete(s.reminded, key)
		}
	}
}

// SendEventReminders emails every registered guest of each event starting
// within the event window, for every installed site.
func (s *Scheduler) SendEventReminders(ctx context.Context) Result {
	var res Result
	now := s.now().UTC()
	until := now.Add(s.cfg.EventWindow)

	for _, instanceID := range s.instanceIDs(ctx) {
		if ctx.Err() != nil {
			break
		}
		events, err := s.events.QueryEvents(ctx, instanceID, now, eventQueryLimit)
		if err != nil {
			s.logger.Error("listing events to remind", "instance_id", instanceID, "error", err)
			res.Failed++
			continue
		}

		for _, ev := range events {
			if ev.ScheduleConfig.StartDate.After(until) {
				continue
			}
			s.remindGuests(ctx, instanceID, ev, &res)
		}
	}
	return res
}

func (s *Scheduler) remindGuests(ctx context.Context, instanceID string, ev wixapi.Event, res *Result) {
	regs, err := s.events.ListRegistrations(ctx, instanceID, ev.ID)
	if err != nil {
		s.logger.Error("listing event registrations", "instance_id", instanceID, "event_id", ev.ID, "error", err)
		res.Failed++
		return
	}

	details := notify.Event{
		ID:        ev.ID,
		Title:     ev.Title,
		StartTime: ev.ScheduleConfig.StartDate,
		Location:  ev.Location.Name,
	}
	for _, reg := range regs {
		to := s.guest(ctx, instanceID, reg)
		if to.Email == "" {
			res.Skipped++
			continue
		}
		err := s.mailer.SendEventReminder(ctx, details, to)
		switch {
		case err == nil:
			res.Sent++
			s.logger.Info("event reminder sent", "instance_id", instanceID, "event_id", ev.ID, "contact_id", reg.ContactID)
		case errors.Is(err, notify.ErrDisabled):
			res.Skipped++
		case notify.IsPermanent(err):
			res.Skipped++
			s.logger.Warn("event reminder rejected", "instance_id", instanceID, "event_id", ev.ID, "contact_id", reg.ContactID, "error", err)
		default:
			res.Failed++
			s.logger.Error("sending event reminder",
				"instance_id", instanceID,
				"event_id", ev.ID,
				"contact_id", reg.ContactID,
				"error", err,
			)
		}
	}
}

// guest prefers the CRM contact's email and falls back to the one given
// at registration.
func (s *Scheduler) guest(ctx context.Context, instanceID string, reg wixapi.Registration) notify.Recipient {
	to := notify.Recipient{Email: reg.Email, FirstName: reg.FirstName}
	if reg.ContactID == "" {
		return to
	}
	contact, err := s.events.GetContact(ctx, instanceID, reg.ContactID)
	if err != nil {
		s.logger.Warn("fetching guest contact", "instance_id", instanceID, "contact_id", reg.ContactID, "error", err)
		return to
	}
	if email := contact.Email(); email != "" {
		to.Email = email
	}
	if name := contact.FirstName(); name != "" {
		to.FirstName = name
	}
	return to
}

func (s *Scheduler) instanceIDs(ctx context.Context) []string {
	list, err := s.installs.List(ctx)
	if err != nil {
		s.logger.Error("listing installed sites", "error", err)
		return nil
	}
	ids := make([]string, 0, len(list))
	for _, inst := range list {
		ids = append(ids, inst.InstanceID)
	}
	return ids
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
