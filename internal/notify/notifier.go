package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Recipient is who an email goes to.
type Recipient struct {
	Email     string
	FirstName string
}

// Appointment is the booking detail shown in appointment emails.
type Appointment struct {
	ID          string
	ServiceName string
	StaffName   string
	StartTime   time.Time
}

// Event is the event detail shown in event reminder emails.
type Event struct {
	ID          string
	Title       string
	Description string
	StartTime   time.Time
	Location    string
}

// Options configures a Notifier.
type Options struct {
	Enabled  bool
	From     string
	Location *time.Location
}

// Notifier renders and sends the salon's transactional emails.
type Notifier struct {
	mailer    Mailer
	opts      Options
	logger    *slog.Logger
	templates map[string]*template.Template
}

var templateNames = []string{"confirmation", "cancellation", "reminder", "event_reminder", "plain"}

func NewNotifier(mailer Mailer, opts Options, logger *slog.Logger) (*Notifier, error) {
	if opts.From == "" {
		opts.From = "noreply@salon.com"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &Notifier{
		mailer:    mailer,
		opts:      opts,
		logger:    logger,
		templates: make(map[string]*template.Template, len(templateNames)),
	}
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.In(opts.Location).Format("Monday, January 2, 2006") },
		"time": func(t time.Time) string { return t.In(opts.Location).Format("03:04 PM") },
		"fallback": func(v, fallback string) string {
			if v == "" {
				return fallback
			}
			return v
		},
		"paragraphs": paragraphs,
	}
	for _, name := range templateNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		n.templates[name] = tmpl
	}
	return n, nil
}

// Enabled reports whether emails are delivered.
func (n *Notifier) Enabled() bool {
	return n.opts.Enabled
}

func (n *Notifier) SendAppointmentConfirmation(ctx context.Context, appt Appointment, to Recipient) error {
	return n.send(ctx, to, "Appointment Confirmed - Salon", "confirmation", map[string]any{
		"Recipient": to, "Appointment": appt,
	})
}

func (n *Notifier) SendAppointmentCancellation(ctx context.Context, appt Appointment, to Recipient) error {
	return n.send(ctx, to, "Appointment Cancelled - Salon", "cancellation", map[string]any{
		"Recipient": to, "Appointment": appt,
	})
}

func (n *Notifier) SendAppointmentReminder(ctx context.Context, appt Appointment, to Recipient) error {
	return n.send(ctx, to, "Appointment Reminder - Salon", "reminder", map[string]any{
		"Recipient": to, "Appointment": appt,
	})
}

func (n *Notifier) SendEventReminder(ctx context.Context, event Event, to Recipient) error {
	return n.send(ctx, to, "Event Reminder: "+event.Title, "event_reminder", map[string]any{
		"Recipient": to, "Event": event,
	})
}

// SendTest sends an operator-authored message. body is plain text: blank
// lines separate paragraphs and markup is escaped.
func (n *Notifier) SendTest(ctx context.Context, to, subject, body string) error {
	return n.send(ctx, Recipient{Email: to}, subject, "plain", map[string]any{"Body": body})
}

func (n *Notifier) send(ctx context.Context, to Recipient, subject, tmpl string, data map[string]any) error {
	if !n.opts.Enabled {
		n.logger.Warn("email notifications are disabled", "template", tmpl)
		return ErrDisabled
	}
	if to.Email == "" {
		return ErrNoRecipient
	}

	var buf bytes.Buffer
	if err := n.templates[tmpl].Execute(&buf, data); err != nil {
		return NewPermanentError(fmt.Errorf("rendering %s email: %w", tmpl, err))
	}

	if err := n.mailer.Send(ctx, Message{
		To:      to.Email,
		From:    n.opts.From,
		Subject: subject,
		HTML:    buf.String(),
	}); err != nil {
		return fmt.Errorf("sending %s email: %w", tmpl, err)
	}
	return nil
}

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
