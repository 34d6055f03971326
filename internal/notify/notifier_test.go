package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salon-events/salonbridge/internal/notify"
	"github.com/salon-events/salonbridge/internal/platform/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	sent []notify.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg notify.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func newNotifier(t *testing.T, mailer notify.Mailer, enabled bool) *notify.Notifier {
	t.Helper()
	n, err := notify.NewNotifier(mailer, notify.Options{Enabled: enabled}, telemetry.Discard())
	require.NoError(t, err)
	return n
}

var appt = notify.Appointment{
	ID:          "b1",
	ServiceName: "Haircut",
	StaffName:   "Sam",
	StartTime:   time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
}

func TestSendAppointmentConfirmation(t *testing.T) {
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, true)

	err := n.SendAppointmentConfirmation(context.Background(), appt, notify.Recipient{Email: "ada@example.com", FirstName: "Ada"})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "noreply@salon.com", msg.From)
	assert.Equal(t, "Appointment Confirmed - Salon", msg.Subject)
	assert.Contains(t, msg.HTML, "Hi Ada,")
	assert.Contains(t, msg.HTML, "Monday, March 2, 2026")
	assert.Contains(t, msg.HTML, "02:30 PM")
	assert.Contains(t, msg.HTML, "Haircut")
	assert.Contains(t, msg.HTML, "#4CAF50")
}

func TestTemplatesFallBackOnMissingFields(t *testing.T) {
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, true)

	require.NoError(t, n.SendAppointmentReminder(context.Background(), notify.Appointment{StartTime: appt.StartTime}, notify.Recipient{Email: "x@example.com"}))

	html := mailer.sent[0].HTML
	assert.Contains(t, html, "Hi there,")
	assert.Contains(t, html, "Salon Service")
	assert.Contains(t, html, "Our team")
	assert.Equal(t, "Appointment Reminder - Salon", mailer.sent[0].Subject)
}

func TestSendEventReminder(t *testing.T) {
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, true)

	err := n.SendEventReminder(context.Background(), notify.Event{
		Title:     "Spring <Open> House",
		StartTime: appt.StartTime,
		Location:  "Main St",
	}, notify.Recipient{Email: "x@example.com"})
	require.NoError(t, err)

	msg := mailer.sent[0]
	assert.Equal(t, "Event Reminder: Spring <Open> House", msg.Subject)
	assert.Contains(t, msg.HTML, "Spring &lt;Open&gt; House")
	assert.Contains(t, msg.HTML, "Location:</strong> Main St")
}

func TestSendCancellationAndTest(t *testing.T) {
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, true)

	require.NoError(t, n.SendAppointmentCancellation(context.Background(), appt, notify.Recipient{Email: "x@example.com"}))
	require.NoError(t, n.SendTest(context.Background(), "ops@example.com", "Ping", "hello"))

	require.Len(t, mailer.sent, 2)
	assert.Contains(t, mailer.sent[0].HTML, "cancelled as requested")
	assert.Equal(t, "Ping", mailer.sent[1].Subject)
	assert.Contains(t, mailer.sent[1].HTML, "<p>hello</p>")
}

func TestSendTest_PlainTextBody(t *testing.T) {
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, true)

	body := "This is a test email from the salon app.\n\nSecond paragraph & more."
	require.NoError(t, n.SendTest(context.Background(), "ops@example.com", "Test Email", body))
	require.NoError(t, n.SendTest(context.Background(), "ops@example.com", "Test Email", "<h1>hi</h1>"))

	require.Len(t, mailer.sent, 2)
	html := mailer.sent[0].HTML
	assert.Contains(t, html, "<p>This is a test email from the salon app.</p>")
	assert.Contains(t, html, "<p>Second paragraph &amp; more.</p>")
	assert.NotContains(t, html, "&lt;")

	assert.Contains(t, mailer.sent[1].HTML, "<p>&lt;h1&gt;hi&lt;/h1&gt;</p>")
}

func TestDisabledNotifier(t *testing.T) {
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, false)

	err := n.SendAppointmentConfirmation(context.Background(), appt, notify.Recipient{Email: "x@example.com"})
	assert.ErrorIs(t, err, notify.ErrDisabled)
	assert.Empty(t, mailer.sent)
	assert.False(t, n.Enabled())
}

func TestMissingRecipient(t *testing.T) {
	n := newNotifier(t, &captureMailer{}, true)

	err := n.SendAppointmentReminder(context.Background(), appt, notify.Recipient{})
	assert.ErrorIs(t, err, notify.ErrNoRecipient)
}

func TestMailerErrorWrapped(t *testing.T) {
	cause := notify.NewPermanentError(errors.New("bad address"))
	n := newNotifier(t, &captureMailer{err: cause}, true)

	err := n.SendAppointmentReminder(context.Background(), appt, notify.Recipient{Email: "x@example.com"})
	require.Error(t, err)
	assert.True(t, notify.IsPermanent(err))
	assert.Contains(t, err.Error(), "sending reminder email")
}
