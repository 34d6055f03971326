package webhook

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

// Recorder counts verification outcomes.
type Recorder interface {
	ObserveWebhook(outcome string)
}

// Verifier checks that a webhook body is an RS256 token signed by the
// platform and decodes the event envelope it carries. It never accepts
// unsigned input, whatever the environment.
type Verifier struct {
	key      *rsa.PublicKey
	parser   *jwt.Parser
	logger   *slog.Logger
	recorder Recorder
}

func NewVerifier(key *rsa.PublicKey, logger *slog.Logger, recorder Recorder) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		key:      key,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})),
		logger:   logger,
		recorder: recorder,
	}
}

// Verify validates body and returns the decoded event. Errors wrap one of
// ErrServerConfiguration, ErrMalformedBody, ErrSignatureVerification or
// ErrMalformedEventData.
func (v *Verifier) Verify(body []byte) (*Event, error) {
	event, err := v.verify(body)
	if err != nil {
		v.observe(outcomeOf(err))
		return nil, err
	}
	v.observe("verified")
	v.logger.Debug("webhook signature verified", "event_type", event.Type, "instance_id", event.InstanceID)
	return event, nil
}

func (v *Verifier) verify(body []byte) (*Event, error) {
	if v.key == nil {
		v.logger.Error("webhook verification key not configured")
		return nil, ErrServerConfiguration
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" || !utf8.ValidString(raw) {
		v.logger.Error("webhook body is missing or not text", "size", len(body))
		return nil, ErrMalformedBody
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		v.logger.Error("webhook signature verification failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	envelope, ok := decodeObject(claims["data"])
	if !ok {
		v.logger.Error("webhook envelope is not an object")
		return nil, ErrMalformedEventData
	}

	var payload map[string]any
	switch data := envelope["data"].(type) {
	case nil:
		payload = map[string]any{}
	default:
		payload, ok = decodeObject(data)
		if !ok {
			v.logger.Error("webhook event data is not an object", "event_type", stringField(envelope, "eventType"))
			return nil, ErrMalformedEventData
		}
	}

	return &Event{
		Type:       stringField(envelope, "eventType"),
		InstanceID: stringField(envelope, "instanceId"),
		ID:         stringField(envelope, "eventId"),
		Time:       stringField(envelope, "eventTime"),
		Payload:    payload,
	}, nil
}

func (v *Verifier) observe(outcome string) {
	if v.recorder != nil {
		v.recorder.ObserveWebhook(outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrServerConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrMalformedBody):
		return "malformed_body"
	case errors.Is(err, ErrMalformedEventData):
		return "malformed_event_data"
	default:
		return "invalid_signature"
	}
}
