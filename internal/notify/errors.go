package notify

import "errors"

var (
	// ErrDisabled is returned when email delivery is turned off.
	ErrDisabled = errors.New("email notifications are disabled")
	// ErrNoRecipient is returned when a contact has no email address.
	ErrNoRecipient = errors.New("recipient has no email address")
)

// SendError marks provider send failures with a retry classification.
type SendError struct {
	err       error
	permanent bool
}

func (e *SendError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// NewPermanentError wraps a send failure that will not succeed on retry.
func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &SendError{err: err, permanent: true}
}

// IsPermanent reports whether err represents a non-retryable send failure.
func IsPermanent(err error) bool {
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		return false
	}
	return sendErr.permanent
}
