package completion

import (
	"github.com/pkg/errors"
)

const unknownErrorMessage = "unknown error"

// TransportError is a failed or aborted remote call. Message is what gets
// shown to the user.
type TransportError struct {
	Message string
	Err     error
}

func NewTransportError(err error, message string) *TransportError {
	return &TransportError{
		Message: message,
		Err:     err,
	}
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return e.Message + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.UserMessage()
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil && e.Err.Error() != "" {
		return e.Err.Error()
	}
	return unknownErrorMessage
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// UserMessage returns the text to display for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.UserMessage()
	}
	if err.Error() == "" {
		return unknownErrorMessage
	}
	return err.Error()
}
