package asr

import (
	"errors"
	"fmt"
)

var ErrUnknownBackend = errors.New("unknown transcription backend")

// NetworkError reports that the backend could not be reached or the exchange
// broke off before a response body was read.
type NetworkError struct {
	Backend string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Backend, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServiceError reports a response the backend produced but that is not a
// usable transcript: a non-success status or a malformed body.
type ServiceError struct {
	Backend    string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s: service failure", e.Backend)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
