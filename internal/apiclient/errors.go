package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"smartexpense/internal/core"
)

// APIError is returned for every failed call: transport errors, non-2xx
// statuses, envelopes with success=false and undecodable bodies alike.
// Status is zero when the backend could not be reached.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets callers match a missing expense with core.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == core.ErrNotFound && e.Status == http.StatusNotFound
}

// Message extracts the text to show to the user from any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return err.Error()
}

func unsupported(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusMethodNotAllowed || apiErr.Status == http.StatusNotImplemented
}
