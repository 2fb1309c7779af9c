package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks input rejected before any request is sent.
	ErrValidation = errors.New("validation error")

	// ErrLoggedOut is returned when a 401 could not be recovered by a token
	// refresh. The stored credentials have been cleared.
	ErrLoggedOut = errors.New("session expired, please log in again")
)

// Error is a non-2xx response from the platform API.
type Error struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

func statusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool     { return statusOf(err) == http.StatusNotFound }
func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }
func IsForbidden(err error) bool    { return statusOf(err) == http.StatusForbidden }
func IsValidation(err error) bool {
	st := statusOf(err)
	return errors.Is(err, ErrValidation) || st == http.StatusBadRequest || st == http.StatusUnprocessableEntity
}
func IsServer(err error) bool { return statusOf(err) >= http.StatusInternalServerError }
