package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized covers a missing or rejected credential. Forbidden
	// responses match it too.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is a server-side permission rejection.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is a rejected field or payload.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Error is a non-success API response.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrValidation:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// IsAuthorization reports whether err means the credential is missing or
// was rejected.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTransient reports whether err is worth telling the user to try again:
// anything that is not an authorization, validation, not-found or conflict
// failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{ErrUnauthorized, ErrValidation, ErrNotFound, ErrConflict} {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}
