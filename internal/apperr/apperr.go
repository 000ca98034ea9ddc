// Package apperr defines the error taxonomy shared by the realtime and the
// request/response paths. Each kind maps to one acknowledgment code and one HTTP status.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindAuthentication Kind = "authentication_error"
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindAuthorization  Kind = "authorization_error"
	KindStateConflict  Kind = "state_conflict"
	KindInternal       Kind = "internal_error"
)

// Error is a classified failure. Status is only set for StateConflict and carries
// the current status of the record the caller tried to transition.
type Error struct {
	Kind    Kind
	Message string
	Status  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare sentinels below, so errors.Is(err, apperr.ErrNotFound) works
// for any NotFound error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrStateConflict  = &Error{Kind: KindStateConflict}
	ErrInternal       = &Error{Kind: KindInternal}
)

func Authentication(msg string, err error) error {
	return &Error{Kind: KindAuthentication, Message: msg, Err: err}
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Authorization(msg string) error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func StateConflict(msg, status string) error {
	return &Error{Kind: KindStateConflict, Message: msg, Status: status}
}

func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the current record status carried by a StateConflict error.
func StatusOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return ""
}

// PublicMessage is the text safe to put on the wire. Internal details stay in logs.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return "Internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
