package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a coded failure that knows which HTTP status it maps to.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches two coded errors by code so sentinel comparisons survive Clone and Wrap.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// New builds a coded error without a cause.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds a coded error around a cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs reuses the code and status of a sentinel for a new cause.
func WrapAs(sentinel *Error, err error, message string) *Error {
	if message == "" {
		message = sentinel.Message
	}
	return &Error{Code: sentinel.Code, Status: sentinel.Status, Message: message, Err: err}
}

var (
	ErrAuth               = New("AUTH_ERROR", http.StatusUnauthorized, "authentication failed")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrRoleMismatch       = New("ROLE_MISMATCH", http.StatusForbidden, "account role does not match the selected role")
	ErrProfileFetch       = New("PROFILE_FETCH_FAILED", http.StatusBadGateway, "unable to load profile")
	ErrSubscription       = New("SUBSCRIPTION_FAILED", http.StatusServiceUnavailable, "live query failed")
	ErrWrite              = New("WRITE_FAILED", http.StatusInternalServerError, "write failed")
	ErrPartialDelete      = New("PARTIAL_DELETE", http.StatusConflict, "delete only partially completed")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// PartialDeleteError reports a two-part delete where only some halves succeeded.
type PartialDeleteError struct {
	Resource        string `json:"resource"`
	ID              string `json:"id"`
	BlobDeleted     bool   `json:"blobDeleted"`
	MetadataDeleted bool   `json:"metadataDeleted"`
	Err             error  `json:"-"`
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("partial delete of %s %s (blob=%t metadata=%t): %v", e.Resource, e.ID, e.BlobDeleted, e.MetadataDeleted, e.Err)
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var partial *PartialDeleteError
	if errors.As(err, &partial) {
		out := Wrap(partial, ErrPartialDelete.Code, ErrPartialDelete.Status, ErrPartialDelete.Message)
		out.Details = partial
		return out
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies err, optionally overriding the message.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
