package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a domain failure so transports can map it without string matching.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindAlreadyApproved Kind = "already_approved"
	KindPendingApproval Kind = "pending_approval"
	KindUpstream        Kind = "upstream_failure"
	// KindInternal is reported for errors that carry no kind.
	KindInternal Kind = "internal"
)

// FieldError names one violated constraint of one input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is a domain failure with a stable kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+" "+f.Message)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperrors.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrAlreadyApproved = &Error{Kind: KindAlreadyApproved}
	ErrPendingApproval = &Error{Kind: KindPendingApproval}
	ErrUpstream        = &Error{Kind: KindUpstream}
)

func Validation(message string, fields ...FieldError) *Error {
	if message == "" {
		message = "Validation failed"
	}
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Field builds a single field violation.
func Field(field, rule, message string) FieldError {
	return FieldError{Field: field, Rule: rule, Message: message}
}

func Unauthenticated(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// Forbidden never says what would have been allowed.
func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "Forbidden"}
}

// NotFound produces the uniform "<entity> not found" message.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func AlreadyApproved(entity string) *Error {
	return &Error{Kind: KindAlreadyApproved, Message: entity + " is already approved"}
}

func PendingApproval() *Error {
	return &Error{Kind: KindPendingApproval, Message: "Your shop account is pending approval by an administrator"}
}

func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
