// Package apperr defines the typed failures surfaced by the data layer.
//
// Every error carries a Kind plus enough context (entity type, entity id,
// offending field) for a caller to render a user-facing message. Callers
// branch on the kind with IsKind or errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindNotFound          Kind = "NotFound"
	KindForeignKey        Kind = "ForeignKeyViolation"
	KindIllegalTransition Kind = "IllegalStatusTransition"
	KindInvalidAmount     Kind = "InvalidAmount"
	KindDuplicateKey      Kind = "DuplicateKey"
	KindExhaustedIDSpace  Kind = "ExhaustedIdSpace"
	KindSlotUnavailable   Kind = "SlotUnavailable"
	KindUnauthorized      Kind = "Unauthorized"
	KindInternal          Kind = "Internal"
)

// Error is the concrete error type returned by services and repositories.
type Error struct {
	Kind     Kind
	Entity   string
	EntityID string
	Field    string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.EntityID != "" {
			b.WriteString(" ")
			b.WriteString(e.EntityID)
		}
	}
	if e.Field != "" {
		b.WriteString(": field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This lets callers
// write errors.Is(err, apperr.NotFound("", "")) style checks against sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Entity == "" || t.Entity == e.Entity)
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in err's chain is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

func Validation(entity, field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, EntityID: id, Message: "not found"}
}

// ForeignKey reports that entity refers to a missing refEntity row through field.
func ForeignKey(entity, field, refEntity, refID string) *Error {
	return &Error{
		Kind:    KindForeignKey,
		Entity:  entity,
		Field:   field,
		Message: fmt.Sprintf("referenced %s %q does not exist", refEntity, refID),
	}
}

func IllegalTransition(entity, id, from, to string) *Error {
	return &Error{
		Kind:     KindIllegalTransition,
		Entity:   entity,
		EntityID: id,
		Field:    "status",
		Message:  fmt.Sprintf("cannot move from %q to %q", from, to),
	}
}

func InvalidAmount(entity, id, field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidAmount, Entity: entity, EntityID: id, Field: field, Message: fmt.Sprintf(format, args...)}
}

func Duplicate(entity, field, value string) *Error {
	return &Error{Kind: KindDuplicateKey, Entity: entity, Field: field, Message: fmt.Sprintf("%q is already in use", value)}
}

func ExhaustedIDSpace(entity string, width int) *Error {
	return &Error{Kind: KindExhaustedIDSpace, Entity: entity, Message: fmt.Sprintf("numeric suffix would exceed %d digits", width)}
}

func SlotUnavailable(doctorID, date, clock string) *Error {
	return &Error{
		Kind:     KindSlotUnavailable,
		Entity:   "doctor",
		EntityID: doctorID,
		Message:  fmt.Sprintf("already booked on %s at %s", date, clock),
	}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// WithID returns a copy of e with EntityID set. Used when the id is only known
// after the error was constructed (e.g. a classified database error).
func (e *Error) WithID(id string) *Error {
	cp := *e
	cp.EntityID = id
	return &cp
}

// WithEntityID stamps id onto err when it is an *Error without one.
// Other errors are returned unchanged.
func WithEntityID(err error, id string) error {
	var ae *Error
	if errors.As(err, &ae) && ae.EntityID == "" {
		return ae.WithID(id)
	}
	return err
}
