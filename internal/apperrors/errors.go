package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the quote core.
type Kind string

const (
	KindInvalidAmount       Kind = "invalid_amount"
	KindInvalidState        Kind = "invalid_state"
	KindNotFound            Kind = "not_found"
	KindConflictOnSave      Kind = "conflict_on_save"
	KindInternalComputation Kind = "internal_computation_error"
)

// Sentinels for errors.Is checks. Every *Error matches the sentinel of its kind.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidState        = errors.New("invalid state")
	ErrNotFound            = errors.New("not found")
	ErrConflictOnSave      = errors.New("conflict on save")
	ErrInternalComputation = errors.New("internal computation error")
)

var sentinels = map[Kind]error{
	KindInvalidAmount:       ErrInvalidAmount,
	KindInvalidState:        ErrInvalidState,
	KindNotFound:            ErrNotFound,
	KindConflictOnSave:      ErrConflictOnSave,
	KindInternalComputation: ErrInternalComputation,
}

type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func InvalidAmount(field, format string, args ...any) error {
	return &Error{Kind: KindInvalidAmount, Field: field, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(field, format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, id string) error {
	return &Error{Kind: KindNotFound, Field: resource, Message: fmt.Sprintf("%s %q does not exist", resource, id)}
}

// Conflict wraps a storage error that prevented the transaction from committing.
func Conflict(err error) error {
	return &Error{Kind: KindConflictOnSave, Message: "concurrent modification, retry the operation", Err: err}
}

func InternalComputation(field, format string, args ...any) error {
	return &Error{Kind: KindInternalComputation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}
