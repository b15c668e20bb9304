// Package apperr defines the error taxonomy shared by all state slices.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrDuplicateName = errors.New("duplicate name")
	ErrAmbiguous     = errors.New("ambiguous match")
	ErrInvalid       = errors.New("invalid argument")
	ErrUnsupported   = errors.New("unsupported")
)

// Kind classifies an error for the presentation layer.
type Kind string

const (
	KindPersistence          Kind = "persistence"
	KindSearch               Kind = "search"
	KindAmbiguousByID        Kind = "ambiguous_by_id"
	KindAmbiguousByDate      Kind = "ambiguous_by_date"
	KindAmbiguousByAlternate Kind = "ambiguous_by_alternate"
	KindNotFound             Kind = "not_found"
	KindDuplicateName        Kind = "duplicate_name"
	KindInvalid              Kind = "invalid"
	KindNative               Kind = "native"
)

// Error carries a kind and a user-facing message. Err, when set, is one of
// the sentinels above or an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateName):
		return KindDuplicateName
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	}
	return ""
}
