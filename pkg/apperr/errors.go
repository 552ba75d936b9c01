// Package apperr defines the error taxonomy shared by the workbook, locator
// and ledger packages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	NotFound             Kind = "not_found"
	NoCapacity           Kind = "no_capacity"
	InsufficientCapacity Kind = "insufficient_capacity"
	LimitExceeded        Kind = "limit_exceeded"
	InvalidInput         Kind = "invalid_input"
	Unsupported          Kind = "unsupported"
	IOFailure            Kind = "io_failure"
)

// Sentinels for errors.Is checks. Any *Error of the same Kind matches.
var (
	ErrNotFound             = &Error{Kind: NotFound}
	ErrNoCapacity           = &Error{Kind: NoCapacity}
	ErrInsufficientCapacity = &Error{Kind: InsufficientCapacity}
	ErrLimitExceeded        = &Error{Kind: LimitExceeded}
	ErrInvalidInput         = &Error{Kind: InvalidInput}
	ErrUnsupported          = &Error{Kind: Unsupported}
	ErrIOFailure            = &Error{Kind: IOFailure}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "locate.empty_run"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Unclassified errors are reported as IOFailure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return IOFailure
}
