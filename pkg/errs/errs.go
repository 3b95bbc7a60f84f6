// Package errs defines the error kinds surfaced at the evaluation core's
// boundary (spec'd kinds: invalid argument, internal, unavailable,
// unimplemented), so callers can branch on kind without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for translation to a wire status at the RPC
// surface. The core itself never depends on any particular wire encoding.
type Kind int

const (
	// Unknown is the zero value; never returned by this package's
	// constructors.
	Unknown Kind = iota
	// InvalidArgument covers missing api-key, missing repo-key, unknown
	// flag, type mismatch, malformed request.
	InvalidArgument
	// Internal covers empty rule ASTs, empty default values, malformed
	// trees, unsupported call variants, serialisation failures.
	Internal
	// Unavailable covers the distribution backend being unreachable;
	// never surfaced on the host evaluation path.
	Unavailable
	// Unimplemented covers operations the sidecar does not service.
	Unimplemented
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case Internal:
		return "internal"
	case Unavailable:
		return "unavailable"
	case Unimplemented:
		return "unimplemented"
	default:
		return "unknown"
	}
}

// Error is a kinded error.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, &errs.Error{Kind: errs.InvalidArgument}) matches any
// error of that kind — but the more idiomatic check is
// KindOf(err) == errs.InvalidArgument.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), err: err}
}

// InvalidArgumentf builds an InvalidArgument error.
func InvalidArgumentf(format string, args ...any) *Error {
	return newf(InvalidArgument, nil, format, args...)
}

// InvalidArgumentWrap wraps err as an InvalidArgument error with added
// context.
func InvalidArgumentWrap(err error, format string, args ...any) *Error {
	return newf(InvalidArgument, err, format, args...)
}

// Internalf builds an Internal error.
func Internalf(format string, args ...any) *Error {
	return newf(Internal, nil, format, args...)
}

// InternalWrap wraps err as an Internal error with added context.
func InternalWrap(err error, format string, args ...any) *Error {
	return newf(Internal, err, format, args...)
}

// Unavailablef builds an Unavailable error.
func Unavailablef(format string, args ...any) *Error {
	return newf(Unavailable, nil, format, args...)
}

// UnavailableWrap wraps err as an Unavailable error with added context.
func UnavailableWrap(err error, format string, args ...any) *Error {
	return newf(Unavailable, err, format, args...)
}

// Unimplementedf builds an Unimplemented error.
func Unimplementedf(format string, args ...any) *Error {
	return newf(Unimplemented, nil, format, args...)
}

// KindOf extracts the Kind of err, or Unknown if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
