// Package diag implements the error-kind taxonomy of spec.md §7. Every
// lowering and transformation function in this module returns a plain
// error; when that error needs to carry a kind and a source location for
// the outermost driver to report, it wraps one of the sentinels below with
// fmt.Errorf("%w", ...) in the same style the teacher's packages use for
// their own error values (no third-party error library is used anywhere in
// the example pack for this purpose, so none is introduced here either).
package diag

import (
	"errors"
	"fmt"
)

// The four error kinds named by spec.md §7. Callers compare against these
// with errors.Is.
var (
	// ErrInvalidInput marks an AST construct the core does not support, or
	// a required field missing from it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternalInvariant marks a lookup or invariant that must have held
	// by construction but didn't; it indicates a bug in the core itself.
	ErrInternalInvariant = errors.New("internal invariant violation")

	// ErrArithmeticOverflow marks a constant expression that overflowed
	// the target width during immediate folding.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrSerialization marks a failure writing or reading the binary
	// container.
	ErrSerialization = errors.New("serialization failure")
)

// Site describes where, in source terms, an error occurred.
type Site struct {
	// Op, if non-empty, names the opcode or pass that raised the error.
	Op string
	// Line and Col are 1-based, or 0 if unknown (see ast.Pos).
	Line, Col int
}

func (s Site) String() string {
	if s.Line == 0 {
		if s.Op == "" {
			return "<unknown>"
		}
		return s.Op
	}
	if s.Op == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Col)
	}
	return fmt.Sprintf("%s (%d:%d)", s.Op, s.Line, s.Col)
}

// Error is a diagnostic wrapping one of the sentinel kinds above with a
// source site and a human-readable message. The outermost pipeline driver
// (internal/maincmd) is the only place this is rendered, as a single
// stderr line, per spec.md §7 "User-visible behavior".
type Error struct {
	Site Site
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Site, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Site, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Wrap builds an *Error for the given sentinel kind, site, and message.
func Wrap(kind error, site Site, format string, args ...interface{}) *Error {
	return &Error{Site: site, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// InvalidInput is a convenience constructor for the common case.
func InvalidInput(site Site, format string, args ...interface{}) *Error {
	return Wrap(ErrInvalidInput, site, format, args...)
}

// Internal is a convenience constructor for internal-invariant-violation
// errors; these should never surface in a correct build of the core, and
// when they do, the message should be specific enough to find the bug.
func Internal(site Site, format string, args ...interface{}) *Error {
	return Wrap(ErrInternalInvariant, site, format, args...)
}

// Overflow is a convenience constructor for arithmetic-overflow errors.
func Overflow(site Site, format string, args ...interface{}) *Error {
	return Wrap(ErrArithmeticOverflow, site, format, args...)
}

// SerializationFailure is a convenience constructor for serialization
// errors, generally wrapping an underlying I/O error.
func SerializationFailure(cause error) *Error {
	return &Error{Site: Site{Op: "serialize"}, Kind: ErrSerialization, Msg: cause.Error()}
}
