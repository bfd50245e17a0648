// Package goneserr defines the named error categories the emulator core can
// surface to its caller (ROM loading failures, unsupported hardware
// features). Runtime bus access never uses these; invalid reads/writes are
// handled silently per the NES bus contract.
package goneserr

import "fmt"

// Kind identifies which of the five error categories a failure belongs to.
type Kind int

const (
	// IOFailure means the ROM file could not be opened or read.
	IOFailure Kind = iota
	// HeaderInvalid means the iNES header magic or size fields are impossible.
	HeaderInvalid
	// UnsupportedMapper means the cartridge declares a mapper number outside {0, 1}.
	UnsupportedMapper
	// UnsupportedFeature means a recognized-but-unimplemented combination was requested,
	// e.g. four-screen mirroring without cartridge-supplied VRAM, or NES 2.0 submappers.
	UnsupportedFeature
	// AllocationFailure means cartridge ROM/RAM buffers could not be allocated.
	AllocationFailure
)

func (k Kind) String() string {
	switch k {
	case IOFailure:
		return "io failure"
	case HeaderInvalid:
		return "header invalid"
	case UnsupportedMapper:
		return "unsupported mapper"
	case UnsupportedFeature:
		return "unsupported feature"
	case AllocationFailure:
		return "allocation failure"
	default:
		return "unknown error"
	}
}

// Error wraps a causal error with its Kind.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ge, ok := err.(*Error); ok {
		e = ge
	} else {
		return false
	}
	return e.Kind == kind
}
