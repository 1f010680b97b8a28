// Package ggerr defines the closed error-kind taxonomy shared by every
// component of the core bus. Every public operation in pkg/corebus,
// pkg/mqttdispatch and the well-known-interface daemons returns either a
// success value or an error whose Kind is read with KindOf — never a bare
// string.
package ggerr

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy from spec.md §6/§7: a closed set of failure
// semantics every component must be able to report. Its numeric value is
// also what pkg/corebus/wire writes as a frame's error_kind byte, so the
// order of the constants below must stay stable.
type Kind uint8

const (
	Ok Kind = iota
	Invalid
	NoMem
	NoEntry
	NoConn
	Range
	Unsupported
	Parse
	Config
	Remote
	Timeout
	Fatal
	Failure
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case Invalid:
		return "Invalid"
	case NoMem:
		return "NoMem"
	case NoEntry:
		return "NoEntry"
	case NoConn:
		return "NoConn"
	case Range:
		return "Range"
	case Unsupported:
		return "Unsupported"
	case Parse:
		return "Parse"
	case Config:
		return "Config"
	case Remote:
		return "Remote"
	case Timeout:
		return "Timeout"
	case Fatal:
		return "Fatal"
	case Failure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Error makes a bare Kind usable as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// Error wraps a Kind with a human-readable message and an optional
// underlying cause, the Go analogue of the source's "error code + out
// parameter" convention (spec.md §9).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets callers write errors.Is(err, ggerr.NoConn) instead of a type
// assertion followed by a field comparison.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an underlying error without discarding it.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// KindOf extracts the Kind carried by err, defaulting to Failure for
// errors that never passed through this package (e.g. raw I/O errors
// surfaced by net.Conn).
func KindOf(err error) Kind {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Failure
}

// RemoteKind extracts the sub-kind carried by a Remote error: the
// error_kind the server reported, as opposed to the Remote wrapper a
// client uses to distinguish "the peer said no" from a local transport
// failure (spec.md §4.3's two error channels, §7's "surfaced as Remote
// with the sub-kind exposed"). Returns Failure if err is not a Remote
// error.
func RemoteKind(err error) Kind {
	var e *Error
	if !errors.As(err, &e) || e.Kind != Remote {
		return Failure
	}
	return KindOf(e.Cause)
}

// RelayKind is KindOf, except a Remote error (one hop's corebus.Call
// failure) unwraps to its carried sub-kind rather than the Remote
// wrapper itself — the shape a handler needs when it relays a
// client-side error onward as its own RespondError (as
// aws.greengrass.ipc.private's GetSystemConfig does when gg_config's
// read fails), so the original error_kind survives the relay instead of
// collapsing to Remote at every hop.
func RelayKind(err error) Kind {
	if k := KindOf(err); k == Remote {
		return RemoteKind(err)
	}
	return KindOf(err)
}
