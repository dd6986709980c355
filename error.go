package dbus

import (
	"errors"
	"fmt"
	"reflect"
)

// Transport errors occur while establishing or authenticating a
// connection to a bus, before any message has been exchanged.
var (
	// ErrEnvVarNotFound is returned when a bus address environment
	// variable is required but unset.
	ErrEnvVarNotFound = errors.New("dbus: environment variable not found")
	// ErrInvalidAddressFormat is returned when a bus address string
	// cannot be parsed.
	ErrInvalidAddressFormat = errors.New("dbus: invalid bus address format")
	// ErrHandshakeFail is returned when the SASL authentication
	// exchange with the bus fails.
	ErrHandshakeFail = errors.New("dbus: authentication handshake failed")
	// ErrUnexpectedEOF is returned when the transport closes mid-read,
	// short of a complete message or handshake line.
	ErrUnexpectedEOF = errors.New("dbus: unexpected EOF")
	// ErrBadEndianFlag is returned when a message's byte order flag is
	// neither 'l' nor 'B'.
	ErrBadEndianFlag = errors.New("dbus: invalid byte order flag")
)

// Framing errors occur while reading or writing a message's header
// and length-prefixed fields.
var (
	// ErrUnknownHeaderField is returned when a required header field
	// code isn't recognized.
	ErrUnknownHeaderField = errors.New("dbus: unknown header field code")
	// ErrMissingNullTerminator is returned when a string, object path,
	// or signature value is missing its trailing NUL byte.
	ErrMissingNullTerminator = errors.New("dbus: value missing NUL terminator")
	// ErrSignatureTooLong is returned when a signature string exceeds
	// the 255 byte wire limit.
	ErrSignatureTooLong = errors.New("dbus: signature too long")
	// ErrArrayTooLarge is returned when an array's marshaled length
	// exceeds the 64 MiB wire limit.
	ErrArrayTooLarge = errors.New("dbus: array too large")
)

// Codec errors occur while mapping between Go values and the wire
// format, independent of any particular message.
var (
	// ErrSignatureMismatch is returned when a value's signature
	// doesn't match the signature of the data being decoded.
	ErrSignatureMismatch = errors.New("dbus: signature mismatch")
	// ErrSignatureEnd is returned when a signature string ends in the
	// middle of a compound type.
	ErrSignatureEnd = errors.New("dbus: signature ends unexpectedly")
	// ErrEndOfBody is returned when a message body is exhausted before
	// all expected values have been read.
	ErrEndOfBody = errors.New("dbus: end of message body")
	// ErrUnsupportedType is returned when a Go value has no DBus wire
	// representation.
	ErrUnsupportedType = errors.New("dbus: unsupported type")
	// ErrUnsupportedDictBacking is returned when a map's key type isn't
	// a DBus basic type.
	ErrUnsupportedDictBacking = errors.New("dbus: unsupported map key type")
	// ErrI8CannotBeSerialized is returned for int8 values, which have
	// no corresponding DBus wire type.
	ErrI8CannotBeSerialized = errors.New("dbus: int8 has no corresponding DBus type")
	// ErrF32CannotBeSerialized is returned for float32 values, which
	// have no corresponding DBus wire type.
	ErrF32CannotBeSerialized = errors.New("dbus: float32 has no corresponding DBus type")
	// ErrUnsupportedIntWidth is returned for int and uint values,
	// whose width isn't portable across platforms.
	ErrUnsupportedIntWidth = errors.New("dbus: int and uint aren't portable, use fixed width integers")
)

// Runtime errors occur while dispatching or correlating messages on an
// established connection.
var (
	// ErrSignalNotBound is returned when a signal or property change
	// notification type hasn't been registered with
	// [RegisterSignalType] or [RegisterPropertyChangeType].
	ErrSignalNotBound = errors.New("dbus: signal type not registered")
	// ErrInvalidHandle is returned when a value passed for export as
	// an object is not a pointer to a struct.
	ErrInvalidHandle = errors.New("dbus: invalid object handle")
)

// TypeError is the error returned when a type cannot be represented
// in the DBus wire format.
type TypeError struct {
	// Type is the name of the type that caused the error.
	Type string
	// Reason is an explanation of why the type isn't representable by
	// DBus.
	Reason error
}

func (e TypeError) Error() string {
	return fmt.Sprintf("dbus cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error {
	return e.Reason
}

func typeErr(t reflect.Type, reason string, args ...any) error {
	ts := ""
	if t != nil {
		ts = t.String()
	}
	return TypeError{ts, fmt.Errorf(reason, args...)}
}

// RemoteError is the error returned from a failed DBus method call,
// carrying the error name and detail message reported by the remote
// peer.
type RemoteError struct {
	// Name is the error name provided by the remote peer, e.g.
	// "org.freedesktop.DBus.Error.UnknownMethod".
	Name string
	// Detail is the human-readable explanation of what went wrong.
	Detail string
}

func (e RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote error %s", e.Name)
	}
	return fmt.Sprintf("remote error %s: %s", e.Name, e.Detail)
}
