package memscan

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by engine operations. They are usually
// returned wrapped with address or count context; test for them with
// errors.Is.
var (
	// ErrSessionClosed is returned by every operation invoked on a
	// detached session.
	ErrSessionClosed = errors.New("session closed")

	// ErrPartialRead is returned when fewer bytes than requested could
	// be read.
	ErrPartialRead = errors.New("partial read")

	// ErrPartialWrite is returned when fewer bytes than requested could
	// be written.
	ErrPartialWrite = errors.New("partial write")

	// ErrInvalidAddress is returned when a typed read cannot obtain a
	// full value at the given address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrIndexOutOfRange is returned when a candidate index does not
	// exist in the set.
	ErrIndexOutOfRange = errors.New("candidate index out of range")

	// ErrMalformedData is returned when a buffer is too short to decode
	// a value from.
	ErrMalformedData = errors.New("malformed value data")

	// ErrUnsupportedKind is returned for value kind names outside the
	// supported set.
	ErrUnsupportedKind = errors.New("unsupported value kind")

	// ErrKindMismatch is returned when a value's kind does not match the
	// kind a candidate set was scanned with.
	ErrKindMismatch = errors.New("value kind mismatch")
)

// ErrProcessNotFound is returned by attach when no process with the
// given pid exists.
type ErrProcessNotFound struct {
	Pid int
}

func (err ErrProcessNotFound) Error() string {
	return fmt.Sprintf("no process with pid %d", err.Pid)
}

// ErrAccessDenied is returned by attach when the process exists but a
// read/write handle to it could not be opened.
type ErrAccessDenied struct {
	Pid int
}

func (err ErrAccessDenied) Error() string {
	return fmt.Sprintf("could not open process %d: access denied", err.Pid)
}
