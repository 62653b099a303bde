package xlib

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

var (
	// ErrIOError is matched by every error returned after the connection to
	// the server failed. The display is unusable once it is seen.
	ErrIOError = errors.New("xlib: fatal I/O error")

	ErrClosed          = errors.New("xlib: display is closed")
	ErrNoDisplay       = errors.New("xlib: no display name and no $DISPLAY environment variable")
	ErrRequestTooLarge = errors.New("xlib: request does not fit in the output buffer or exceeds the server's maximum request length")
	ErrNoMoreIDs       = errors.New("xlib: there are no more available resource identifiers")
	ErrReplyOverrun    = errors.New("xlib: too much data requested from reply")
	ErrNotChecked      = errors.New("xlib: cookie was not created by a checked request")
	ErrNoReply         = errors.New("xlib: request does not generate a reply")
	ErrReplyTaken      = errors.New("xlib: reply was already taken from this cookie")
	ErrNoCollaborator  = errors.New("xlib: no implementation installed for this operation")
	ErrNoExtension     = errors.New("xlib: extension is not present on the server")
	ErrInErrorHandler  = errors.New("xlib: cannot wait for the server inside an error handler")
)

// Core protocol error codes.
const (
	BadRequest        = 1
	BadValue          = 2
	BadWindow         = 3
	BadPixmap         = 4
	BadAtom           = 5
	BadCursor         = 6
	BadFont           = 7
	BadMatch          = 8
	BadDrawable       = 9
	BadAccess         = 10
	BadAlloc          = 11
	BadColor          = 12
	BadGC             = 13
	BadIDChoice       = 14
	BadName           = 15
	BadLength         = 16
	BadImplementation = 17
)

var errorNames = [...]string{
	BadRequest:        "BadRequest",
	BadValue:          "BadValue",
	BadWindow:         "BadWindow",
	BadPixmap:         "BadPixmap",
	BadAtom:           "BadAtom",
	BadCursor:         "BadCursor",
	BadFont:           "BadFont",
	BadMatch:          "BadMatch",
	BadDrawable:       "BadDrawable",
	BadAccess:         "BadAccess",
	BadAlloc:          "BadAlloc",
	BadColor:          "BadColor",
	BadGC:             "BadGC",
	BadIDChoice:       "BadIDChoice",
	BadName:           "BadName",
	BadLength:         "BadLength",
	BadImplementation: "BadImplementation",
}

// ProtocolError is an error reported by the server for one request. It is
// never fatal.
type ProtocolError struct {
	Serial      uint64
	ResourceID  uint32
	Code        byte
	MajorOpcode byte
	MinorOpcode uint16

	// Raw is the 32 byte wire packet.
	Raw []byte
}

func newProtocolError(p *packet) *ProtocolError {
	return &ProtocolError{
		Serial:      p.seq,
		Code:        p.buf[1],
		ResourceID:  get32(p.buf[4:]),
		MinorOpcode: get16(p.buf[8:]),
		MajorOpcode: p.buf[10],
		Raw:         p.buf[:32],
	}
}

// Name returns the symbolic name of the error code, or "unknown error" for
// codes outside the core range.
func (e *ProtocolError) Name() string {
	if int(e.Code) < len(errorNames) && errorNames[e.Code] != "" {
		return errorNames[e.Code]
	}
	return "unknown error"
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("X error %s (%d): major opcode %d, minor opcode %d, resource 0x%x, serial %d",
		e.Name(), e.Code, e.MajorOpcode, e.MinorOpcode, e.ResourceID, e.Serial)
}

// expected reports whether the error is one a reply wait turns into a plain
// failed call without consulting any handler.
func (e *ProtocolError) expected() bool {
	switch e.Code {
	case BadName:
		switch e.MajorOpcode {
		case opLookupColor, opAllocNamedColor:
			return true
		}
	case BadFont:
		return e.MajorOpcode == opQueryFont
	case BadAlloc, BadAccess:
		return true
	}
	return false
}

// IOError describes the failure of the connection to the server.
type IOError struct {
	Display   string
	Requests  uint64
	Processed uint64
	Queued    int
	Err       error
}

func (e *IOError) Error() string {
	if errors.Is(e.Err, syscall.EPIPE) {
		return fmt.Sprintf("X connection to %s broken (explicit kill or server shutdown)", e.Display)
	}
	return fmt.Sprintf("fatal IO error %v on X server %q after %d requests (%d known processed) with %d events remaining",
		e.Err, e.Display, e.Requests, e.Processed, e.Queued)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIOError }

// SetupError is returned by Open when the server refuses the connection or
// sends a malformed connection setup.
type SetupError struct {
	Display string
	Reason  string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("xlib: connection to %q refused: %s", e.Display, e.Reason)
}

// InternalError is the panic value of a broken sequence or request queue
// invariant. Continuing would hand replies to the wrong caller.
type InternalError struct {
	Msg  string
	Hint string
}

func (e *InternalError) Error() string {
	if e.Hint == "" {
		return "xlib: " + e.Msg
	}
	return "xlib: " + e.Msg + " (" + e.Hint + ")"
}

func throwThreadFail(msg string) {
	err := &InternalError{
		Msg:  msg,
		Hint: "Most likely this is a multi-threaded client and InitThreads has not been called",
	}
	logger.Error(err.Msg, "hint", err.Hint)
	panic(err)
}

func throwExtlibFail(msg string) {
	err := &InternalError{
		Msg:  msg,
		Hint: "This is most likely caused by a broken X extension library",
	}
	logger.Error(err.Msg, "hint", err.Hint)
	panic(err)
}

// ErrorHandler receives protocol errors nobody else claimed. It runs with the
// display unlocked, so it may queue requests, but anything that waits for
// the server (replies, Check, Sync, blocking event reads) fails with
// ErrInErrorHandler until it returns. Synchronous mode and the round trips
// guarding the sequence wrap are postponed likewise.
type ErrorHandler func(d *Display, err *ProtocolError) int

// IOErrorHandler is told about the connection failure. The display is freed
// after it and the exit handler return.
type IOErrorHandler func(d *Display, err *IOError)

// ExitHandler runs after the IOErrorHandler.
type ExitHandler func(d *Display, err *IOError)

var osExit = os.Exit

// DefaultErrorHandler logs the error and exits the process, except for
// BadImplementation which is ignored.
func DefaultErrorHandler(d *Display, err *ProtocolError) int {
	if err.Code == BadImplementation {
		return 0
	}
	logger.Error("X Error of failed request",
		"error", err.Name(),
		"code", err.Code,
		"major", err.MajorOpcode,
		"minor", err.MinorOpcode,
		"resource", fmt.Sprintf("0x%x", err.ResourceID),
		"serial", err.Serial)
	osExit(1)
	return 0
}

// DefaultIOErrorHandler logs the failure and exits the process.
func DefaultIOErrorHandler(d *Display, err *IOError) {
	logger.Error(err.Error())
	osExit(1)
}

// DefaultExitHandler exits the process.
func DefaultExitHandler(d *Display, err *IOError) {
	osExit(1)
}
