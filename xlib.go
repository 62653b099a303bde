// Copyright 2009 The XGB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xlib

import (
	"bufio"
	"net"

	"github.com/eapache/queue"
)

// Core request opcodes used by the engine itself.
const (
	opChangeWindowAttributes = 2
	opGetProperty            = 20
	opInternAtom             = 16
	opGetInputFocus          = 43
	opQueryFont              = 47
	opCreateGC               = 55
	opFreeGC                 = 60
	opAllocNamedColor        = 85
	opLookupColor            = 92
	opQueryExtension         = 98
	opNoOperation            = 127
)

// Packet types.
const (
	typeError        = 0
	typeReply        = 1
	typeKeymapNotify = 11
	typeGenericEvent = 35
)

// Predefined atoms.
const (
	AtomNone            = 0
	AtomString          = 31
	AtomResourceManager = 23
)

type displayFlags uint

const (
	flagIOError displayFlags = 1 << iota
	flagClosing
	flagClosed
	flagProcConni
	flagOpening
)

// packet is one response read off the wire with its widened sequence number.
type packet struct {
	buf []byte
	seq uint64
}

func (p *packet) isError() bool { return p.buf[0] == typeError }
func (p *packet) isReply() bool { return p.buf[0] == typeReply }

// A Display represents a connection to an X server.
type Display struct {
	name string
	conn net.Conn
	rd   *bufio.Reader

	locking    Locking
	userLocks  int
	userOwner  uint64
	userNotify Cond

	flags displayFlags

	// Output side.
	buf             []byte
	request         uint64
	lastFlushed     uint64
	lastRequestRead uint64
	unflushed       []*pendingRequest
	ownsSocket      bool
	maxRequestLen   uint32
	bigReqLen       uint32
	bigReqOpcode    byte
	syncMargin      uint64
	seqSyncArmed    bool
	synchronous     bool
	writes          int

	// Input side.
	in           wire
	pending      *queue.Queue
	pendingBySeq map[uint64]*pendingRequest
	eventWaiter  bool
	eventNotify  Cond
	replyNotify  Cond
	nextEvent    *packet
	nextResponse *packet
	nextTicket   uint64

	// handlerDepth counts the error handler calls in progress on the
	// goroutine handlerOwner. The user lock keeps other goroutines from
	// running handlers at the same time.
	handlerDepth int
	handlerOwner uint64

	// Event queue.
	head, tail      *qEvent
	qfree           *qEvent
	qlen            int
	nextEventSerial uint64
	liveNodes       int // queued and free nodes
	jar             []*jarEntry
	nextCookie      uint32
	wireToEvent     map[byte]WireToEventFunc
	cookieFuncs     map[byte]CookieFunc

	asyncHandlers []*AsyncHandler
	extensions    []*Extension

	errorHandler   ErrorHandler
	ioErrorHandler IOErrorHandler
	exitHandler    ExitHandler
	ioErr          *IOError

	conni    []*internalConn
	watchers []*ConnectionWatch

	setup         *Setup
	defaultScreen int
	xdefaults     string
	lastID        uint32

	keys           KeyTranslator
	resourceParser ResourceParser
	resources      ResourceDatabase

	cfg Config
}

// DisplayString returns the name the display was opened with.
func (d *Display) DisplayString() string { return d.name }

// Setup returns the connection setup sent by the server.
func (d *Display) Setup() *Setup { return d.setup }

// Screens returns the screens of the display.
func (d *Display) Screens() []Screen { return d.setup.Roots }

// ScreenCount returns the number of screens.
func (d *Display) ScreenCount() int { return len(d.setup.Roots) }

// DefaultScreenNumber returns the screen selected by the display name.
func (d *Display) DefaultScreenNumber() int { return d.defaultScreen }

// DefaultScreen returns the Screen info for the default screen, which is 0 or
// the one given in the display name.
func (d *Display) DefaultScreen() *Screen { return &d.setup.Roots[d.defaultScreen] }

// RootWindow returns the root window of the default screen.
func (d *Display) RootWindow() uint32 { return d.DefaultScreen().Root }

// ResourceManagerString returns the RESOURCE_MANAGER property of the first
// root window as read when the display was opened.
func (d *Display) ResourceManagerString() string { return d.xdefaults }

// ConnectionNumber returns the file descriptor of the connection, or -1 when
// the transport has none. Callers may poll it and then use
// EventsQueued(QueuedAlready) to implement timeouts.
func (d *Display) ConnectionNumber() int {
	return connFd(d.conn)
}

// MaxRequestSize returns the largest request, in 4 byte units, the server
// accepts. BIG-REQUESTS raises it when the server supports the extension.
func (d *Display) MaxRequestSize() uint32 {
	if d.bigReqLen > 0 {
		return d.bigReqLen
	}
	return d.maxRequestLen
}

// NextRequest returns the sequence number the next request will get.
func (d *Display) NextRequest() uint64 {
	d.lock()
	defer d.unlock()
	return d.request + 1
}

// LastKnownRequestProcessed returns the sequence number of the last request
// the server is known to have processed.
func (d *Display) LastKnownRequestProcessed() uint64 {
	d.lock()
	defer d.unlock()
	return d.lastRequestRead
}

// SetErrorHandler installs h for protocol errors and returns the previous
// handler. A nil h restores DefaultErrorHandler.
func (d *Display) SetErrorHandler(h ErrorHandler) ErrorHandler {
	d.lock()
	defer d.unlock()
	old := d.errorHandler
	d.errorHandler = h
	return old
}

// SetIOErrorHandler installs h for connection failures and returns the
// previous handler. A nil h restores DefaultIOErrorHandler.
func (d *Display) SetIOErrorHandler(h IOErrorHandler) IOErrorHandler {
	d.lock()
	defer d.unlock()
	old := d.ioErrorHandler
	d.ioErrorHandler = h
	return old
}

// SetExitHandler installs the handler run after the I/O error handler.
func (d *Display) SetExitHandler(h ExitHandler) ExitHandler {
	d.lock()
	defer d.unlock()
	old := d.exitHandler
	d.exitHandler = h
	return old
}

// AllocID returns a new resource identifier from the range the server
// assigned to this client.
func (d *Display) AllocID() (uint32, error) {
	d.lock()
	defer d.unlock()
	return d.allocID()
}

func (d *Display) allocID() (uint32, error) {
	mask := d.setup.ResourceIDMask
	inc := mask & -mask
	if d.lastID > 0 && d.lastID >= mask-inc+1 {
		return 0, ErrNoMoreIDs
	}
	d.lastID += inc
	return d.lastID | d.setup.ResourceIDBase, nil
}

func (d *Display) checkUsable() error {
	switch {
	case d.flags&flagIOError != 0:
		if d.ioErr != nil {
			return d.ioErr
		}
		return ErrIOError
	case d.flags&flagClosed != 0:
		return ErrClosed
	}
	return nil
}
