package xlib

import (
	"io"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
)

// Close frees the default GCs, waits for the server to process every
// request, runs the extensions' close hooks and shuts the connection down.
// Calling Close again, also from a close hook, does nothing.
func (d *Display) Close() error {
	d.lock()
	if d.flags&(flagClosing|flagClosed) != 0 {
		d.unlock()
		return nil
	}
	d.flags |= flagClosing
	if d.flags&flagIOError != 0 {
		// Already freed by ioError.
		d.flags |= flagClosed
		d.unlock()
		return nil
	}
	screens := d.setup.Roots
	d.unlock()

	var result error
	for i := range screens {
		if screens[i].DefaultGC == 0 {
			continue
		}
		fixed := make([]byte, 4)
		put32(fixed, screens[i].DefaultGC)
		if _, err := d.SendRequest(opFreeGC, 0, fixed, nil, RequestVoid); err != nil {
			result = err
			break
		}
	}
	if err := d.Sync(true); err != nil && result == nil {
		result = err
	}

	for _, ext := range d.Extensions() {
		if hook, ok := ext.hooks.(CloseHook); ok {
			if err := hook.OnClose(d, &ext.Codes); err != nil {
				logger.Warn("extension close hook failed", "extension", ext.Name, "err", err)
			}
		}
	}

	d.lock()
	defer d.unlock()
	if d.flags&flagIOError == 0 && d.request != d.lastRequestRead {
		if err := d.syncLocked(false); err != nil && result == nil {
			result = err
		}
	}
	d.freeDisplayStructure()
	d.flags |= flagClosed
	if errors.Is(result, ErrIOError) {
		// The connection is gone either way.
		return nil
	}
	return result
}

// ioError marks the display unusable and tells the I/O error and exit
// handlers. The handlers run with the display unlocked but user-locked.
// The display is freed afterwards and every waiter is woken up.
// Must be called with the display locked.
func (d *Display) ioError(cause error) error {
	if d.flags&flagIOError != 0 {
		return d.checkUsable()
	}
	if cause == nil {
		cause = io.ErrUnexpectedEOF
	}
	d.flags |= flagIOError
	d.ioErr = &IOError{
		Display:   d.name,
		Requests:  d.request,
		Processed: d.lastRequestRead,
		Queued:    d.qlen,
		Err:       cause,
	}
	if d.in.err == nil {
		d.in.err = cause
	}

	// Open reports the failure through its error instead.
	if d.flags&flagOpening == 0 {
		ioHandler := d.ioErrorHandler
		if ioHandler == nil {
			ioHandler = DefaultIOErrorHandler
		}
		exitHandler := d.exitHandler
		if exitHandler == nil {
			exitHandler = DefaultExitHandler
		}
		d.holdUserLock()
		d.unlock()
		ioHandler(d, d.ioErr)
		exitHandler(d, d.ioErr)
		d.lock()
		d.releaseUserLock()
	}

	d.freeDisplayStructure()
	return d.ioErr
}

// freeDisplayStructure closes the connection and drops every queue. It may
// run more than once.
// Must be called with the display locked.
func (d *Display) freeDisplayStructure() {
	if d.conn != nil {
		d.conn.Close()
	}
	d.buf = d.buf[:0]
	d.unflushed = nil
	d.pending = queue.New()
	d.pendingBySeq = make(map[uint64]*pendingRequest)
	d.in.events = queue.New()
	d.in.replies = make(map[uint64][]*packet)
	d.nextEvent = nil
	d.nextResponse = nil

	d.releaseEvents()
	d.conni = nil
	d.watchers = nil
	d.asyncHandlers = nil

	d.in.readNotify.Broadcast()
	d.replyNotify.Broadcast()
	d.eventNotify.Broadcast()
	d.userNotify.Broadcast()
}
