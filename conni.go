package xlib

import (
	"github.com/pkg/errors"
)

// InternalConnProc processes input on an internal connection. It runs with
// the display unlocked.
type InternalConnProc func(d *Display, fd int)

// ConnectionWatchFunc is told when an internal connection is opened or
// closed. It runs with the display unlocked, so it may call methods of d,
// and other goroutines are kept out until it returns. Internal connections
// are not processed meanwhile.
type ConnectionWatchFunc func(d *Display, fd int, opening bool)

// ConnectionWatch is a registered ConnectionWatchFunc.
type ConnectionWatch struct {
	fn ConnectionWatchFunc
}

type internalConn struct {
	fd   int
	proc InternalConnProc
}

// AddInternalConnection registers a file descriptor the library reads in
// addition to the X connection, for example the one of an input method.
// proc is called whenever fd is readable while the display waits.
func (d *Display) AddInternalConnection(fd int, proc InternalConnProc) {
	d.lock()
	defer d.unlock()
	d.conni = append(d.conni, &internalConn{fd: fd, proc: proc})
	d.notifyWatchers(d.watchers, fd, true)
}

// RemoveInternalConnection unregisters fd.
func (d *Display) RemoveInternalConnection(fd int) {
	d.lock()
	defer d.unlock()
	for i, c := range d.conni {
		if c.fd != fd {
			continue
		}
		d.conni = append(d.conni[:i], d.conni[i+1:]...)
		d.notifyWatchers(d.watchers, fd, false)
		return
	}
}

// InternalConnectionNumbers returns the registered file descriptors.
func (d *Display) InternalConnectionNumbers() []int {
	d.lock()
	defer d.unlock()
	fds := make([]int, len(d.conni))
	for i, c := range d.conni {
		fds[i] = c.fd
	}
	return fds
}

// ProcessInternalConnection runs the procedure of fd. Clients that wait on
// the descriptors themselves call it when fd becomes readable.
func (d *Display) ProcessInternalConnection(fd int) {
	d.lock()
	defer d.unlock()
	for _, c := range d.conni {
		if c.fd == fd {
			d.processConni(c)
			return
		}
	}
}

// AddConnectionWatch registers fn and tells it about the internal
// connections that already exist.
func (d *Display) AddConnectionWatch(fn ConnectionWatchFunc) *ConnectionWatch {
	d.lock()
	defer d.unlock()
	w := &ConnectionWatch{fn: fn}
	d.watchers = append(d.watchers, w)
	fds := make([]int, len(d.conni))
	for i, c := range d.conni {
		fds[i] = c.fd
	}
	for _, fd := range fds {
		d.notifyWatchers([]*ConnectionWatch{w}, fd, true)
	}
	return w
}

// RemoveConnectionWatch unregisters w.
func (d *Display) RemoveConnectionWatch(w *ConnectionWatch) {
	d.lock()
	defer d.unlock()
	for i, x := range d.watchers {
		if x == w {
			d.watchers = append(d.watchers[:i], d.watchers[i+1:]...)
			return
		}
	}
}

// notifyWatchers calls watchers with the display unlocked but user-locked.
// Must be called with the display locked.
func (d *Display) notifyWatchers(watchers []*ConnectionWatch, fd int, opening bool) {
	if len(watchers) == 0 {
		return
	}
	watchers = append([]*ConnectionWatch(nil), watchers...)
	procConni := d.flags & flagProcConni
	d.flags |= flagProcConni
	d.holdUserLock()
	d.unlock()
	for _, w := range watchers {
		w.fn(d, fd, opening)
	}
	d.lock()
	d.releaseUserLock()
	d.flags = d.flags&^flagProcConni | procConni
}

// processConni runs c.proc with the display unlocked. Internal connections
// are not polled again until it returns.
func (d *Display) processConni(c *internalConn) {
	d.flags |= flagProcConni
	d.unlock()
	c.proc(d, c.fd)
	d.lock()
	d.flags &^= flagProcConni
}

// checkInternalConnections processes every internal connection that is
// readable. It returns false if the display became unusable.
// Must be called with the display locked.
func (d *Display) checkInternalConnections() bool {
	if d.flags&flagIOError != 0 {
		return false
	}
	if d.flags&flagProcConni != 0 || len(d.conni) == 0 {
		return true
	}
	fds := make([]int, len(d.conni))
	for i, c := range d.conni {
		fds[i] = c.fd
	}
	ready, err := pollReadable(fds)
	if err != nil {
		d.ioError(errors.Wrap(err, "polling internal connections"))
		return false
	}
	for _, fd := range ready {
		for _, c := range d.conni {
			if c.fd == fd {
				d.processConni(c)
				break
			}
		}
		if d.flags&flagIOError != 0 {
			return false
		}
	}
	return true
}
