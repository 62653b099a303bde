package xlib

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Cond is a condition variable bound to the lock of the Locking that made it.
type Cond interface {
	Wait()
	Signal()
	Broadcast()
}

// Locking is the lock strategy of a Display. Without WithThreads or
// WithLocking a display uses a no-op strategy and must only be used from one
// goroutine at a time.
type Locking interface {
	Lock()
	Unlock()
	NewCond() Cond
}

type nopLocking struct{}

func (nopLocking) Lock()         {}
func (nopLocking) Unlock()       {}
func (nopLocking) NewCond() Cond { return nopCond{} }

type nopCond struct{}

// Wait can only be reached when a second goroutine holds a reader role, which
// is impossible without real locking.
func (nopCond) Wait()      { throwThreadFail("condition wait without thread support") }
func (nopCond) Signal()    {}
func (nopCond) Broadcast() {}

// MutexLocking returns the strategy installed by WithThreads.
func MutexLocking() Locking {
	return &mutexLocking{}
}

type mutexLocking struct {
	mu sync.Mutex
}

func (l *mutexLocking) Lock()         { l.mu.Lock() }
func (l *mutexLocking) Unlock()       { l.mu.Unlock() }
func (l *mutexLocking) NewCond() Cond { return sync.NewCond(&l.mu) }

// goid returns the id of the calling goroutine. It is only needed while
// user locks are held, so its cost stays off the common path.
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("cannot parse goroutine id: " + err.Error())
	}
	return id
}

// lock takes the display lock, waiting for a user lock held by another
// goroutine to be released.
func (d *Display) lock() {
	d.locking.Lock()
	if d.userLocks > 0 {
		me := goid()
		for d.userLocks > 0 && d.userOwner != me {
			d.userNotify.Wait()
		}
	}
}

// lockIgnoringUserLocks is used when waking up from a blocking read: the
// goroutine that started reading first gets to finish, whatever user locks
// were taken meanwhile.
func (d *Display) lockIgnoringUserLocks() {
	d.locking.Lock()
}

func (d *Display) unlock() {
	d.locking.Unlock()
}

// holdUserLock must be called with the display locked.
func (d *Display) holdUserLock() {
	me := goid()
	for d.userLocks > 0 && d.userOwner != me {
		d.userNotify.Wait()
	}
	d.userLocks++
	d.userOwner = me
}

// releaseUserLock must be called with the display locked.
func (d *Display) releaseUserLock() {
	if d.userLocks == 0 {
		return
	}
	d.userLocks--
	if d.userLocks == 0 {
		d.userOwner = 0
		d.userNotify.Broadcast()
	}
}

// LockDisplay starts a critical section: other goroutines block on any call
// on d until the matching UnlockDisplay. Calls nest.
func (d *Display) LockDisplay() {
	d.lock()
	d.holdUserLock()
	d.unlock()
}

// UnlockDisplay ends a critical section started by LockDisplay.
func (d *Display) UnlockDisplay() {
	d.lock()
	d.releaseUserLock()
	d.unlock()
}
