package xlib

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentRoundTrips(t *testing.T) {
	defer leaksMonitor("concurrent round trips").checkTesting(t)

	srv := newXServer()
	d, _ := openTestDisplay(t, srv, WithThreads())
	defer d.Close()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				focus, _, err := d.GetInputFocus()
				if err != nil {
					return err
				}
				if focus != 1 {
					return fmt.Errorf("focus = %d", focus)
				}
				name := fmt.Sprintf("ATOM_%d_%d", i, j%5)
				atom, err := d.InternAtom(false, name)
				if err != nil {
					return err
				}
				again, err := d.InternAtom(true, name)
				if err != nil {
					return err
				}
				if atom != again {
					return fmt.Errorf("%s interned as %d and %d", name, atom, again)
				}
				if err := d.NoOperation(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Every goroutine ended with a request nobody waited for.
	require.NoError(t, d.Sync(false))
	assert.Equal(t, d.NextRequest()-1, d.LastKnownRequestProcessed())
	assert.Len(t, srv.atoms, 8*5)
}

func TestConcurrentEventsAndReplies(t *testing.T) {
	defer leaksMonitor("events and replies").checkTesting(t)

	srv := newXServer()
	// Every NoOperation produces an event.
	srv.setHandler(func(req xRequest) ([]byte, bool) {
		if req.opcode == opNoOperation {
			return xEvent(2, req.seq), true
		}
		return nil, false
	})
	d, _ := openTestDisplay(t, srv, WithThreads())
	defer d.Close()

	const n = 100
	var g errgroup.Group
	g.Go(func() error {
		var last uint64
		for i := 0; i < n; i++ {
			ev, err := d.NextEvent()
			if err != nil {
				return err
			}
			if ev.Serial <= last {
				return fmt.Errorf("event serial %d after %d", ev.Serial, last)
			}
			last = ev.Serial
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < n; i++ {
			if err := d.NoOperation(); err != nil {
				return err
			}
			if _, _, err := d.GetInputFocus(); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, d.QLength())
}

func TestReplyReadByOtherGoroutine(t *testing.T) {
	defer leaksMonitor("reply handoff").checkTesting(t)

	srv := dataServer()
	d, conn := openTestDisplay(t, srv, WithThreads())
	defer d.Close()

	// Hold the replies back until both goroutines wait.
	srv.setHandler(func(req xRequest) ([]byte, bool) {
		switch req.opcode {
		case testOpData, opGetInputFocus:
			return nil, true
		}
		return nil, false
	})
	a, err := d.SendRequest(testOpData, 0, nil, nil, RequestReply)
	require.NoError(t, err)
	b, err := d.SendRequest(opGetInputFocus, 0, nil, nil, RequestReply)
	require.NoError(t, err)

	var g errgroup.Group
	var ra, rb *Reply
	// b waits first, so it reads a's reply on the way to its own.
	g.Go(func() error {
		var err error
		rb, err = b.Reply()
		return err
	})
	require.Eventually(t, func() bool {
		d.lock()
		defer d.unlock()
		return d.in.reading
	}, time.Second, time.Millisecond)
	g.Go(func() error {
		var err error
		ra, err = a.Reply()
		return err
	})

	focus := make([]byte, 4)
	put32(focus, 1)
	require.NoError(t, conn.Inject(
		xReply(uint16(a.Sequence()), 3, nil, []byte("0123456789")),
		xReply(uint16(b.Sequence()), 1, focus, nil),
	))
	require.NoError(t, g.Wait())
	srv.setHandler(nil)

	assert.Equal(t, 12, ra.Remaining())
	assert.Equal(t, uint32(1), get32(rb.Header()[8:]))
	assert.Equal(t, b.Sequence(), d.LastKnownRequestProcessed())
}

func TestLaterReplyFirstIsFatal(t *testing.T) {
	defer leaksMonitor("later reply first").checkTesting(t)

	srv := dataServer()
	ioErrs := make(chan *IOError, 2)
	d, conn := openTestDisplay(t, srv, WithThreads(),
		WithIOErrorHandler(func(_ *Display, err *IOError) { ioErrs <- err }))
	defer d.Close()

	srv.setHandler(func(req xRequest) ([]byte, bool) {
		switch req.opcode {
		case testOpData, opGetInputFocus:
			return nil, true
		}
		return nil, false
	})
	a, err := d.SendRequest(testOpData, 0, nil, nil, RequestReply)
	require.NoError(t, err)
	b, err := d.SendRequest(opGetInputFocus, 0, nil, nil, RequestReply)
	require.NoError(t, err)

	errA := make(chan error, 1)
	errB := make(chan error, 1)
	// a reads, b waits behind it.
	go func() {
		_, err := a.Reply()
		errA <- err
	}()
	require.Eventually(t, func() bool {
		d.lock()
		defer d.unlock()
		return d.in.reading
	}, time.Second, time.Millisecond)
	go func() {
		_, err := b.Reply()
		errB <- err
	}()
	require.Eventually(t, func() bool {
		d.lock()
		defer d.unlock()
		return b.req.waiter != 0
	}, time.Second, time.Millisecond)

	// b's reply says the server is done with a, which never got one.
	focus := make([]byte, 4)
	put32(focus, 1)
	require.NoError(t, conn.Inject(
		xReply(uint16(b.Sequence()), 1, focus, nil),
		xReply(uint16(a.Sequence()), 3, nil, []byte("0123456789")),
	))

	for _, ch := range []chan error{errA, errB} {
		select {
		case err := <-ch:
			assert.ErrorIs(t, err, ErrIOError)
		case <-time.After(5 * time.Second):
			t.Fatal("reply wait did not fail")
		}
	}
	require.Len(t, ioErrs, 1)
	ioErr := <-ioErrs
	assert.EqualError(t, ioErr.Err, "reply expected but none received")
	assert.Equal(t, b.Sequence(), ioErr.Requests)
	assert.ErrorIs(t, d.NoOperation(), ErrIOError)
}

func TestLockDisplay(t *testing.T) {
	defer leaksMonitor("lock display").checkTesting(t)

	srv := newXServer()
	d, _ := openTestDisplay(t, srv, WithThreads())
	defer d.Close()

	d.LockDisplay()
	d.LockDisplay()
	// Calls from the holder go through.
	require.NoError(t, d.NoOperation())

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		return d.NoOperation()
	})

	d.UnlockDisplay()
	select {
	case <-done:
		t.Fatal("request went through while the display was locked")
	case <-time.After(50 * time.Millisecond):
	}
	before := d.NextRequest()

	d.UnlockDisplay()
	require.NoError(t, g.Wait())
	assert.Equal(t, before+1, d.NextRequest())
}

func TestWaitWithoutThreadsPanics(t *testing.T) {
	PrintLog = false
	defer func() { PrintLog = true }()

	var l nopLocking
	assert.PanicsWithError(t,
		"xlib: condition wait without thread support "+
			"(Most likely this is a multi-threaded client and InitThreads has not been called)",
		func() { l.NewCond().Wait() })
}
