package xlib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventTypes(t *testing.T, d *Display, n int) []byte {
	t.Helper()
	var res []byte
	for i := 0; i < n; i++ {
		ev, err := d.NextEvent()
		require.NoError(t, err)
		res = append(res, ev.Type)
	}
	return res
}

func TestNextEvent(t *testing.T) {
	defer leaksMonitor("next event").checkTesting(t)

	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	seq := srv.lastSeq()
	require.NoError(t, conn.Inject(xEvent(2, seq), xEvent(3, seq), xEvent(4|0x80, seq)))

	ev, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(2), ev.Type)
	assert.False(t, ev.SendEvent)
	assert.Equal(t, uint64(seq), ev.Serial)
	assert.Len(t, ev.Raw, 32)

	assert.Equal(t, []byte{3}, eventTypes(t, d, 1))
	ev, err = d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(4), ev.Type)
	assert.True(t, ev.SendEvent)
	assert.Equal(t, 0, d.QLength())
}

func TestKeymapNotifyKeepsSerial(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	seq := srv.lastSeq()
	keymap := make([]byte, 32)
	keymap[0] = typeKeymapNotify
	// Bytes 1 to 31 are key bits, not a sequence number.
	keymap[2], keymap[3] = 0xff, 0xff
	require.NoError(t, conn.Inject(keymap))

	ev, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(typeKeymapNotify), ev.Type)
	assert.Equal(t, uint64(seq), ev.Serial)
}

func TestPeekEvent(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	require.NoError(t, conn.Inject(xEvent(7, srv.lastSeq())))
	ev, err := d.PeekEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(7), ev.Type)
	assert.Equal(t, 1, d.QLength())

	ev, err = d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(7), ev.Type)
	assert.Equal(t, 0, d.QLength())
}

func TestIfEvent(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	seq := srv.lastSeq()
	require.NoError(t, conn.Inject(xEvent(2, seq), xEvent(3, seq), xEvent(4, seq)))

	ev, err := d.IfEvent(func(ev *Event) bool { return ev.Type == 3 })
	require.NoError(t, err)
	assert.Equal(t, byte(3), ev.Type)

	// The others keep their order.
	assert.Equal(t, []byte{2, 4}, eventTypes(t, d, 2))
}

func TestIfEventWaitsForMatch(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	seq := srv.lastSeq()
	require.NoError(t, conn.Inject(xEvent(2, seq)))
	require.NoError(t, d.Sync(false))
	require.Equal(t, 1, d.QLength())

	// The match is read only after the queue was scanned.
	srv.setHandler(func(req xRequest) ([]byte, bool) {
		if req.opcode == opNoOperation {
			return xEvent(9, req.seq), true
		}
		return nil, false
	})
	require.NoError(t, d.NoOperation())

	calls := 0
	ev, err := d.IfEvent(func(ev *Event) bool {
		calls++
		return ev.Type == 9
	})
	require.NoError(t, err)
	assert.Equal(t, byte(9), ev.Type)
	// Every event is looked at once.
	assert.Equal(t, 2, calls)
	assert.Equal(t, []byte{2}, eventTypes(t, d, 1))
}

func TestCheckIfEvent(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	_, ok := d.CheckIfEvent(func(*Event) bool { return true })
	assert.False(t, ok)

	require.NoError(t, conn.Inject(xEvent(5, srv.lastSeq())))
	_, ok = d.CheckIfEvent(func(ev *Event) bool { return ev.Type == 6 })
	assert.False(t, ok)
	// The event was read while looking.
	assert.Equal(t, 1, d.QLength())

	ev, ok := d.CheckIfEvent(func(ev *Event) bool { return ev.Type == 5 })
	require.True(t, ok)
	assert.Equal(t, byte(5), ev.Type)
	assert.Equal(t, 0, d.QLength())
}

func TestEventsQueued(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	seq := srv.lastSeq()
	require.NoError(t, conn.Inject(xEvent(2, seq), xEvent(3, seq)))
	assert.Equal(t, 0, d.EventsQueued(QueuedAlready))
	assert.Equal(t, 0, d.QLength())
	assert.Equal(t, 2, d.Pending())
	assert.Equal(t, 2, d.QLength())
	assert.Equal(t, 2, d.EventsQueued(QueuedAfterReading))
}

func TestPartialPacketIsNotRead(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv, WithThreads())
	defer d.Close()

	ev := xEvent(2, srv.lastSeq())
	require.NoError(t, conn.Inject(ev[:10]))

	done := make(chan int)
	go func() {
		n := d.EventsQueued(QueuedAfterReading)
		_, ok := d.CheckIfEvent(func(*Event) bool { return true })
		assert.False(t, ok)
		done <- n + d.QLength()
	}()
	select {
	case n := <-done:
		assert.Zero(t, n)
	case <-time.After(5 * time.Second):
		t.Fatal("polling for events blocked on a partial packet")
	}

	require.NoError(t, conn.Inject(ev[10:]))
	assert.Equal(t, 1, d.EventsQueued(QueuedAfterReading))
	got, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(2), got.Type)
}

func TestSyncDiscardsEvents(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)
	defer d.Close()

	seq := srv.lastSeq()
	require.NoError(t, conn.Inject(xEvent(2, seq), xEvent(3, seq)))
	require.NoError(t, d.Sync(false))
	assert.Equal(t, 2, d.QLength())

	require.NoError(t, conn.Inject(xEvent(4, srv.lastSeq())))
	require.NoError(t, d.Sync(true))
	assert.Equal(t, 0, d.QLength())
}

func TestEventsBeforeReplyAreQueued(t *testing.T) {
	srv := newXServer()
	d, _ := openTestDisplay(t, srv)
	defer d.Close()

	// The server sends an event generated by GetInputFocus ahead of the
	// reply.
	srv.setHandler(func(req xRequest) ([]byte, bool) {
		if req.opcode == opGetInputFocus {
			return append(xEvent(12, req.seq), srv.answer(req)...), true
		}
		return nil, false
	})
	_, _, err := d.GetInputFocus()
	require.NoError(t, err)
	require.Equal(t, 1, d.QLength())

	ev, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(12), ev.Type)
}

func TestPutBackEvent(t *testing.T) {
	d := bareDisplay()
	d.enqueueEvent(&packet{buf: xEvent(2, 0)})
	d.PutBackEvent(Event{Type: 30})
	assert.Equal(t, 2, d.QLength())

	ev, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(30), ev.Type)
	ev, err = d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, byte(2), ev.Type)

	d.PutBackEvent(Event{Type: 31})
	require.NotNil(t, d.tail)
	assert.Equal(t, byte(31), d.tail.ev.Type)
}

func TestQueueNodesAreRecycled(t *testing.T) {
	d := bareDisplay()
	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			d.enqueueEvent(&packet{buf: xEvent(byte(2+i), 0)})
		}
		assert.Equal(t, []byte{2, 3, 4, 5}, eventTypes(t, d, 4))
	}
	assert.Equal(t, 4, d.liveNodes)
	assert.Equal(t, 0, d.qlen)
	assert.Nil(t, d.head)
	assert.Nil(t, d.tail)
}

func TestTeardownReleasesEvents(t *testing.T) {
	d := bareDisplay()
	d.SetGenericEventCookie(140, func(d *Display, raw []byte, ev *Event) bool {
		ev.Data = "payload"
		return true
	})
	d.enqueueEvent(&packet{buf: genericEvent(140, 1)})
	d.enqueueEvent(&packet{buf: xEvent(2, 0)})
	d.enqueueEvent(&packet{buf: xEvent(3, 0)})

	// The cookie event goes to the free list and its payload to the jar.
	ev, err := d.NextEvent()
	require.NoError(t, err)
	assert.NotZero(t, ev.Cookie)
	assert.Equal(t, 3, d.liveNodes)
	assert.Len(t, d.jar, 1)
	assert.Equal(t, 2, d.qlen)

	d.freeDisplayStructure()
	assert.Equal(t, 0, d.liveNodes)
	assert.Empty(t, d.jar)
	assert.Equal(t, 0, d.qlen)
	assert.Nil(t, d.head)
	assert.Nil(t, d.qfree)

	// Teardown may run again.
	d.freeDisplayStructure()
	assert.Equal(t, 0, d.liveNodes)
}

func TestCloseReleasesEvents(t *testing.T) {
	srv := newXServer()
	d, conn := openTestDisplay(t, srv)

	seq := srv.lastSeq()
	require.NoError(t, conn.Inject(xEvent(2, seq), xEvent(3, seq), xEvent(4, seq)))
	assert.Equal(t, []byte{2}, eventTypes(t, d, 1))
	assert.Equal(t, 2, d.QLength())
	assert.Equal(t, 3, d.liveNodes)

	require.NoError(t, d.Close())
	assert.Equal(t, 0, d.liveNodes)
	assert.Equal(t, 0, d.qlen)
}

func TestWireToEvent(t *testing.T) {
	d := bareDisplay()
	d.SetWireToEvent(20, func(d *Display, raw []byte, ev *Event) bool {
		ev.Data = get32(raw[4:])
		return true
	})
	old := d.SetWireToEvent(21|0x80, func(*Display, []byte, *Event) bool { return false })
	assert.Nil(t, old)

	ev20 := xEvent(20, 0)
	put32(ev20[4:], 0xdead)
	d.enqueueEvent(&packet{buf: ev20})
	d.enqueueEvent(&packet{buf: xEvent(21|0x80, 0)})
	d.enqueueEvent(&packet{buf: xEvent(22, 0)})

	// The converter of type 21 dropped its event.
	require.Equal(t, 2, d.QLength())
	ev, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdead), ev.Data)
	assert.Equal(t, []byte{22}, eventTypes(t, d, 1))
}

func genericEvent(extension byte, evtype uint16) []byte {
	b := xEvent(typeGenericEvent, 0)
	b[1] = extension
	put16(b[8:], evtype)
	return b
}

func TestGenericEventCookies(t *testing.T) {
	d := bareDisplay()
	d.SetGenericEventCookie(140, func(d *Display, raw []byte, ev *Event) bool {
		ev.Data = "payload"
		return true
	})

	d.enqueueEvent(&packet{buf: genericEvent(140, 7)})
	d.enqueueEvent(&packet{buf: genericEvent(140, 8)})
	d.enqueueEvent(&packet{buf: genericEvent(141, 9)})

	ev, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ev.Cookie)
	assert.Equal(t, uint16(7), ev.EvType)
	assert.Nil(t, ev.Data)
	require.True(t, d.GetEventData(&ev))
	assert.Equal(t, "payload", ev.Data)
	assert.False(t, d.GetEventData(&ev), "payload claimed twice")
	d.FreeEventData(&ev)
	assert.Nil(t, ev.Data)

	// Unclaimed payloads go away with the next event.
	ev, err = d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), ev.Cookie)
	next, err := d.NextEvent()
	require.NoError(t, err)
	assert.False(t, d.GetEventData(&ev))

	// Without a decoder generic events are plain events.
	assert.Equal(t, byte(typeGenericEvent), next.Type)
	assert.Equal(t, uint32(0), next.Cookie)
	assert.False(t, d.GetEventData(&next))
}

func TestEventsAfterClose(t *testing.T) {
	srv := newXServer()
	d, _ := openTestDisplay(t, srv)
	require.NoError(t, d.Close())

	_, err := d.NextEvent()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.PeekEvent()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.IfEvent(func(*Event) bool { return true })
	assert.ErrorIs(t, err, ErrClosed)
	_, ok := d.CheckIfEvent(func(*Event) bool { return true })
	assert.False(t, ok)
	assert.Equal(t, 0, d.Pending())
}
