package xlib

// QueueMode selects how far EventsQueued goes to find events.
type QueueMode int

const (
	// QueuedAlready only counts events already in the queue.
	QueuedAlready QueueMode = iota
	// QueuedAfterReading also reads whatever is available on the
	// connection.
	QueuedAfterReading
	// QueuedAfterFlush flushes the output buffer before reading.
	QueuedAfterFlush
)

// Event is one event received from the server. Only the framing is decoded;
// Raw holds the wire packet.
type Event struct {
	Type      byte
	SendEvent bool

	// Serial is the sequence number of the last request the server had
	// processed when it generated the event.
	Serial uint64

	Raw []byte

	// Cookie is non-zero for generic events of an extension that registered
	// a CookieFunc. Their payload is claimed with GetEventData.
	Cookie    uint32
	Extension byte
	EvType    uint16
	Data      interface{}
}

// WireToEventFunc converts a wire event into ev. Returning false drops the
// event.
type WireToEventFunc func(d *Display, raw []byte, ev *Event) bool

// CookieFunc decodes the payload of a generic event into ev.Data.
type CookieFunc func(d *Display, raw []byte, ev *Event) bool

type qEvent struct {
	ev      Event
	qserial uint64
	next    *qEvent
}

type jarEntry struct {
	cookie    uint32
	extension byte
	evtype    uint16
	data      interface{}
}

// SetWireToEvent installs the converter for events of the given type and
// returns the previous one.
func (d *Display) SetWireToEvent(eventType byte, fn WireToEventFunc) WireToEventFunc {
	t := eventType & 0x7f
	if t < 2 {
		throwExtlibFail("event converter installed for reply or error packets")
	}
	d.lock()
	defer d.unlock()
	old := d.wireToEvent[t]
	if fn == nil {
		delete(d.wireToEvent, t)
	} else {
		d.wireToEvent[t] = fn
	}
	return old
}

// SetGenericEventCookie makes generic events of the extension with the given
// major opcode cookie events, decoded by fn.
func (d *Display) SetGenericEventCookie(extension byte, fn CookieFunc) CookieFunc {
	d.lock()
	defer d.unlock()
	e := extension & 0x7f
	old := d.cookieFuncs[e]
	if fn == nil {
		delete(d.cookieFuncs, e)
	} else {
		d.cookieFuncs[e] = fn
	}
	return old
}

func (d *Display) newNode() *qEvent {
	if q := d.qfree; q != nil {
		d.qfree = q.next
		q.next = nil
		return q
	}
	d.liveNodes++
	return &qEvent{}
}

func (d *Display) freeNode(q *qEvent) {
	q.ev = Event{}
	q.qserial = 0
	q.next = d.qfree
	d.qfree = q
}

func (d *Display) appendNode(q *qEvent) {
	q.qserial = d.nextEventSerial
	d.nextEventSerial++
	q.next = nil
	if d.tail != nil {
		d.tail.next = q
	} else {
		d.head = q
	}
	d.tail = q
	d.qlen++
}

// enqueueEvent converts a wire event and appends it to the queue.
// Must be called with the display locked.
func (d *Display) enqueueEvent(p *packet) {
	q := d.newNode()
	ev := &q.ev
	*ev = Event{
		Type:      p.buf[0] & 0x7f,
		SendEvent: p.buf[0]&0x80 != 0,
		Serial:    p.seq,
		Raw:       p.buf,
	}

	if ev.Type == typeGenericEvent {
		if fn := d.cookieFuncs[p.buf[1]&0x7f]; fn != nil {
			ev.Extension = p.buf[1]
			ev.EvType = get16(p.buf[8:])
			if !fn(d, p.buf, ev) {
				d.freeNode(q)
				return
			}
			d.nextCookie++
			ev.Cookie = d.nextCookie
			d.appendNode(q)
			return
		}
	}
	if fn := d.wireToEvent[ev.Type]; fn != nil && !fn(d, p.buf, ev) {
		d.freeNode(q)
		return
	}
	d.appendNode(q)
}

// releaseEvents drops every queued and free node and every payload in the
// jar.
func (d *Display) releaseEvents() {
	for _, list := range []*qEvent{d.head, d.qfree} {
		for q := list; q != nil; {
			next := q.next
			*q = qEvent{}
			d.liveNodes--
			q = next
		}
	}
	d.head, d.tail, d.qfree = nil, nil, nil
	d.qlen = 0
	d.freeCookies()
	d.jar = nil
}

// deq unlinks q, whose predecessor is prev, and recycles it.
func (d *Display) deq(prev, q *qEvent) {
	if prev == nil {
		d.head = q.next
	} else {
		prev.next = q.next
	}
	if q == d.tail {
		d.tail = prev
	}
	d.qlen--
	d.freeNode(q)
}

func (d *Display) isCookie(ev *Event) bool {
	return ev.Type == typeGenericEvent && ev.Cookie != 0 && d.cookieFuncs[ev.Extension&0x7f] != nil
}

// storeCookie moves the payload of a delivered cookie event into the jar.
func (d *Display) storeCookie(ev *Event) {
	if !d.isCookie(ev) {
		return
	}
	d.jar = append(d.jar, &jarEntry{
		cookie:    ev.Cookie,
		extension: ev.Extension,
		evtype:    ev.EvType,
		data:      ev.Data,
	})
	ev.Data = nil
}

// freeCookies drops every payload nobody claimed since the last event was
// delivered.
func (d *Display) freeCookies() {
	for i := range d.jar {
		d.jar[i] = nil
	}
	d.jar = d.jar[:0]
}

// NextEvent returns the next event, blocking until one arrives.
func (d *Display) NextEvent() (Event, error) {
	d.lock()
	defer d.unlock()
	if err := d.checkUsable(); err != nil {
		return Event{}, err
	}
	d.freeCookies()
	if d.head == nil {
		if d.inErrorHandler() {
			return Event{}, ErrInErrorHandler
		}
		d.readEvents()
	}
	if d.head == nil {
		if err := d.checkUsable(); err != nil {
			return Event{}, err
		}
		return Event{}, ErrIOError
	}
	q := d.head
	ev := q.ev
	d.deq(nil, q)
	d.storeCookie(&ev)
	return ev, nil
}

// PeekEvent returns the next event without removing it, blocking until one
// arrives.
func (d *Display) PeekEvent() (Event, error) {
	d.lock()
	defer d.unlock()
	if err := d.checkUsable(); err != nil {
		return Event{}, err
	}
	if d.head == nil {
		if d.inErrorHandler() {
			return Event{}, ErrInErrorHandler
		}
		d.readEvents()
	}
	if d.head == nil {
		if err := d.checkUsable(); err != nil {
			return Event{}, err
		}
		return Event{}, ErrIOError
	}
	return d.head.ev, nil
}

// IfEvent blocks until pred accepts a queued event and removes that event.
// pred runs with the display locked and must not call methods of d.
func (d *Display) IfEvent(pred func(*Event) bool) (Event, error) {
	d.lock()
	defer d.unlock()
	var prev *qEvent
	var seen uint64
	for {
		if err := d.checkUsable(); err != nil {
			return Event{}, err
		}
		q := d.head
		if prev != nil {
			q = prev.next
		}
		for ; q != nil; prev, q = q, q.next {
			if q.qserial > seen && pred(&q.ev) {
				ev := q.ev
				d.deq(prev, q)
				d.storeCookie(&ev)
				return ev, nil
			}
		}
		if prev != nil {
			seen = prev.qserial
		}
		if d.inErrorHandler() {
			return Event{}, ErrInErrorHandler
		}
		d.readEvents()
		// Another goroutine snatched prev.
		if prev != nil && prev.qserial != seen {
			prev = nil
		}
	}
}

// CheckIfEvent removes and returns the first queued event pred accepts. It
// looks at the queue, then at what can be read without blocking, then again
// after flushing. pred runs with the display locked.
func (d *Display) CheckIfEvent(pred func(*Event) bool) (Event, bool) {
	d.lock()
	defer d.unlock()
	var prev *qEvent
	var seen uint64
	for n := 2; n >= 0; n-- {
		if d.checkUsable() != nil {
			return Event{}, false
		}
		q := d.head
		if prev != nil {
			q = prev.next
		}
		for ; q != nil; prev, q = q, q.next {
			if q.qserial > seen && pred(&q.ev) {
				ev := q.ev
				d.deq(prev, q)
				d.storeCookie(&ev)
				return ev, true
			}
		}
		if prev != nil {
			seen = prev.qserial
		}
		switch n {
		case 2:
			d.eventsQueued(QueuedAfterReading)
		case 1:
			if d.send(nil) == nil {
				d.eventsQueued(QueuedAfterReading)
			}
		}
		if prev != nil && prev.qserial != seen {
			prev = nil
		}
	}
	return Event{}, false
}

// PutBackEvent pushes ev to the front of the queue.
func (d *Display) PutBackEvent(ev Event) {
	d.lock()
	defer d.unlock()
	if d.checkUsable() != nil {
		return
	}
	q := d.newNode()
	q.ev = ev
	q.qserial = d.nextEventSerial
	d.nextEventSerial++
	q.next = d.head
	d.head = q
	if d.tail == nil {
		d.tail = q
	}
	d.qlen++
}

// GetEventData claims the payload of a cookie event returned by NextEvent or
// IfEvent. It fails if the payload was already claimed or freed because
// another event was fetched.
func (d *Display) GetEventData(ev *Event) bool {
	d.lock()
	defer d.unlock()
	if !d.isCookie(ev) {
		return false
	}
	for i, e := range d.jar {
		if e.cookie == ev.Cookie && e.extension == ev.Extension && e.evtype == ev.EvType {
			ev.Data = e.data
			d.jar = append(d.jar[:i], d.jar[i+1:]...)
			return true
		}
	}
	return false
}

// FreeEventData releases a payload claimed with GetEventData.
func (d *Display) FreeEventData(ev *Event) {
	if ev.Data == nil {
		return
	}
	ev.Data = nil
	ev.Cookie = 0
}

// QLength returns the number of queued events without reading.
func (d *Display) QLength() int {
	d.lock()
	defer d.unlock()
	return d.qlen
}

// Pending returns the number of events queued after flushing the output
// buffer and reading what is available.
func (d *Display) Pending() int {
	return d.EventsQueued(QueuedAfterFlush)
}

// EventsQueued returns the number of queued events. If the queue is empty
// and mode is not QueuedAlready it first reads what is available without
// blocking.
func (d *Display) EventsQueued(mode QueueMode) int {
	d.lock()
	defer d.unlock()
	if d.qlen > 0 || mode == QueuedAlready {
		return d.qlen
	}
	return d.eventsQueued(mode)
}

// eventsQueued dispatches every response available without blocking.
// Must be called with the display locked.
func (d *Display) eventsQueued(mode QueueMode) int {
	if d.flags&flagIOError != 0 {
		return 0
	}
	if mode == QueuedAfterFlush {
		if d.send(nil) != nil {
			return 0
		}
	} else if !d.checkInternalConnections() {
		return 0
	}

	// A goroutine blocked waiting for events will pick up the next one;
	// until then there are no new events as far as we know.
	if !d.eventWaiter {
		for p := d.pollForResponse(); p != nil; p = d.pollForResponse() {
			d.handleResponse(p, false)
		}
		if d.in.err != nil {
			d.ioError(d.in.err)
			return 0
		}
	}
	return d.qlen
}

// readEvents flushes the output buffer, then blocks until at least one new
// event has been queued.
// Must be called with the display locked.
func (d *Display) readEvents() {
	if d.flags&flagIOError != 0 {
		return
	}
	if d.send(nil) != nil {
		return
	}
	if !d.checkInternalConnections() {
		return
	}

	serial := d.nextEventSerial
	for serial == d.nextEventSerial || d.qlen == 0 {
		if d.flags&flagIOError != 0 {
			return
		}
		if d.eventWaiter {
			d.eventNotify.Wait()
			// Maybe the other goroutine got us an event.
			continue
		}

		if d.nextEvent == nil {
			d.eventWaiter = true
			ev, err := d.waitForEvent()
			d.eventWaiter = false
			d.eventNotify.Broadcast()
			if ev == nil {
				d.ioError(err)
				return
			}
			d.nextEvent = ev
		}

		// pollForResponse returns nil only when the connection is gone or
		// another goroutine waits for the reply we would process next.
		if p := d.pollForResponse(); p != nil {
			d.handleResponse(p, false)
		} else if head := d.pendingHead(); head != nil && head.waiter != 0 {
			d.replyNotify.Wait()
		} else {
			d.ioError(d.in.err)
			return
		}
	}

	// Another goroutine may have become the event waiter while we slept in
	// the reply wait above.
	if !d.eventWaiter {
		for p := d.pollForResponse(); p != nil; p = d.pollForResponse() {
			d.handleResponse(p, false)
		}
	}
	if d.in.err != nil {
		d.ioError(d.in.err)
	}
}

// discardEvents empties the queue.
func (d *Display) discardEvents() {
	for d.head != nil {
		d.deq(nil, d.head)
	}
}
