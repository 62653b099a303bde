package xlib

import (
	"io"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
)

// wire holds what was read off the connection and not yet dispatched.
// Guarded by the display lock.
type wire struct {
	// events holds events, and errors for requests nobody waits on, in
	// arrival order.
	events *queue.Queue

	// replies holds replies and errors for pending requests.
	replies map[uint64][]*packet

	// lastSeen is the widened sequence number of the last packet read.
	lastSeen uint64

	// completed is the last request known to have no more responses.
	completed uint64

	// reading is set while a goroutine is blocked reading the connection.
	reading    bool
	readNotify Cond

	// err is the sticky read error.
	err error
}

func newWire(l Locking) wire {
	return wire{
		events:     queue.New(),
		replies:    make(map[uint64][]*packet),
		readNotify: l.NewCond(),
	}
}

// readPacket reads one whole packet. Replies and generic events carry a
// length in 4 byte units after the 32 byte header.
func readPacket(r io.Reader) ([]byte, error) {
	hdr := make([]byte, 32)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, errors.Wrap(err, "reading packet header")
	}
	n := packetLength(hdr)
	if n == 32 {
		return hdr, nil
	}
	buf := make([]byte, n)
	copy(buf, hdr)
	if _, err := io.ReadFull(r, buf[32:]); err != nil {
		return nil, errors.Wrap(err, "reading packet body")
	}
	return buf, nil
}

// packetLength returns the size of the packet whose header is hdr.
func packetLength(hdr []byte) int {
	if hdr[0] == typeReply || hdr[0]&0x7f == typeGenericEvent {
		return 32 + int(get32(hdr[4:]))*4
	}
	return 32
}

// readOne reads one packet, or waits for the goroutine that currently reads
// to finish its packet. Either way the caller must re-check its condition
// afterwards. Must be called with the display locked; the lock is released
// while blocked.
func (d *Display) readOne() {
	if d.in.err != nil {
		return
	}
	if d.in.reading {
		d.in.readNotify.Wait()
		return
	}
	d.in.reading = true
	d.unlock()
	buf, err := readPacket(d.rd)
	d.lockIgnoringUserLocks()
	d.in.reading = false
	d.storePacket(buf, err)
	d.in.readNotify.Broadcast()
}

// bufferPacket reads what the connection has without blocking until a
// whole packet is buffered, and reports whether one is. Packets larger than
// the read buffer are left to readOne.
func (d *Display) bufferPacket() bool {
	for {
		n := d.rd.Buffered()
		if n >= 32 {
			hdr, _ := d.rd.Peek(32)
			if n >= packetLength(hdr) {
				return true
			}
		}
		if n >= d.rd.Size() || !d.connReadable() {
			return false
		}
		// The connection is readable, so a single read fills at least
		// one more byte.
		if _, err := d.rd.Peek(n + 1); err != nil {
			if d.in.err == nil {
				d.in.err = errors.Wrap(err, "reading packet")
			}
			return false
		}
	}
}

// readHeld reads one packet without releasing the display lock. Only used
// when bufferPacket reported a whole packet.
func (d *Display) readHeld() {
	buf, err := readPacket(d.rd)
	d.storePacket(buf, err)
}

func (d *Display) storePacket(buf []byte, err error) {
	if err != nil {
		if d.in.err == nil {
			d.in.err = err
		}
		return
	}
	d.pushPacket(buf)
}

// pushPacket widens the packet's sequence number and files it.
func (d *Display) pushPacket(buf []byte) {
	seq := d.in.lastSeen
	if buf[0]&0x7f != typeKeymapNotify {
		seq = widen(d.in.lastSeen, get16(buf[2:]))
	}
	if seq > d.request {
		throwThreadFail("unknown sequence number while reading packet")
	}
	if seq > d.in.lastSeen {
		d.in.completed = seq - 1
		d.in.lastSeen = seq
	}
	p := &packet{buf: buf, seq: seq}

	switch buf[0] {
	case typeError:
		d.in.completed = seq
		if d.pendingBySeq[seq] != nil {
			d.in.replies[seq] = append(d.in.replies[seq], p)
			return
		}
		d.in.events.Add(p)
	case typeReply:
		if d.pendingBySeq[seq] == nil {
			logger.Debug("dropping reply nobody waits for", "seq", seq)
			return
		}
		d.in.replies[seq] = append(d.in.replies[seq], p)
	default:
		d.in.events.Add(p)
	}
}

// pollForReply returns the next stored response for seq. done is true when
// a response is returned or when seq can have no further responses.
func (d *Display) pollForReply(seq uint64) (p *packet, done bool) {
	if q := d.in.replies[seq]; len(q) > 0 {
		p = q[0]
		if len(q) == 1 {
			delete(d.in.replies, seq)
		} else {
			d.in.replies[seq] = q[1:]
		}
		return p, true
	}
	if d.in.completed >= seq || d.in.err != nil {
		return nil, true
	}
	return nil, false
}

// waitForReply blocks until pollForReply(seq) is done.
func (d *Display) waitForReply(seq uint64) *packet {
	for {
		if p, done := d.pollForReply(seq); done {
			return p
		}
		d.readOne()
	}
}

// pollWireEvent returns the next queued event. Unless queuedOnly it first
// reads from the connection when that does not block.
func (d *Display) pollWireEvent(queuedOnly bool) *packet {
	if d.in.events.Length() == 0 && !queuedOnly && !d.in.reading && d.in.err == nil && d.bufferPacket() {
		d.readHeld()
	}
	if d.in.events.Length() == 0 {
		return nil
	}
	return d.in.events.Remove().(*packet)
}

// waitForEvent blocks until an event arrives or the connection fails.
func (d *Display) waitForEvent() (*packet, error) {
	for d.in.events.Length() == 0 {
		if d.in.err != nil {
			return nil, d.in.err
		}
		d.readOne()
	}
	return d.in.events.Remove().(*packet), nil
}

type readableConn interface {
	Readable() bool
}

func (d *Display) connReadable() bool {
	if r, ok := d.conn.(readableConn); ok {
		return r.Readable()
	}
	return connReadable(d.conn)
}
