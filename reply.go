package xlib

import (
	"github.com/pkg/errors"
)

// Reply is the reply to one request. The first 32 bytes plus the words
// asked for when waiting are available from Header; the rest of the reply is
// read in order with ReadFull, ReadPadded and Discard.
type Reply struct {
	header   []byte
	data     []byte
	consumed int
	length   int
}

func newReply(buf []byte, extra int, discard bool) *Reply {
	length := 32
	if buf[0] == typeReply {
		length += int(get32(buf[4:])) * 4
	}
	if length > len(buf) {
		length = len(buf)
	}
	consumed := 32 + extra*4
	if consumed > length {
		consumed = length
	}
	r := &Reply{
		header:   buf[:consumed],
		data:     buf,
		consumed: consumed,
		length:   length,
	}
	if discard {
		r.consumed = r.length
	}
	r.release()
	return r
}

// Header returns the fixed part of the reply: 32 bytes plus the extra words
// requested.
func (r *Reply) Header() []byte { return r.header }

// Length returns the total size of the reply in bytes.
func (r *Reply) Length() int { return r.length }

// Remaining returns how many bytes are left to read.
func (r *Reply) Remaining() int {
	if r.data == nil {
		return 0
	}
	return r.length - r.consumed
}

// release drops the packet once everything was consumed.
func (r *Reply) release() {
	if r.consumed >= r.length {
		r.data = nil
	}
}

func (r *Reply) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, errors.Wrapf(ErrReplyOverrun, "want %d bytes, have %d", n, r.Remaining())
	}
	if n == 0 {
		return nil, nil
	}
	b := r.data[r.consumed : r.consumed+n]
	r.consumed += n
	return b, nil
}

// ReadFull copies the next len(p) bytes of the reply into p.
func (r *Reply) ReadFull(p []byte) error {
	b, err := r.take(len(p))
	if err != nil {
		return err
	}
	copy(p, b)
	r.release()
	return nil
}

// ReadPadded reads len(p) bytes like ReadFull and skips the padding to the
// next multiple of 4.
func (r *Reply) ReadPadded(p []byte) error {
	b, err := r.take(pad(len(p)))
	if err != nil {
		return err
	}
	copy(p, b)
	r.release()
	return nil
}

// Discard skips n bytes.
func (r *Reply) Discard(n int) error {
	if _, err := r.take(n); err != nil {
		return err
	}
	r.release()
	return nil
}

// DiscardWords skips n 4 byte units.
func (r *Reply) DiscardWords(n int) error {
	return r.Discard(4 * n)
}

// awaitReply processes responses in sequence order until cur's next
// response is available, and returns it. A nil packet means cur has no
// further responses.
// Must be called with the display locked.
func (d *Display) awaitReply(cur *pendingRequest) *packet {
	d.nextTicket++
	me := d.nextTicket
	defer func() {
		if cur.waiter == me {
			cur.waiter = 0
			d.replyNotify.Broadcast()
		}
	}()

	for {
		if d.flags&flagIOError != 0 {
			return nil
		}
		// Somebody processing cur as the head of the list kept the
		// response for us.
		if p := cur.takeStash(); p != nil {
			return p
		}
		if cur.resolved {
			return nil
		}
		if cur.waiter == 0 {
			cur.waiter = me
		}

		req := d.pendingHead()
		if req == nil {
			throwThreadFail("request vanished from the pending list")
		}
		if req.waiter != 0 && req.waiter != me {
			d.replyNotify.Wait()
			continue
		}
		req.waiter = me

		var resp *packet
		if d.nextResponse != nil && d.nextResponse.seq == req.seq {
			resp, d.nextResponse = d.nextResponse, nil
		} else {
			resp = d.waitForReply(req.seq)
		}
		if d.flags&flagIOError != 0 {
			// The display was freed while we were reading.
			return nil
		}

		// Events that came before the response are queued now, unless an
		// event waiter will do it.
		if !d.eventWaiter {
			for p := d.pollForResponse(); p != nil; p = d.pollForResponse() {
				d.handleResponse(p, true)
			}
		}

		req.waiter = 0
		d.replyNotify.Broadcast()

		if req.seq > d.request {
			throwThreadFail("unknown sequence number while processing reply")
		}
		d.setLastRequestRead(req.seq)
		if resp == nil || resp.isError() {
			d.dequeuePending(req)
		}

		switch {
		case req == cur:
			return resp
		case req.owned:
			if resp != nil {
				req.keep(resp)
			}
		case resp != nil:
			d.handleResponse(resp, true)
		}
	}
}

// finishReply turns the response returned by awaitReply into a Reply or an
// error. Errors the caller is expected to handle are returned without
// calling any handler.
// Must be called with the display locked.
func (d *Display) finishReply(resp *packet, extra int, discard bool) (*Reply, error) {
	if !d.checkInternalConnections() {
		return nil, d.checkUsable()
	}
	if resp == nil && d.nextEvent != nil && d.nextEvent.isError() && d.nextEvent.seq == d.lastRequestRead {
		resp, d.nextEvent = d.nextEvent, nil
	}
	if resp != nil && resp.isError() {
		perr := newProtocolError(resp)
		if !perr.expected() {
			d.handleError(resp, true)
		}
		return nil, perr
	}
	if resp == nil {
		if err := d.checkUsable(); err != nil {
			return nil, err
		}
		cause := d.in.err
		if cause == nil {
			cause = errors.New("reply expected but none received")
		}
		return nil, d.ioError(cause)
	}
	return newReply(resp.buf, extra, discard), nil
}

// replyFor flushes the output buffer and waits for req's reply.
// Must be called with the display locked.
func (d *Display) replyFor(req *pendingRequest, extra int, discard bool) (*Reply, error) {
	if d.inErrorHandler() {
		return nil, ErrInErrorHandler
	}
	if err := d.send(nil); err != nil {
		return nil, err
	}
	return d.finishReply(d.awaitReply(req), extra, discard)
}

// roundTrip issues a GetInputFocus request and waits for its reply, so every
// earlier request has been processed when it returns.
// Must be called with the display locked.
func (d *Display) roundTrip() error {
	if d.inErrorHandler() {
		return ErrInErrorHandler
	}
	c, err := d.sendRequestLocked(opGetInputFocus, 0, nil, nil, RequestReply)
	if err != nil {
		return err
	}
	_, err = d.replyFor(c.req, 0, true)
	return err
}

func (d *Display) syncLocked(discard bool) error {
	if err := d.roundTrip(); err != nil {
		return err
	}
	if discard {
		d.discardEvents()
	}
	return nil
}

// Sync flushes the output buffer and waits until the server has processed
// every request. Errors are handed to the error handlers on the way. With
// discard the event queue is emptied afterwards.
func (d *Display) Sync(discard bool) error {
	d.lock()
	defer d.unlock()
	if err := d.checkUsable(); err != nil {
		return err
	}
	return d.syncLocked(discard)
}

// Synchronize turns synchronous mode on or off and returns the previous
// setting. In synchronous mode every request waits for the server.
func (d *Display) Synchronize(on bool) bool {
	d.lock()
	defer d.unlock()
	old := d.synchronous
	d.synchronous = on
	return old
}
