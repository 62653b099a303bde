package xlib

// RequestKind tells SendRequest what the caller will do with the response.
type RequestKind int

const (
	// RequestVoid requests have no reply. Their errors go to the error
	// handlers.
	RequestVoid RequestKind = iota
	// RequestChecked requests have no reply; their error, if any, is
	// returned by Cookie.Check.
	RequestChecked
	// RequestReply requests have a reply, returned by Cookie.Reply.
	RequestReply
)

// Cookie identifies an issued request.
//
// There are three kinds of cookies:
// Void cookies only carry the sequence number.
// Checked cookies own the request's error; Check returns it, or nil once
// the server is known to have processed the request.
// Reply cookies own the reply or error; Reply waits for either. Responses
// read by other goroutines before the cookie asks for them are kept for it.
type Cookie struct {
	d    *Display
	req  *pendingRequest
	seq  uint64
	kind RequestKind
}

// Sequence returns the sequence number of the request.
func (c Cookie) Sequence() uint64 { return c.seq }

// SendRequest queues a request. fixed is the fixed part of the request after
// its 4 byte header and body the variable part; both are padded to a
// multiple of 4 bytes. Requests longer than 0xffff words use the
// BIG-REQUESTS encoding when the server supports it.
func (d *Display) SendRequest(opcode, data byte, fixed, body []byte, kind RequestKind) (Cookie, error) {
	d.lock()
	defer d.unlock()
	c, err := d.sendRequestLocked(opcode, data, fixed, body, kind)
	if err != nil {
		return c, err
	}
	d.syncHandle()
	return c, d.checkUsable()
}

// sendRequestLocked does not run syncHandle, so the round trip it makes can
// use it.
func (d *Display) sendRequestLocked(opcode, data byte, fixed, body []byte, kind RequestKind) (Cookie, error) {
	if err := d.checkUsable(); err != nil {
		return Cookie{}, err
	}
	hdr := 4 + pad(len(fixed))
	words := (hdr + pad(len(body))) / 4
	big := words > 0xffff
	if big {
		if d.bigReqLen == 0 {
			return Cookie{}, ErrRequestTooLarge
		}
		hdr += 4
		words++
	}
	if limit := d.MaxRequestSize(); limit > 0 && uint32(words) > limit {
		return Cookie{}, ErrRequestTooLarge
	}

	req, err := d.getRequest(opcode, data, hdr)
	if err != nil {
		return Cookie{}, err
	}
	off := 4
	if big {
		put16(req[2:], 0)
		put32(req[4:], uint32(words))
		off = 8
	} else {
		put16(req[2:], uint16(words))
	}
	copy(req[off:], fixed)

	c := Cookie{d: d, seq: d.request, kind: kind}
	if kind != RequestVoid {
		c.req = &pendingRequest{seq: d.request, owned: true}
		d.unflushed = append(d.unflushed, c.req)
	}
	return c, d.appendData(body)
}

// Reply waits for the reply of the request.
func (c Cookie) Reply() (*Reply, error) {
	return c.ReplyWith(0, false)
}

// ReplyWith waits for the reply and makes extra more words part of its
// header. With discard whatever is beyond the header is dropped.
func (c Cookie) ReplyWith(extra int, discard bool) (*Reply, error) {
	if c.kind != RequestReply {
		return nil, ErrNoReply
	}
	d := c.d
	d.lock()
	defer d.unlock()
	if err := d.checkUsable(); err != nil {
		return nil, err
	}
	if d.inErrorHandler() {
		return nil, ErrInErrorHandler
	}
	if c.req.claimed {
		return nil, ErrReplyTaken
	}
	c.req.claimed = true
	return d.replyFor(c.req, extra, discard)
}

// Check returns the error of a checked request, or nil if it succeeded. It
// forces a round trip when the server has not answered anything issued after
// the request yet.
func (c Cookie) Check() error {
	if c.kind != RequestChecked {
		return ErrNotChecked
	}
	d := c.d
	d.lock()
	defer d.unlock()
	if err := d.checkUsable(); err != nil {
		return err
	}
	if d.inErrorHandler() {
		return ErrInErrorHandler
	}
	req := c.req
	if req.claimed {
		return ErrReplyTaken
	}
	req.claimed = true

	var sync Cookie
	needSync := len(req.stash) == 0 && !req.resolved && d.in.completed < req.seq
	if needSync {
		var err error
		if sync, err = d.sendRequestLocked(opGetInputFocus, 0, nil, nil, RequestReply); err != nil {
			return err
		}
	}
	if err := d.send(nil); err != nil {
		return err
	}
	resp := d.awaitReply(req)
	if needSync {
		if _, err := d.replyFor(sync.req, 0, true); err != nil {
			return err
		}
	}
	switch {
	case resp == nil:
		return d.checkUsable()
	case resp.isError():
		return newProtocolError(resp)
	}
	return nil
}

// Discard gives up the response of the request. It goes to the async and
// error handlers like that of a request issued without a cookie.
func (c Cookie) Discard() {
	if c.req == nil {
		return
	}
	d := c.d
	d.lock()
	defer d.unlock()
	c.req.claimed = true
	c.req.owned = false
	for p := c.req.takeStash(); p != nil; p = c.req.takeStash() {
		d.handleResponse(p, false)
	}
}
