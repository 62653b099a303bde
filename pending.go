package xlib

// pendingRequest is a flushed request whose responses have not all been
// consumed yet.
type pendingRequest struct {
	seq uint64

	// waiter identifies the goroutine that has the right to read this
	// request's responses, or is zero.
	waiter uint64

	// owned requests belong to a Cookie; their responses are kept in stash
	// for the cookie instead of going to the async or error handlers.
	owned bool
	stash []*packet

	// resolved is set once the request left the pending list.
	resolved bool

	// claimed is set once a cookie took the reply.
	claimed bool
}

// appendPending adds a request without a cookie.
// Must be called with the display locked.
func (d *Display) appendPending(seq uint64) *pendingRequest {
	req := &pendingRequest{seq: seq}
	d.enqueuePending(req)
	return req
}

func (d *Display) enqueuePending(req *pendingRequest) {
	if tail := d.pendingTail(); tail != nil && tail.seq >= req.seq {
		throwThreadFail("unknown sequence number while appending request")
	}
	d.pending.Add(req)
	d.pendingBySeq[req.seq] = req
}

// dequeuePending removes req, which must be the head of the list.
func (d *Display) dequeuePending(req *pendingRequest) {
	if d.pendingHead() != req {
		throwThreadFail("unknown request in queue while dequeuing")
	}
	d.pending.Remove()
	if next := d.pendingHead(); next != nil && next.seq <= req.seq {
		throwThreadFail("unknown sequence number while dequeuing request")
	}
	delete(d.pendingBySeq, req.seq)
	req.resolved = true
}

func (d *Display) pendingHead() *pendingRequest {
	if d.pending.Length() == 0 {
		return nil
	}
	return d.pending.Peek().(*pendingRequest)
}

func (d *Display) pendingTail() *pendingRequest {
	if d.pending.Length() == 0 {
		return nil
	}
	return d.pending.Get(-1).(*pendingRequest)
}

// currentRequest returns the pending entry for the last issued request,
// adding one if the request was flushed without it.
func (d *Display) currentRequest() *pendingRequest {
	if tail := d.pendingTail(); tail != nil && tail.seq == d.request {
		return tail
	}
	return d.appendPending(d.request)
}

// keep holds on to a response for the cookie that owns req.
func (req *pendingRequest) keep(p *packet) {
	req.stash = append(req.stash, p)
}

func (req *pendingRequest) takeStash() *packet {
	if len(req.stash) == 0 {
		return nil
	}
	p := req.stash[0]
	req.stash = req.stash[1:]
	return p
}
