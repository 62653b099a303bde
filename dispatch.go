package xlib

// Responses are always processed in sequence number order. At most one
// goroutine reads events (the event waiter) and at most one reads the reply
// of the first pending request (its reply waiter); a goroutine is never
// both. Anybody who would have to process a response ahead of one of them
// waits on the matching condition instead.

// pollForEvent returns the next event if no pending request comes before
// it. Unless queuedOnly it may read from the connection without blocking.
func (d *Display) pollForEvent(queuedOnly bool) *packet {
	if d.nextEvent == nil {
		d.nextEvent = d.pollWireEvent(queuedOnly)
	}
	ev := d.nextEvent
	if ev == nil {
		return nil
	}
	req := d.pendingHead()
	if req == nil || ev.seq < req.seq || (!ev.isError() && ev.seq == req.seq) {
		if ev.seq > d.request {
			throwThreadFail("unknown sequence number while processing queue")
		}
		d.noteEventSerial(ev.seq)
		d.nextEvent = nil
		return ev
	}
	return nil
}

// pollForResponse returns the next event, reply or error that can be
// handled without blocking, or nil.
func (d *Display) pollForResponse() *packet {
	for {
		// Events that come before the next reply go first. With a response
		// saved from an earlier call, only look at events already read.
		if ev := d.pollForEvent(d.nextResponse != nil); ev != nil {
			return ev
		}

		// Nothing to do unless a request is pending and nobody else is
		// waiting for its response.
		req := d.pendingHead()
		if req == nil || req.waiter != 0 {
			return nil
		}

		var resp *packet
		if d.nextResponse != nil && d.nextResponse.seq == req.seq {
			resp, d.nextResponse = d.nextResponse, nil
		} else {
			p, done := d.pollForReply(req.seq)
			if !done {
				// Reading may have queued events.
				return d.pollForEvent(true)
			}
			// Events read before this response still go first.
			if ev := d.pollForEvent(true); ev != nil {
				d.nextResponse = p
				return ev
			}
			resp = p
		}

		if req.seq > d.request {
			throwThreadFail("unknown sequence number while awaiting reply")
		}
		d.setLastRequestRead(req.seq)

		if req.owned {
			if resp != nil {
				req.keep(resp)
			}
			if resp == nil || resp.isError() {
				d.dequeuePending(req)
			}
			continue
		}
		if resp != nil && resp.isReply() {
			return resp
		}
		d.dequeuePending(req)
		if resp != nil {
			return resp
		}
	}
}

// handleResponse delivers a response nobody waits for: replies go to the
// async handlers, errors to the error handlers and events to the queue.
func (d *Display) handleResponse(p *packet, inReply bool) {
	switch p.buf[0] {
	case typeReply:
		for _, h := range d.asyncSnapshot() {
			if h.fn(d, p.buf) {
				break
			}
		}
	case typeError:
		d.handleError(p, inReply)
	default:
		// Generic events longer than 32 bytes keep their payload after
		// the header; Raw holds the whole packet.
		d.enqueueEvent(p)
	}
}

// handleError lets extensions suppress the error, but only for errors seen
// while waiting for a reply, then reports it.
func (d *Display) handleError(p *packet, inReply bool) int {
	perr := newProtocolError(p)
	if inReply {
		for _, ext := range d.extensions {
			if hook, ok := ext.hooks.(ErrorHook); ok {
				if status, suppressed := hook.OnError(d, perr, &ext.Codes); suppressed {
					return status
				}
			}
		}
	}
	return d.reportError(perr)
}

// reportError offers the error to the async handlers and then to the error
// handler, which runs with the display unlocked but user-locked so other
// goroutines stay out until it returns.
func (d *Display) reportError(perr *ProtocolError) int {
	for _, h := range d.asyncSnapshot() {
		if h.fn(d, perr.Raw) {
			return 0
		}
	}
	handler := d.errorHandler
	if handler == nil {
		handler = DefaultErrorHandler
	}
	d.holdUserLock()
	d.handlerDepth++
	d.handlerOwner = d.userOwner
	d.unlock()
	status := handler(d, perr)
	d.lock()
	d.handlerDepth--
	d.releaseUserLock()
	return status
}

// inErrorHandler reports whether the calling goroutine is inside an error
// handler.
func (d *Display) inErrorHandler() bool {
	return d.handlerDepth > 0 && d.handlerOwner == goid()
}

func (d *Display) asyncSnapshot() []*AsyncHandler {
	if len(d.asyncHandlers) == 0 {
		return nil
	}
	return append([]*AsyncHandler(nil), d.asyncHandlers...)
}
