package xlib

import (
	"net"
)

// getRequest reserves length bytes in the output buffer for a request and
// fills in its opcode, data byte and length. The buffer is flushed first if
// the request does not fit.
// Must be called with the display locked.
func (d *Display) getRequest(opcode, data byte, length int) ([]byte, error) {
	if length%4 != 0 {
		logger.Warnf("request length %d for opcode %d is not a multiple of 4", length, opcode)
		length = pad(length)
	}
	if len(d.buf)+length > cap(d.buf) {
		if err := d.send(nil); err != nil {
			return nil, err
		}
		if length > cap(d.buf) {
			return nil, ErrRequestTooLarge
		}
	}
	start := len(d.buf)
	d.buf = d.buf[:start+length]
	req := d.buf[start:]
	clear(req)
	req[0] = opcode
	req[1] = data
	put16(req[2:], uint16(length/4))
	d.request++
	return req, nil
}

// appendData adds b, padded to 4 bytes, to the request being built. Data
// that does not fit is written directly after flushing the buffer.
func (d *Display) appendData(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n := pad(len(b))
	if len(d.buf)+n <= cap(d.buf) {
		start := len(d.buf)
		d.buf = d.buf[:start+n]
		copy(d.buf[start:], b)
		clear(d.buf[start+len(b):])
		return nil
	}
	return d.send(b)
}

var zeroPad [3]byte

// send writes the output buffer followed by extra and its padding.
// Must be called with the display locked.
func (d *Display) send(extra []byte) error {
	if err := d.checkUsable(); err != nil {
		return err
	}
	if len(d.buf) == 0 && len(extra) == 0 {
		return nil
	}
	d.claimSocket()

	// Every request with a cookie, and every request at all while async
	// handlers exist, needs a pending entry before its response can
	// arrive.
	cookies := d.unflushed
	if len(d.asyncHandlers) > 0 {
		for seq := d.lastFlushed + 1; seq <= d.request; seq++ {
			if len(cookies) > 0 && cookies[0].seq == seq {
				d.enqueuePending(cookies[0])
				cookies = cookies[1:]
				continue
			}
			d.appendPending(seq)
		}
	} else {
		for _, req := range cookies {
			d.enqueuePending(req)
		}
	}
	d.unflushed = d.unflushed[:0]
	d.lastFlushed = d.request

	vecs := net.Buffers{d.buf, extra, zeroPad[:pad(len(extra))-len(extra)]}
	for _, ext := range d.extensions {
		if hook, ok := ext.hooks.(FlushHook); ok {
			for _, v := range vecs {
				if len(v) > 0 {
					hook.BeforeFlush(d, &ext.Codes, v)
				}
			}
		}
	}

	d.writes++
	_, err := vecs.WriteTo(d.conn)
	d.buf = d.buf[:0]
	if err != nil {
		return d.ioError(err)
	}

	if !d.checkInternalConnections() {
		return d.checkUsable()
	}
	if d.syncHazard() {
		d.seqSyncArmed = true
	}
	return nil
}

// claimSocket ends the connection setup phase. From the first flush on only
// send writes to the connection, and sequence numbers count from the
// requests issued so far.
func (d *Display) claimSocket() {
	if d.ownsSocket {
		return
	}
	d.ownsSocket = true
	logger.Debug("claimed connection for requests", "display", d.name, "lastFlushed", d.lastFlushed)
}

// Flush writes all buffered requests and reads whatever responses are
// already available.
func (d *Display) Flush() error {
	d.lock()
	defer d.unlock()
	if err := d.send(nil); err != nil {
		return err
	}
	d.eventsQueued(QueuedAfterReading)
	return d.checkUsable()
}
