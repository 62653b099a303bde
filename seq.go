package xlib

// seqWrap is the period of the 16 bit sequence numbers on the wire.
const seqWrap = 1 << 16

// widen combines the high bits of wide with the wire sequence number narrow.
// Packets arrive in order, so a result below wide can only mean the low 16
// bits wrapped since wide was seen.
func widen(wide uint64, narrow uint16) uint64 {
	n := wide&^0xffff | uint64(narrow)
	if n < wide {
		n += seqWrap
	}
	return n
}

// setLastRequestRead records that the server has answered up to seq.
// Must be called with the display locked.
func (d *Display) setLastRequestRead(seq uint64) {
	if seq < d.lastRequestRead {
		throwThreadFail("sequence number moved backwards while processing reply")
	}
	d.lastRequestRead = seq
}

// noteEventSerial advances lastRequestRead for a delivered event. Events may
// be released after a later reply was consumed, so this never moves back.
func (d *Display) noteEventSerial(seq uint64) {
	if seq > d.lastRequestRead {
		d.lastRequestRead = seq
	}
}

// syncHazard reports whether the gap between the last issued and the last
// answered request is close enough to the 16 bit range that a round trip is
// needed before more requests go out.
func (d *Display) syncHazard() bool {
	span := d.request - d.lastRequestRead
	return span >= seqWrap-1-d.syncMargin
}

// defaultSyncMargin leaves room for every request one output buffer can
// hold, plus some slack.
func defaultSyncMargin(bufSize int) uint64 {
	hazard := uint64(bufSize / 4)
	if hazard > seqWrap-1-10 {
		hazard = seqWrap - 1 - 10
	}
	return hazard + 10
}

// syncHandle runs after every request: in synchronous mode it waits for the
// server to process it, otherwise it forces a round trip when the sequence
// numbers are about to become ambiguous.
// Must be called with the display locked.
func (d *Display) syncHandle() {
	if d.flags&flagIOError != 0 || d.inErrorHandler() {
		return
	}
	if d.synchronous {
		d.syncLocked(false)
		return
	}
	if !d.seqSyncArmed {
		return
	}
	d.seqSyncArmed = false
	if d.syncHazard() {
		logger.Debug("forcing round trip before sequence wrap",
			"request", d.request, "lastRequestRead", d.lastRequestRead)
		d.roundTrip()
	}
}
