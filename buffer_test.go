package xlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLengthIsPadded(t *testing.T) {
	PrintLog = false
	defer func() { PrintLog = true }()

	d := bareDisplay()
	req, err := d.getRequest(opNoOperation, 0, 6)
	require.NoError(t, err)
	assert.Len(t, req, 8)
	assert.Equal(t, uint16(2), get16(req[2:]))
	assert.Len(t, d.buf, 8)
	assert.Equal(t, uint64(1), d.request)
}

func TestSendRequestEncoding(t *testing.T) {
	srv := newXServer()
	d, _ := openTestDisplay(t, srv)
	defer d.Close()

	fixed := []byte{1, 2, 3, 4}
	body := []byte("hello")
	c, err := d.SendRequest(200, 7, fixed, body, RequestVoid)
	require.NoError(t, err)
	require.NoError(t, d.Flush())

	reqs := srv.requestsWith(200)
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, uint16(c.Sequence()), r.seq)
	assert.Equal(t, byte(7), r.data)
	assert.Len(t, r.raw, 16)
	assert.Equal(t, uint16(4), get16(r.raw[2:]))
	assert.Equal(t, fixed, r.raw[4:8])
	assert.Equal(t, []byte("hello\x00\x00\x00"), r.raw[8:])
}

func TestFlushIsIdempotent(t *testing.T) {
	srv := newXServer()
	d, _ := openTestDisplay(t, srv)
	defer d.Close()

	require.NoError(t, d.NoOperation())
	require.NoError(t, d.Flush())
	writes := d.writes
	require.NoError(t, d.Flush())
	require.NoError(t, d.Flush())
	assert.Equal(t, writes, d.writes)
	assert.Len(t, srv.requestsWith(opNoOperation), 1)
}

func TestBufferFlushesWhenFull(t *testing.T) {
	srv := newXServer()
	d, _ := openTestDisplay(t, srv, WithBufferSize(minBufferSize))
	defer d.Close()

	// One request more than fits.
	n := minBufferSize/4 + 1
	for i := 0; i < n; i++ {
		require.NoError(t, d.NoOperation())
	}
	assert.Len(t, srv.requestsWith(opNoOperation), n-1)
	require.NoError(t, d.Flush())
	assert.Len(t, srv.requestsWith(opNoOperation), n)
}

func TestBigRequests(t *testing.T) {
	srv := newXServer()
	d, _ := openTestDisplay(t, srv)
	defer d.Close()
	require.Equal(t, uint32(testBigReqMax), d.MaxRequestSize())

	body := make([]byte, 0x10000*4)
	body[0] = 0xaa
	_, err := d.SendRequest(201, 0, []byte{9, 9, 9, 9}, body, RequestVoid)
	require.NoError(t, err)
	require.NoError(t, d.Flush())

	reqs := srv.requestsWith(201)
	require.Len(t, reqs, 1)
	raw := reqs[0].raw
	assert.Equal(t, uint16(0), get16(raw[2:]))
	// Header, length, fixed part and body.
	assert.Equal(t, uint32(3+0x10000), get32(raw[4:]))
	assert.Equal(t, []byte{9, 9, 9, 9}, raw[8:12])
	assert.Equal(t, byte(0xaa), raw[12])
	assert.Len(t, raw, 12+len(body))
}

func TestRequestTooLarge(t *testing.T) {
	srv := newXServer()
	srv.bigRequests = false
	d, _ := openTestDisplay(t, srv)
	defer d.Close()
	require.Equal(t, uint32(65535), d.MaxRequestSize())

	before := d.NextRequest()
	_, err := d.SendRequest(201, 0, nil, make([]byte, 0x10000*4), RequestVoid)
	assert.ErrorIs(t, err, ErrRequestTooLarge)
	assert.Equal(t, before, d.NextRequest())
}
