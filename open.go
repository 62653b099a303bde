package xlib

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
)

// Values of the default GCs.
const (
	gcForeground = 1 << 2
	gcBackground = 1 << 3
)

const bigRequestsName = "BIG-REQUESTS"

// maxPropertyLength is how many 4 byte units of RESOURCE_MANAGER are read.
const maxPropertyLength = 100000000

// Open connects to the X server named by name, or by $DISPLAY when name is
// empty, and performs the connection setup.
//
// Examples:
//	Open(":1")                 -> unix socket /tmp/.X11-unix/X1
//	Open("/tmp/launch-123/:0") -> unix socket /tmp/launch-123/:0
//	Open("hostname:2.1")       -> tcp hostname:6002, default screen 1
//	Open("tcp/hostname:1.0")   -> tcp hostname:6001
func Open(name string, opts ...Option) (*Display, error) {
	o := buildOptions(opts)
	if name == "" {
		name = o.cfg.Display
	}
	if name == "" {
		return nil, ErrNoDisplay
	}
	addr, err := parseDisplay(name)
	if err != nil {
		return nil, err
	}
	conn, err := dialDisplay(addr)
	if err != nil {
		return nil, err
	}
	return openConn(conn, name, addr, o)
}

// OpenConn performs the connection setup over an existing connection. name
// selects the default screen and the Xauthority entry; it may be empty.
func OpenConn(conn net.Conn, name string, opts ...Option) (*Display, error) {
	o := buildOptions(opts)
	var addr displayAddr
	if name != "" {
		a, err := parseDisplay(name)
		if err != nil {
			conn.Close()
			return nil, err
		}
		addr = a
	}
	return openConn(conn, name, addr, o)
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		cfg := LoadConfig()
		o.cfg = &cfg
	}
	if o.locking == nil {
		o.locking = nopLocking{}
	}
	return o
}

func newDisplay(conn net.Conn, name string, o *options) *Display {
	l := o.locking
	size := o.bufferSize()
	d := &Display{
		name:            name,
		conn:            conn,
		rd:              bufio.NewReader(conn),
		locking:         l,
		userNotify:      l.NewCond(),
		buf:             make([]byte, 0, size),
		syncMargin:      o.margin(size),
		synchronous:     o.cfg.Synchronous,
		in:              newWire(l),
		pending:         queue.New(),
		pendingBySeq:    make(map[uint64]*pendingRequest),
		eventNotify:     l.NewCond(),
		replyNotify:     l.NewCond(),
		nextEventSerial: 1,
		wireToEvent:     make(map[byte]WireToEventFunc),
		cookieFuncs:     make(map[byte]CookieFunc),
		errorHandler:    o.errorHandler,
		ioErrorHandler:  o.ioErrorHandler,
		exitHandler:     o.exitHandler,
		keys:            o.keys,
		resourceParser:  o.resourceParser,
		cfg:             *o.cfg,
		flags:           flagOpening,
	}
	if o.synchronous != nil {
		d.synchronous = *o.synchronous
	}
	return d
}

func openConn(conn net.Conn, name string, addr displayAddr, o *options) (*Display, error) {
	d := newDisplay(conn, name, o)
	// Synchronous mode is turned on once the display is set up.
	synchronous := d.synchronous
	d.synchronous = false

	if err := d.handshake(addr); err != nil {
		d.lock()
		d.freeDisplayStructure()
		d.unlock()
		return nil, err
	}
	if err := d.initialize(synchronous); err != nil {
		d.lock()
		d.freeDisplayStructure()
		d.unlock()
		return nil, err
	}

	d.lock()
	d.flags &^= flagOpening
	d.unlock()
	logger.Debug("opened display", "name", name, "screens", len(d.setup.Roots),
		"vendor", d.setup.Vendor, "maxRequest", d.MaxRequestSize())
	return d, nil
}

// handshake sends the connection setup and parses the server's answer.
func (d *Display) handshake(addr displayAddr) error {
	authName, authData, err := readAuthority(d.cfg, addr.authHost(), addr.display)
	if err != nil {
		logger.Debug("could not get authority info, trying without", "err", err)
		authName, authData = "", nil
	} else if authName != authMagicCookie || len(authData) != 16 {
		logger.Warn("unsupported auth protocol, trying without", "protocol", authName)
		authName, authData = "", nil
	}

	buf := make([]byte, 12+pad(len(authName))+pad(len(authData)))
	buf[0] = 'l'
	buf[1] = 0
	put16(buf[2:], 11)
	put16(buf[4:], 0)
	put16(buf[6:], uint16(len(authName)))
	put16(buf[8:], uint16(len(authData)))
	put16(buf[10:], 0)
	copy(buf[12:], authName)
	copy(buf[12+pad(len(authName)):], authData)
	if _, err := d.conn.Write(buf); err != nil {
		return errors.Wrap(err, "writing connection setup")
	}

	head := make([]byte, setupPrefixSize)
	if _, err := io.ReadFull(d.rd, head); err != nil {
		return errors.Wrap(err, "reading connection setup")
	}
	status := head[0]
	reasonLen := head[1]
	major := get16(head[2:])
	minor := get16(head[4:])
	data := make([]byte, int(get16(head[6:]))*4)
	if _, err := io.ReadFull(d.rd, data); err != nil {
		return errors.Wrap(err, "reading connection setup")
	}

	if status != setupSuccess {
		return &SetupError{Display: d.name, Reason: setupFailure(status, reasonLen, data)}
	}
	if major != 11 {
		return &SetupError{Display: d.name, Reason: fmt.Sprintf("x protocol version mismatch: %d.%d", major, minor)}
	}
	setup, err := parseSetup(major, minor, data, d.cfg.SkipARGBVisuals, addr.screen)
	if err != nil {
		return &SetupError{Display: d.name, Reason: err.Error()}
	}
	d.setup = setup
	d.defaultScreen = addr.screen
	d.maxRequestLen = uint32(setup.MaximumRequestLength)
	return nil
}

// initialize issues the requests every display starts with.
func (d *Display) initialize(synchronous bool) error {
	if err := d.enableBigRequests(); err != nil {
		return err
	}
	if err := d.createDefaultGCs(); err != nil {
		return err
	}
	d.Synchronize(synchronous)
	return d.loadResourceManager()
}

func (d *Display) enableBigRequests() error {
	info, err := d.QueryExtension(bigRequestsName)
	if err != nil {
		return err
	}
	if !info.Present {
		return nil
	}
	c, err := d.SendRequest(info.MajorOpcode, 0, nil, nil, RequestReply)
	if err != nil {
		return err
	}
	r, err := c.ReplyWith(0, true)
	if err != nil {
		return errors.Wrap(err, "enabling big requests")
	}
	d.lock()
	d.bigReqOpcode = info.MajorOpcode
	d.bigReqLen = get32(r.Header()[8:])
	d.unlock()
	return nil
}

func (d *Display) createDefaultGCs() error {
	for i := range d.setup.Roots {
		scr := &d.setup.Roots[i]
		gc, err := d.AllocID()
		if err != nil {
			return err
		}
		fixed := make([]byte, 20)
		put32(fixed[0:], gc)
		put32(fixed[4:], scr.Root)
		put32(fixed[8:], gcForeground|gcBackground)
		put32(fixed[12:], scr.BlackPixel)
		put32(fixed[16:], scr.WhitePixel)
		if _, err := d.SendRequest(opCreateGC, 0, fixed, nil, RequestVoid); err != nil {
			return err
		}
		scr.DefaultGC = gc
	}
	return nil
}

// loadResourceManager reads the RESOURCE_MANAGER property of the first
// root window.
func (d *Display) loadResourceManager() error {
	prop, err := d.GetProperty(false, d.setup.Roots[0].Root, AtomResourceManager,
		AtomString, 0, maxPropertyLength)
	if err != nil {
		return err
	}
	if prop.Format == 8 && prop.Type == AtomString {
		d.xdefaults = string(prop.Value)
	}
	if d.resourceParser != nil {
		d.resources = d.resourceParser(d.xdefaults)
	}
	return nil
}
