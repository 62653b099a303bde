package xlib

import (
	"github.com/pkg/errors"
)

// ExtCodes are the codes the server assigned to an extension. Extensions
// registered with AddExtension only have the local Extension number.
type ExtCodes struct {
	Extension   int
	MajorOpcode byte
	FirstEvent  byte
	FirstError  byte
}

// Extension is a registered extension. Its hooks value may implement any of
// CloseHook, ErrorHook, FlushHook, EventHook and CookieHook.
type Extension struct {
	Name  string
	Codes ExtCodes
	hooks interface{}
}

// CloseHook runs while the display is being closed, before the connection
// is shut down.
type CloseHook interface {
	OnClose(d *Display, codes *ExtCodes) error
}

// ErrorHook sees protocol errors that arrive while waiting for a reply. A
// hook that suppresses the error keeps it from the error handlers; status is
// then what the waiting call's handling reports.
type ErrorHook interface {
	OnError(d *Display, err *ProtocolError, codes *ExtCodes) (status int, suppressed bool)
}

// FlushHook sees every chunk of data just before it is written. It must not
// modify data.
type FlushHook interface {
	BeforeFlush(d *Display, codes *ExtCodes, data []byte)
}

// EventHook converts the extension's EventCount events starting at
// FirstEvent.
type EventHook interface {
	EventCount() int
	WireToEvent(d *Display, codes *ExtCodes, raw []byte, ev *Event) bool
}

// CookieHook decodes the payload of the extension's generic events.
type CookieHook interface {
	CookieToEvent(d *Display, codes *ExtCodes, raw []byte, ev *Event) bool
}

// ExtensionInfo is the answer to QueryExtension.
type ExtensionInfo struct {
	Present     bool
	MajorOpcode byte
	FirstEvent  byte
	FirstError  byte
}

// QueryExtension asks the server whether the named extension is present.
func (d *Display) QueryExtension(name string) (ExtensionInfo, error) {
	fixed := make([]byte, 4)
	put16(fixed, uint16(len(name)))
	c, err := d.SendRequest(opQueryExtension, 0, fixed, []byte(name), RequestReply)
	if err != nil {
		return ExtensionInfo{}, err
	}
	r, err := c.ReplyWith(0, true)
	if err != nil {
		return ExtensionInfo{}, errors.Wrapf(err, "querying extension %s", name)
	}
	h := r.Header()
	return ExtensionInfo{
		Present:     h[8] == 1,
		MajorOpcode: h[9],
		FirstEvent:  h[10],
		FirstError:  h[11],
	}, nil
}

// InitExtension queries the named extension and registers hooks for it. It
// returns ErrNoExtension if the server does not have it.
func (d *Display) InitExtension(name string, hooks interface{}) (*Extension, error) {
	info, err := d.QueryExtension(name)
	if err != nil {
		return nil, err
	}
	if !info.Present {
		return nil, errors.Wrap(ErrNoExtension, name)
	}
	d.lock()
	defer d.unlock()
	ext := d.registerExtension(name, hooks)
	ext.Codes.MajorOpcode = info.MajorOpcode
	ext.Codes.FirstEvent = info.FirstEvent
	ext.Codes.FirstError = info.FirstError
	d.installEventHooks(ext)
	logger.Debug("initialized extension", "name", name, "major", info.MajorOpcode)
	return ext, nil
}

// AddExtension registers hooks without an extension on the server.
func (d *Display) AddExtension(hooks interface{}) *Extension {
	d.lock()
	defer d.unlock()
	return d.registerExtension("", hooks)
}

func (d *Display) registerExtension(name string, hooks interface{}) *Extension {
	ext := &Extension{Name: name, hooks: hooks}
	ext.Codes.Extension = len(d.extensions) + 1
	d.extensions = append(d.extensions, ext)
	return ext
}

func (d *Display) installEventHooks(ext *Extension) {
	if hook, ok := ext.hooks.(EventHook); ok {
		if int(ext.Codes.FirstEvent&0x7f)+hook.EventCount() > 128 {
			throwExtlibFail(ext.Name + " claims more events than exist")
		}
		for i := 0; i < hook.EventCount(); i++ {
			d.wireToEvent[(ext.Codes.FirstEvent+byte(i))&0x7f] = func(d *Display, raw []byte, ev *Event) bool {
				return hook.WireToEvent(d, &ext.Codes, raw, ev)
			}
		}
	}
	if hook, ok := ext.hooks.(CookieHook); ok {
		d.cookieFuncs[ext.Codes.MajorOpcode&0x7f] = func(d *Display, raw []byte, ev *Event) bool {
			return hook.CookieToEvent(d, &ext.Codes, raw, ev)
		}
	}
}

// Extensions returns the registered extensions.
func (d *Display) Extensions() []*Extension {
	d.lock()
	defer d.unlock()
	return append([]*Extension(nil), d.extensions...)
}

// AsyncFunc sees replies and errors nobody waits for, in the order they
// arrive, before they get default handling. Returning true consumes the
// response. It runs with the display locked and must not call methods of d.
type AsyncFunc func(d *Display, raw []byte) bool

// AsyncHandler is a registered AsyncFunc.
type AsyncHandler struct {
	fn AsyncFunc
}

// AddAsyncHandler registers fn. The newest handler runs first. While any
// handler is registered every request gets tracked, so its responses can
// be matched.
func (d *Display) AddAsyncHandler(fn AsyncFunc) *AsyncHandler {
	d.lock()
	defer d.unlock()
	h := &AsyncHandler{fn: fn}
	d.asyncHandlers = append([]*AsyncHandler{h}, d.asyncHandlers...)
	return h
}

// RemoveAsyncHandler unregisters h.
func (d *Display) RemoveAsyncHandler(h *AsyncHandler) {
	d.lock()
	defer d.unlock()
	for i, x := range d.asyncHandlers {
		if x == h {
			d.asyncHandlers = append(d.asyncHandlers[:i], d.asyncHandlers[i+1:]...)
			return
		}
	}
}
