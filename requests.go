package xlib

import (
	"github.com/pkg/errors"
)

// Event masks for SelectInput.
const (
	KeyPressMask           = 1 << 0
	KeyReleaseMask         = 1 << 1
	ButtonPressMask        = 1 << 2
	ButtonReleaseMask      = 1 << 3
	PointerMotionMask      = 1 << 6
	ExposureMask           = 1 << 15
	StructureNotifyMask    = 1 << 17
	SubstructureNotifyMask = 1 << 19
	FocusChangeMask        = 1 << 21
	PropertyChangeMask     = 1 << 22
)

// Window attribute masks for ChangeWindowAttributes.
const (
	CWBackPixel = 1 << 1
	CWEventMask = 1 << 11
)

// InternAtom returns the atom for name. With onlyIfExists a name the server
// does not know yet returns AtomNone.
func (d *Display) InternAtom(onlyIfExists bool, name string) (uint32, error) {
	var data byte
	if onlyIfExists {
		data = 1
	}
	fixed := make([]byte, 4)
	put16(fixed, uint16(len(name)))
	c, err := d.SendRequest(opInternAtom, data, fixed, []byte(name), RequestReply)
	if err != nil {
		return 0, err
	}
	r, err := c.ReplyWith(0, true)
	if err != nil {
		return 0, errors.Wrapf(err, "interning atom %q", name)
	}
	return get32(r.Header()[8:]), nil
}

// Property is the reply to GetProperty.
type Property struct {
	Format     byte
	Type       uint32
	BytesAfter uint32
	Value      []byte
}

// GetProperty reads a window property. offset and length are in 4 byte
// units.
func (d *Display) GetProperty(del bool, window, property, typ, offset, length uint32) (*Property, error) {
	var data byte
	if del {
		data = 1
	}
	fixed := make([]byte, 20)
	put32(fixed[0:], window)
	put32(fixed[4:], property)
	put32(fixed[8:], typ)
	put32(fixed[12:], offset)
	put32(fixed[16:], length)
	c, err := d.SendRequest(opGetProperty, data, fixed, nil, RequestReply)
	if err != nil {
		return nil, err
	}
	r, err := c.Reply()
	if err != nil {
		return nil, err
	}
	h := r.Header()
	prop := &Property{
		Format:     h[1],
		Type:       get32(h[8:]),
		BytesAfter: get32(h[12:]),
	}
	n := int(get32(h[16:])) * int(prop.Format/8)
	if prop.Format != 8 && prop.Format != 16 && prop.Format != 32 {
		n = 0
	}
	prop.Value = make([]byte, n)
	if err := r.ReadPadded(prop.Value); err != nil {
		return nil, err
	}
	return prop, nil
}

// ChangeWindowAttributes sets the attributes selected by mask. values are
// given in mask bit order.
func (d *Display) ChangeWindowAttributes(window, mask uint32, values []uint32) error {
	if popCount(int(mask)) != len(values) {
		return errors.Errorf("mask 0x%x selects %d values, got %d", mask, popCount(int(mask)), len(values))
	}
	fixed := make([]byte, 8)
	put32(fixed[0:], window)
	put32(fixed[4:], mask)
	_, err := d.SendRequest(opChangeWindowAttributes, 0, fixed, bytesUInt32List(values), RequestVoid)
	return err
}

// SelectInput selects the events of window the client is interested in.
func (d *Display) SelectInput(window, mask uint32) error {
	return d.ChangeWindowAttributes(window, CWEventMask, []uint32{mask})
}

// NoOperation sends a request the server ignores.
func (d *Display) NoOperation() error {
	_, err := d.SendRequest(opNoOperation, 0, nil, nil, RequestVoid)
	return err
}

// GetInputFocus returns the window that has the input focus and the revert
// mode.
func (d *Display) GetInputFocus() (focus uint32, revertTo byte, err error) {
	c, err := d.SendRequest(opGetInputFocus, 0, nil, nil, RequestReply)
	if err != nil {
		return 0, 0, err
	}
	r, err := c.ReplyWith(0, true)
	if err != nil {
		return 0, 0, err
	}
	h := r.Header()
	return get32(h[8:]), h[1], nil
}
