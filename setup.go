package xlib

import (
	"fmt"
)

// Setup is the connection setup sent by the server.
type Setup struct {
	ProtocolMajorVersion     uint16
	ProtocolMinorVersion     uint16
	ReleaseNumber            uint32
	ResourceIDBase           uint32
	ResourceIDMask           uint32
	MotionBufferSize         uint32
	MaximumRequestLength     uint16
	ImageByteOrder           byte
	BitmapFormatBitOrder     byte
	BitmapFormatScanlineUnit byte
	BitmapFormatScanlinePad  byte
	MinKeycode               byte
	MaxKeycode               byte
	Vendor                   string
	PixmapFormats            []PixmapFormat
	Roots                    []Screen
}

type PixmapFormat struct {
	Depth        byte
	BitsPerPixel byte
	ScanlinePad  byte
}

// Screen describes one root window.
type Screen struct {
	Root                uint32
	DefaultColormap     uint32
	WhitePixel          uint32
	BlackPixel          uint32
	CurrentInputMasks   uint32
	WidthInPixels       uint16
	HeightInPixels      uint16
	WidthInMillimeters  uint16
	HeightInMillimeters uint16
	MinInstalledMaps    uint16
	MaxInstalledMaps    uint16
	RootVisual          uint32
	BackingStores       byte
	SaveUnders          bool
	RootDepth           byte
	AllowedDepths       []Depth

	// DefaultGC is created when the display is opened.
	DefaultGC uint32
}

type Depth struct {
	Depth   byte
	Visuals []Visual
}

type Visual struct {
	VisualID        uint32
	Class           byte
	BitsPerRGBValue byte
	ColormapEntries uint16
	RedMask         uint32
	GreenMask       uint32
	BlueMask        uint32
}

// Setup block sizes.
const (
	setupPrefixSize = 8
	connSetupSize   = 32
	formatSize      = 8
	screenSize      = 40
	depthSize       = 8
	visualSize      = 24
	maxVendorLength = 256
)

// setupStatus values of the setup prefix.
const (
	setupFailed       = 0
	setupSuccess      = 1
	setupAuthenticate = 2
)

// setupReader walks the setup data. Every read is checked against the
// declared length first; the first failure sticks.
type setupReader struct {
	b   []byte
	off int
	err error
}

func (r *setupReader) next(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.b) {
		r.err = fmt.Errorf("%s overruns the setup data (%d of %d bytes used)", what, r.off, len(r.b))
		return nil
	}
	b := r.b[r.off : r.off+n]
	r.off += n
	return b
}

// parseSetup parses the data following the setup prefix. defaultScreen must
// name an existing screen.
func parseSetup(major, minor uint16, data []byte, skipARGB bool, defaultScreen int) (*Setup, error) {
	r := &setupReader{b: data}
	s := &Setup{
		ProtocolMajorVersion: major,
		ProtocolMinorVersion: minor,
	}

	b := r.next(connSetupSize, "connection setup")
	if b == nil {
		return nil, r.err
	}
	s.ReleaseNumber = get32(b[0:])
	s.ResourceIDBase = get32(b[4:])
	s.ResourceIDMask = get32(b[8:])
	s.MotionBufferSize = get32(b[12:])
	vendorLen := int(get16(b[16:]))
	s.MaximumRequestLength = get16(b[18:])
	nscreens := int(b[20])
	nformats := int(b[21])
	s.ImageByteOrder = b[22]
	s.BitmapFormatBitOrder = b[23]
	s.BitmapFormatScanlineUnit = b[24]
	s.BitmapFormatScanlinePad = b[25]
	s.MinKeycode = b[26]
	s.MaxKeycode = b[27]

	if vendorLen > maxVendorLength {
		return nil, fmt.Errorf("vendor string is %d bytes long", vendorLen)
	}
	if s.ResourceIDMask == 0 {
		return nil, fmt.Errorf("resource id mask is zero")
	}

	if v := r.next(pad(vendorLen), "vendor string"); v != nil {
		s.Vendor = string(v[:vendorLen])
	}

	s.PixmapFormats = make([]PixmapFormat, 0, nformats)
	for i := 0; i < nformats; i++ {
		f := r.next(formatSize, "pixmap format")
		if f == nil {
			break
		}
		s.PixmapFormats = append(s.PixmapFormats, PixmapFormat{
			Depth:        f[0],
			BitsPerPixel: f[1],
			ScanlinePad:  f[2],
		})
	}

	s.Roots = make([]Screen, 0, nscreens)
	for i := 0; i < nscreens && r.err == nil; i++ {
		s.Roots = append(s.Roots, r.screen(skipARGB))
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("setup data has %d bytes, parsed %d", len(data), r.off)
	}
	if defaultScreen < 0 || defaultScreen >= len(s.Roots) {
		return nil, fmt.Errorf("screen %d does not exist, server has %d", defaultScreen, len(s.Roots))
	}
	return s, nil
}

func (r *setupReader) screen(skipARGB bool) Screen {
	b := r.next(screenSize, "screen")
	if b == nil {
		return Screen{}
	}
	scr := Screen{
		Root:                get32(b[0:]),
		DefaultColormap:     get32(b[4:]),
		WhitePixel:          get32(b[8:]),
		BlackPixel:          get32(b[12:]),
		CurrentInputMasks:   get32(b[16:]),
		WidthInPixels:       get16(b[20:]),
		HeightInPixels:      get16(b[22:]),
		WidthInMillimeters:  get16(b[24:]),
		HeightInMillimeters: get16(b[26:]),
		MinInstalledMaps:    get16(b[28:]),
		MaxInstalledMaps:    get16(b[30:]),
		RootVisual:          get32(b[32:]),
		BackingStores:       b[36],
		SaveUnders:          b[37] != 0,
		RootDepth:           b[38],
	}
	ndepths := int(b[39])
	scr.AllowedDepths = make([]Depth, 0, ndepths)
	for i := 0; i < ndepths; i++ {
		db := r.next(depthSize, "depth")
		if db == nil {
			return scr
		}
		dep := Depth{Depth: db[0]}
		nvisuals := int(get16(db[2:]))
		dep.Visuals = make([]Visual, 0, nvisuals)
		for j := 0; j < nvisuals; j++ {
			vb := r.next(visualSize, "visual")
			if vb == nil {
				return scr
			}
			dep.Visuals = append(dep.Visuals, Visual{
				VisualID:        get32(vb[0:]),
				Class:           vb[4],
				BitsPerRGBValue: vb[5],
				ColormapEntries: get16(vb[6:]),
				RedMask:         get32(vb[8:]),
				GreenMask:       get32(vb[12:]),
				BlueMask:        get32(vb[16:]),
			})
		}
		if skipARGB && dep.Depth == 32 {
			dep.Visuals = nil
		}
		scr.AllowedDepths = append(scr.AllowedDepths, dep)
	}
	return scr
}

// setupFailure returns the reason text of a refused connection. data is the
// setup data following the prefix.
func setupFailure(status, reasonLen byte, data []byte) string {
	switch status {
	case setupFailed:
		n := int(reasonLen)
		if n > len(data) {
			n = len(data)
		}
		return string(data[:n])
	case setupAuthenticate:
		// The reason fills the data, padded with zero bytes.
		end := len(data)
		for end > 0 && data[end-1] == 0 {
			end--
		}
		return "authentication required: " + string(data[:end])
	}
	return fmt.Sprintf("unknown setup status %d", status)
}
