package xlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapDatabase resolves fully qualified names only.
type mapDatabase map[string]string

func (m mapDatabase) Lookup(names, classes string) (string, string, bool) {
	if v, ok := m[names]; ok {
		return "String", v, true
	}
	v, ok := m[classes]
	return "String", v, ok
}

// shiftKeys maps keycode k to keysym 'a'+k, upper-cased with Shift.
type shiftKeys struct {
	bound map[uint32]string
}

func (k *shiftKeys) TranslateKey(keycode byte, state uint16) (uint32, uint16) {
	sym := uint32('a' + keycode)
	if state&1 != 0 {
		return sym - 'a' + 'A', 1
	}
	return sym, 0
}

func (k *shiftKeys) RebindKeysym(keysym uint32, mods []uint32, s string) error {
	if k.bound == nil {
		k.bound = make(map[uint32]string)
	}
	k.bound[keysym] = s
	return nil
}

func TestWithoutCollaborators(t *testing.T) {
	d := bareDisplay()

	_, err := d.LookupKeysym(1, 0)
	assert.ErrorIs(t, err, ErrNoCollaborator)
	assert.ErrorIs(t, d.RebindKeysym('a', nil, "x"), ErrNoCollaborator)
	_, err = d.GetDefault("xterm", "background")
	assert.ErrorIs(t, err, ErrNoCollaborator)
}

func TestKeyTranslator(t *testing.T) {
	keys := &shiftKeys{}
	d := bareDisplay(WithKeyTranslator(keys))

	sym, err := d.LookupKeysym(2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32('c'), sym)
	sym, err = d.LookupKeysym(2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32('C'), sym)

	require.NoError(t, d.RebindKeysym('c', []uint32{'C'}, "see"))
	assert.Equal(t, map[uint32]string{'c': "see"}, keys.bound)
}

func TestGetDefault(t *testing.T) {
	d := bareDisplay()
	d.resources = mapDatabase{
		"xterm.background":   "black",
		"Program.foreground": "white",
	}

	v, err := d.GetDefault("xterm", "background")
	require.NoError(t, err)
	assert.Equal(t, "black", v)

	v, err = d.GetDefault("xterm", "foreground")
	require.NoError(t, err)
	assert.Equal(t, "white", v)

	v, err = d.GetDefault("xterm", "font")
	require.NoError(t, err)
	assert.Empty(t, v)
}
