package xlib

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xauthEntry struct {
	family  uint16
	addr    string
	display string
	name    string
	data    []byte
}

func encodeXauthority(entries ...xauthEntry) []byte {
	var buf bytes.Buffer
	putU16BE := func(v int) {
		buf.WriteByte(byte(v >> 8))
		buf.WriteByte(byte(v))
	}
	for _, e := range entries {
		putU16BE(int(e.family))
		for _, s := range [][]byte{[]byte(e.addr), []byte(e.display), []byte(e.name), e.data} {
			putU16BE(len(s))
			buf.Write(s)
		}
	}
	return buf.Bytes()
}

func writeXauthority(t *testing.T, entries ...xauthEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".Xauthority")
	require.NoError(t, os.WriteFile(path, encodeXauthority(entries...), 0600))
	return path
}

func TestFindAuthority(t *testing.T) {
	other := xauthEntry{familyLocal, "otherhost", "0", authMagicCookie, []byte("other")}
	wrongDisplay := xauthEntry{familyLocal, "myhost", "1", authMagicCookie, []byte("display1")}
	mine := xauthEntry{familyLocal, "myhost", "0", authMagicCookie, []byte("mine")}
	anyDisplay := xauthEntry{familyLocal, "myhost", "", "XDM-AUTHORIZATION-1", []byte("any")}
	wild := xauthEntry{familyWild, "", "0", authMagicCookie, []byte("wild")}

	for _, tc := range []struct {
		name     string
		entries  []xauthEntry
		wantName string
		wantData string
	}{
		{"exact", []xauthEntry{other, wrongDisplay, mine}, authMagicCookie, "mine"},
		{"first match wins", []xauthEntry{mine, wild}, authMagicCookie, "mine"},
		{"empty display", []xauthEntry{wrongDisplay, anyDisplay, mine}, "XDM-AUTHORIZATION-1", "any"},
		{"wild", []xauthEntry{other, wild}, authMagicCookie, "wild"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			name, data, err := findAuthority(bytes.NewReader(encodeXauthority(tc.entries...)), "myhost", "0")
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, name)
			assert.Equal(t, tc.wantData, string(data))
		})
	}

	_, _, err := findAuthority(bytes.NewReader(encodeXauthority(other, wrongDisplay)), "myhost", "0")
	assert.Error(t, err)

	// A truncated entry.
	b := encodeXauthority(mine)
	_, _, err = findAuthority(bytes.NewReader(b[:len(b)-2]), "myhost", "0")
	assert.Error(t, err)
}

func TestReadAuthority(t *testing.T) {
	cookie := []byte("0123456789abcdef")
	path := writeXauthority(t, xauthEntry{familyLocal, "myhost", "0", authMagicCookie, cookie})

	name, data, err := readAuthority(Config{XAuthority: path}, "myhost", "0")
	require.NoError(t, err)
	assert.Equal(t, authMagicCookie, name)
	assert.Equal(t, cookie, data)

	_, _, err = readAuthority(Config{XAuthority: path + ".missing"}, "myhost", "0")
	assert.Error(t, err)
}

func TestAuthorityFile(t *testing.T) {
	f, err := authorityFile(Config{XAuthority: "/a/b", Home: "/home/x"})
	require.NoError(t, err)
	assert.Equal(t, "/a/b", f)

	f, err = authorityFile(Config{Home: "/home/x"})
	require.NoError(t, err)
	assert.Equal(t, "/home/x/.Xauthority", f)

	_, err = authorityFile(Config{})
	assert.Error(t, err)
}
