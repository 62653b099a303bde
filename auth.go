// Copyright 2009 The XGB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xlib

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// As per /usr/include/X11/Xauth.h.
const (
	familyLocal     = 256
	familyWild      = 65535
	authMagicCookie = "MIT-MAGIC-COOKIE-1"
)

func getU16BE(r io.Reader, b []byte) (uint16, error) {
	_, err := io.ReadFull(r, b[0:2])
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 + uint16(b[1]), nil
}

func getBytes(r io.Reader, b []byte) ([]byte, error) {
	n, err := getU16BE(r, b)
	if err != nil {
		return nil, err
	}
	if int(n) > len(b) {
		return nil, errors.New("bytes too long for buffer")
	}
	_, err = io.ReadFull(r, b[0:n])
	if err != nil {
		return nil, err
	}
	return b[0:n], nil
}

func getString(r io.Reader, b []byte) (string, error) {
	b, err := getBytes(r, b)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// authorityFile returns the Xauthority file named by the configuration.
func authorityFile(cfg Config) (string, error) {
	if cfg.XAuthority != "" {
		return cfg.XAuthority, nil
	}
	if cfg.Home == "" {
		return "", errors.New("Xauthority not found: $XAUTHORITY, $HOME not set")
	}
	return cfg.Home + "/.Xauthority", nil
}

// readAuthority reads the X authority file for the display.
// If hostname == "" or hostname == "localhost",
// readAuthority uses the system's hostname (as returned by os.Hostname) instead.
func readAuthority(cfg Config, hostname, display string) (name string, data []byte, err error) {
	if len(hostname) == 0 || hostname == "localhost" {
		hostname, err = os.Hostname()
		if err != nil {
			return "", nil, err
		}
	}

	fname, err := authorityFile(cfg)
	if err != nil {
		return "", nil, err
	}
	r, err := os.Open(fname)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()
	return findAuthority(bufio.NewReader(r), hostname, display)
}

// findAuthority scans Xauthority entries for the first one matching the
// local host and display.
func findAuthority(r io.Reader, hostname, display string) (string, []byte, error) {
	// b is a scratch buffer to use and should be at least 256 bytes long
	// (i.e. it should be able to hold a hostname).
	var b [256]byte
	for {
		family, err := getU16BE(r, b[0:2])
		if err != nil {
			return "", nil, errors.Wrap(err, "no matching Xauthority entry")
		}

		addr, err := getString(r, b[0:])
		if err != nil {
			return "", nil, err
		}

		disp, err := getString(r, b[0:])
		if err != nil {
			return "", nil, err
		}

		name0, err := getString(r, b[0:])
		if err != nil {
			return "", nil, err
		}

		data0, err := getBytes(r, b[0:])
		if err != nil {
			return "", nil, err
		}

		if (family == familyLocal && addr == hostname || family == familyWild) &&
			(disp == display || disp == "") {
			return name0, append([]byte(nil), data0...), nil
		}
	}
}
