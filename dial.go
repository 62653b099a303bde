package xlib

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// displayAddr is a parsed display name.
type displayAddr struct {
	protocol string
	host     string
	socket   string
	display  string
	screen   int
}

// parseDisplay splits a display name.
//
// Examples:
//	":1"                 -> unix socket /tmp/.X11-unix/X1
//	"/tmp/launch-123/:0" -> unix socket /tmp/launch-123/:0
//	"hostname:2.1"       -> tcp hostname:6002, screen 1
//	"tcp/hostname:1.0"   -> tcp hostname:6001
func parseDisplay(name string) (displayAddr, error) {
	var a displayAddr
	bad := errors.Errorf("bad display string: %q", name)

	colonIdx := strings.LastIndex(name, ":")
	if colonIdx < 0 {
		return a, bad
	}
	if name[0] == '/' {
		a.socket = name[0:colonIdx]
	} else {
		slashIdx := strings.LastIndex(name[:colonIdx], "/")
		if slashIdx >= 0 {
			a.protocol = name[0:slashIdx]
			a.host = name[slashIdx+1 : colonIdx]
		} else {
			a.host = name[0:colonIdx]
		}
	}

	rest := name[colonIdx+1:]
	if len(rest) == 0 {
		return a, bad
	}
	var scr string
	if dotIdx := strings.LastIndex(rest, "."); dotIdx < 0 {
		a.display = rest
	} else {
		a.display = rest[0:dotIdx]
		scr = rest[dotIdx+1:]
	}

	dispnum, err := strconv.Atoi(a.display)
	if err != nil || dispnum < 0 {
		return a, bad
	}
	if len(scr) != 0 {
		a.screen, err = strconv.Atoi(scr)
		if err != nil || a.screen < 0 {
			return a, bad
		}
	}
	return a, nil
}

// network returns what to hand to net.Dial.
func (a displayAddr) network() (network, address string) {
	switch {
	case len(a.socket) != 0:
		return "unix", a.socket + ":" + a.display
	case len(a.host) != 0 && a.host != "unix":
		protocol := a.protocol
		if protocol == "" || protocol == "inet" {
			protocol = "tcp"
		}
		dispnum, _ := strconv.Atoi(a.display)
		return protocol, net.JoinHostPort(a.host, strconv.Itoa(6000+dispnum))
	}
	return "unix", "/tmp/.X11-unix/X" + a.display
}

// authHost is the host name to look up in the Xauthority file.
func (a displayAddr) authHost() string {
	if a.host == "unix" {
		return ""
	}
	return a.host
}

var dial = net.Dial

func dialDisplay(a displayAddr) (net.Conn, error) {
	network, address := a.network()
	conn, err := dial(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s %s", network, address)
	}
	return conn, nil
}
