//go:build unix

package xlib

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// pollReadable polls fds without blocking and returns the readable ones.
// EINTR is reported as nothing being ready.
func pollReadable(fds []int) ([]int, error) {
	if len(fds) == 0 {
		return nil, nil
	}
	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}
	n, err := unix.Poll(pfds, 0)
	if err == unix.EINTR {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ready []int
	for i := 0; i < len(pfds) && len(ready) < n; i++ {
		if pfds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, fds[i])
		}
	}
	return ready, nil
}

// connReadable reports whether a read on c would not block.
func connReadable(c net.Conn) bool {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return false
	}
	readable := false
	err = rc.Control(func(fd uintptr) {
		pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(pfds, 0)
		readable = err == nil && n > 0
	})
	return err == nil && readable
}

func connFd(c net.Conn) int {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return -1
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	if err := rc.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1
	}
	return fd
}
