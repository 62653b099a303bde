//go:build !unix

package xlib

import "net"

func pollReadable(fds []int) ([]int, error) { return nil, nil }

func connReadable(c net.Conn) bool { return false }

func connFd(c net.Conn) int { return -1 }
