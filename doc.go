/*
Package xlib implements the client side protocol engine of the X Window System:
the part of Xlib that buffers requests, tracks sequence numbers, matches
replies and errors to the requests that caused them, queues events and lets
several goroutines share one connection.

It does not know about most requests. SendRequest takes an opcode and the
request's bytes and returns a Cookie; the reply comes back as a Reply that is
read in order, the way the C library's _XReply and _XRead work. The handful of
requests the engine needs itself (GetInputFocus, QueryExtension, InternAtom,
GetProperty, CreateGC and friends) have small wrappers.

Example

This is an extremely terse example that demonstrates how to connect to X,
listen to PropertyNotify events on the root window and print out all events
received. A longer example can be found in cmd/xlibinfo.

	package main

	import (
		"fmt"
		"log"

		"github.com/BurntSushi/xlib"
	)

	func main() {
		X, err := xlib.Open("")
		if err != nil {
			log.Fatal(err)
		}
		defer X.Close()

		X.SelectInput(X.RootWindow(), xlib.PropertyChangeMask)
		for {
			ev, err := X.NextEvent()
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("Event: type %d, serial %d\n", ev.Type, ev.Serial)
		}
	}

Replies and errors

A request issued with RequestReply or RequestChecked owns its response: other
goroutines that read the response while waiting for their own keep it for the
cookie. Responses of requests issued without a cookie go to the async handlers
and then to the error handler, in the order the server sent them.

Some errors are expected by the caller and never reach the error handler when
they arrive as the answer to a reply wait: BadName for LookupColor and
AllocNamedColor, BadFont for QueryFont, and any BadAlloc or BadAccess.

Goroutines

A Display opened without WithThreads must only be used from one goroutine at a
time. With WithThreads any number of goroutines may issue requests and wait for
replies and events concurrently. LockDisplay and UnlockDisplay make a sequence
of calls atomic with respect to other goroutines.

Sequence numbers

The server only sends the low 16 bits of a sequence number. The engine widens
them using the last sequence number it saw, and forces a round trip before the
number of requests in flight gets close enough to 65536 that the widening
could pick the wrong value.

Connection failures

A failed read or write is fatal. The I/O error handler and the exit handler
run, the display is freed and every later call returns an error matching
ErrIOError. The default handlers exit the process, like the C library does.

*/
package xlib
