// Package transport provides the network listeners the chat server accepts
// sessions from: raw TCP and a WebSocket gateway.
package transport

import (
	"errors"
	"sync/atomic"
)

// ErrListenerClosed is returned by Accept after Close.
var ErrListenerClosed = errors.New("listener closed")

// Conn is one client connection. Receive is called from a single goroutine;
// Send is safe for concurrent use.
type Conn interface {
	// ID is unique for the lifetime of the process.
	ID() uint64
	Receive() ([]byte, error)
	Send(p []byte) error
	Close() error
	RemoteAddr() string
}

type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() string
}

var connSeq atomic.Uint64

func nextConnID() uint64 {
	return connSeq.Add(1)
}
