package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

const readChunk = 4096

type tcpConn struct {
	id  uint64
	c   net.Conn
	buf []byte

	wmu sync.Mutex
}

func newTCPConn(c net.Conn) *tcpConn {
	return &tcpConn{id: nextConnID(), c: c, buf: make([]byte, readChunk)}
}

func (t *tcpConn) ID() uint64 { return t.id }

func (t *tcpConn) Receive() ([]byte, error) {
	n, err := t.c.Read(t.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, t.buf[:n])
		return out, nil
	}
	return nil, err
}

func (t *tcpConn) Send(p []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_, err := t.c.Write(p)
	return err
}

func (t *tcpConn) Close() error { return t.c.Close() }

func (t *tcpConn) RemoteAddr() string { return t.c.RemoteAddr().String() }

// TCPListener accepts plain newline-delimited text connections.
type TCPListener struct {
	ln net.Listener
}

func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &TCPListener{ln: ln}, nil
}

var _ Listener = (*TCPListener)(nil)

func (l *TCPListener) Accept() (Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrListenerClosed
		}
		return nil, err
	}
	return newTCPConn(c), nil
}

func (l *TCPListener) Close() error { return l.ln.Close() }

func (l *TCPListener) Addr() string { return l.ln.Addr().String() }
