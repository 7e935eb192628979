// Package server runs the accept loop that turns listener connections into
// chat sessions.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"chatd/internal/protocol"
	"chatd/internal/transport"
)

// Handler serves one connection until it ends. session.Manager implements it.
type Handler interface {
	Serve(ctx context.Context, conn transport.Conn)
}

const serverFull = "[System] Server is full. Try again later."

// Acceptor hands every accepted connection to a Handler on its own goroutine.
type Acceptor struct {
	ln      transport.Listener
	handler Handler
	sem     *semaphore.Weighted
	log     *slog.Logger

	mu    sync.Mutex
	conns map[uint64]transport.Conn
	wg    sync.WaitGroup
}

// NewLimit returns a connection ceiling that acceptors can share so the cap
// holds across every listener. It returns nil, meaning unbounded, when max <= 0.
func NewLimit(max int64) *semaphore.Weighted {
	if max <= 0 {
		return nil
	}
	return semaphore.NewWeighted(max)
}

// NewAcceptor returns an acceptor for ln. limit caps concurrent sessions and
// may be shared with other acceptors; nil means unbounded.
func NewAcceptor(ln transport.Listener, h Handler, limit *semaphore.Weighted, log *slog.Logger) *Acceptor {
	if log == nil {
		log = slog.Default()
	}
	return &Acceptor{
		ln:      ln,
		handler: h,
		sem:     limit,
		log:     log.With("component", "acceptor", "addr", ln.Addr()),
		conns:   make(map[uint64]transport.Conn),
	}
}

// Run accepts until ctx is cancelled or the listener fails. On return the
// listener and every live connection are closed and all sessions have ended.
func (a *Acceptor) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { a.ln.Close() })
	defer stop()

	a.log.Info("accepting connections")
	err := a.loop(ctx)

	a.ln.Close()
	a.closeAll()
	a.wg.Wait()
	a.log.Info("acceptor stopped")
	return err
}

func (a *Acceptor) loop(ctx context.Context) error {
	var delay time.Duration
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if errors.Is(err, transport.ErrListenerClosed) || ctx.Err() != nil {
				return nil
			}
			// back off on temporary failures such as EMFILE
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			a.log.Warn("accept failed", "err", err, "retry_in", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		delay = 0

		if a.sem != nil && !a.sem.TryAcquire(1) {
			a.log.Warn("connection refused: at capacity", "remote", conn.RemoteAddr(), "active", a.Active())
			conn.Send([]byte(protocol.Notice(serverFull)))
			conn.Close()
			continue
		}

		a.track(conn)
		a.wg.Add(1)
		go a.serve(ctx, conn)
	}
}

func (a *Acceptor) serve(ctx context.Context, conn transport.Conn) {
	defer a.wg.Done()
	defer func() {
		// the slot is free by the time the connection leaves Active
		if a.sem != nil {
			a.sem.Release(1)
		}
		a.untrack(conn)
		a.log.Debug("connection closed", "conn", conn.ID(), "active", a.Active())
	}()

	a.log.Debug("connection opened", "conn", conn.ID(), "remote", conn.RemoteAddr(), "active", a.Active())
	a.handler.Serve(ctx, conn)
}

// Active returns the number of live sessions.
func (a *Acceptor) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

func (a *Acceptor) track(conn transport.Conn) {
	a.mu.Lock()
	a.conns[conn.ID()] = conn
	a.mu.Unlock()
}

func (a *Acceptor) untrack(conn transport.Conn) {
	a.mu.Lock()
	delete(a.conns, conn.ID())
	a.mu.Unlock()
}

func (a *Acceptor) closeAll() {
	a.mu.Lock()
	live := make([]transport.Conn, 0, len(a.conns))
	for _, c := range a.conns {
		live = append(live, c)
	}
	a.mu.Unlock()

	for _, c := range live {
		c.Close()
	}
}
