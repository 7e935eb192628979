package transport

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

type wsConn struct {
	id     uint64
	c      *websocket.Conn
	remote string

	wmu sync.Mutex
}

func (w *wsConn) ID() uint64 { return w.id }

// Receive returns one text frame. A frame is a complete line even when the
// client omits the terminator.
func (w *wsConn) Receive() ([]byte, error) {
	for {
		typ, data, err := w.c.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		return data, nil
	}
}

func (w *wsConn) Send(p []byte) error {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	return w.c.WriteMessage(websocket.TextMessage, p)
}

func (w *wsConn) Close() error { return w.c.Close() }

func (w *wsConn) RemoteAddr() string { return w.remote }

// WSListener is a Listener fed by HTTP upgrade requests. Mount it as an
// http.Handler; upgraded connections are handed to Accept.
type WSListener struct {
	upgrader websocket.Upgrader
	addr     string
	conns    chan Conn
	done     chan struct{}
	once     sync.Once
}

func NewWSListener(addr string, allowedOrigins []string) *WSListener {
	return &WSListener{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     makeCheckOrigin(allowedOrigins),
		},
		addr:  addr,
		conns: make(chan Conn),
		done:  make(chan struct{}),
	}
}

var _ Listener = (*WSListener)(nil)

func (l *WSListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}
	conn := &wsConn{id: nextConnID(), c: c, remote: clientHost(r)}

	select {
	case l.conns <- conn:
	case <-l.done:
		c.Close()
	}
}

func (l *WSListener) Accept() (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, ErrListenerClosed
	}
}

func (l *WSListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *WSListener) Addr() string { return "ws://" + l.addr + "/ws" }

func clientHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits non-browser clients (no Origin header) and browsers
// from an allowed origin. "*" allows every origin.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	_, anyOrigin := allowed["*"]

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" || anyOrigin {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		if _, ok := allowed[normalized]; ok {
			return true
		}
		// same host as the request, whatever the port
		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			host = r.Host
		}
		return strings.EqualFold(u.Hostname(), host)
	}
}
