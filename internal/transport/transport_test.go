package transport

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPListener(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err := net.Dial("tcp", ln.Addr())
	require.NoError(t, err)
	defer client.Close()

	var server Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	defer server.Close()

	_, err = client.Write([]byte("CMD:LOGIN|a|b\n"))
	require.NoError(t, err)
	data, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, "CMD:LOGIN|a|b\n", string(data))

	require.NoError(t, server.Send([]byte("CMD:LOGIN_SUCCESS|1001\n")))
	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "CMD:LOGIN_SUCCESS|1001\n", line)
	assert.NotZero(t, server.ID())
}

func TestTCPListenerClose(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	_, err = ln.Accept()
	assert.ErrorIs(t, err, ErrListenerClosed)
}

func TestWSListener(t *testing.T) {
	ln := NewWSListener("test", nil)
	srv := httptest.NewServer(ln)
	defer srv.Close()
	defer ln.Close()

	accepted := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	var server Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("CMD:LOGIN|a|b")))
	data, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, "CMD:LOGIN|a|b\n", string(data))

	require.NoError(t, server.Send([]byte("CMD:LOGIN_SUCCESS|1001\n")))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "CMD:LOGIN_SUCCESS|1001\n", string(msg))
}

func TestWSListenerClosed(t *testing.T) {
	ln := NewWSListener("test", nil)
	require.NoError(t, ln.Close())
	require.NoError(t, ln.Close())

	_, err := ln.Accept()
	assert.ErrorIs(t, err, ErrListenerClosed)

	rec := httptest.NewRecorder()
	ln.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckOrigin(t *testing.T) {
	check := makeCheckOrigin([]string{"http://localhost:5173"})

	req := func(origin, host string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = host
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("", "chat.example:8000")))
	assert.True(t, check(req("http://localhost:5173", "chat.example:8000")))
	assert.True(t, check(req("https://chat.example", "chat.example:8000")))
	assert.False(t, check(req("https://evil.example", "chat.example:8000")))

	all := makeCheckOrigin([]string{"*"})
	assert.True(t, all(req("https://evil.example", "chat.example")))
}
