package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Request is one HTTP request received by a FakeBackend.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// FakeBackend is an in-process backend: an HTTP API plus a websocket
// endpoint at /ws. Routes answer 404 until registered.
type FakeBackend struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	routes    map[string]http.HandlerFunc
	healthy   bool
	rejectWS  bool
	conns     map[*websocket.Conn]struct{}
	accepted  int
	requests  []Request
	received  [][]byte
	connected chan struct{}
}

// NewFakeBackend starts a backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		routes:    make(map[string]http.HandlerFunc),
		healthy:   true,
		conns:     make(map[*websocket.Conn]struct{}),
		connected: make(chan struct{}, 64),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// URL is the HTTP base URL.
func (b *FakeBackend) URL() string {
	return b.srv.URL
}

// WSURL is the websocket endpoint.
func (b *FakeBackend) WSURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
}

// Handle answers method+path with a JSON body.
func (b *FakeBackend) Handle(method, path string, status int, body string) {
	b.HandleFunc(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// HandleFunc registers a handler for method+path.
func (b *FakeBackend) HandleFunc(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = h
}

// SetHealthy switches /health between 200 and 503.
func (b *FakeBackend) SetHealthy(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = ok
}

// RejectWebsocket makes /ws answer 503 instead of upgrading.
func (b *FakeBackend) RejectWebsocket(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectWS = reject
}

func (b *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		b.serveWS(w, r)
		return
	}

	data, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(data),
	})
	h, ok := b.routes[r.Method+" "+r.URL.Path]
	healthy := b.healthy
	b.mu.Unlock()

	r.Body = io.NopCloser(strings.NewReader(string(data)))

	switch {
	case ok:
		h(w, r)
	case r.URL.Path == "/health" && healthy:
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	case r.URL.Path == "/health":
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	default:
		http.NotFound(w, r)
	}
}

func (b *FakeBackend) serveWS(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	reject := b.rejectWS
	b.mu.Unlock()
	if reject {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	c, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.accepted++
	b.mu.Unlock()

	select {
	case b.connected <- struct{}{}:
	default:
	}

	go b.readLoop(c)
}

func (b *FakeBackend) readLoop(c *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		delete(b.conns, c)
		b.mu.Unlock()
		_ = c.Close()
	}()
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.received = append(b.received, data)
		b.mu.Unlock()
	}
}

// Push sends {"type": kind, "data": data} to every open connection.
func (b *FakeBackend) Push(kind string, data any) error {
	frame, err := json.Marshal(map[string]any{"type": kind, "data": data})
	if err != nil {
		return err
	}
	return b.PushRaw(frame)
}

// PushRaw sends frame verbatim to every open connection.
func (b *FakeBackend) PushRaw(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

// CloseConnections sends a close frame with code and reason to every client.
func (b *FakeBackend) CloseConnections(code int, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	for c := range b.conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}

// DropConnections closes every client connection without a close frame.
func (b *FakeBackend) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		_ = c.Close()
	}
}

// WaitForConnection blocks until a new websocket client connects.
func (b *FakeBackend) WaitForConnection(timeout time.Duration) bool {
	select {
	case <-b.connected:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Accepted is the number of websocket upgrades served.
func (b *FakeBackend) Accepted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepted
}

// OpenConnections is the number of currently open websocket clients.
func (b *FakeBackend) OpenConnections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Requests returns the HTTP requests received so far.
func (b *FakeBackend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns the requests received for method+path.
func (b *FakeBackend) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Received returns the websocket messages clients have sent.
func (b *FakeBackend) Received() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.received...)
}

// Close shuts down every connection and the server.
func (b *FakeBackend) Close() {
	b.DropConnections()
	b.srv.CloseClientConnections()
	b.srv.Close()
}
