package rpcclient

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"seidash/internal/config"
	"seidash/internal/jsonrpc"
	"seidash/internal/metrics"
	"seidash/internal/transport"
)

// reply describes how the fake server answers one request
type reply struct {
	status int
	result interface{}
	err    *jsonrpc.Error
	delay  time.Duration
	header map[string]string
}

// fakeServer is a scripted JSON-RPC endpoint
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	sessions map[string][]string
	handlers map[string]func(n int) reply
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		calls:    make(map[string]int),
		sessions: make(map[string][]string),
		handlers: make(map[string]func(n int) reply),
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)

	fs.on(MethodHealthCheck, func(int) reply { return reply{result: map[string]string{"status": "ok"}} })
	fs.on(MethodEndSession, func(int) reply { return reply{result: true} })
	return fs
}

func (fs *fakeServer) on(method string, h func(n int) reply) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.handlers[method] = h
}

func (fs *fakeServer) count(method string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[method]
}

func (fs *fakeServer) sessionsFor(method string) []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.sessions[method]...)
}

func (fs *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req, err := jsonrpc.ParseRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	fs.calls[req.Method]++
	n := fs.calls[req.Method]
	fs.sessions[req.Method] = append(fs.sessions[req.Method], r.Header.Get(transport.SessionHeader))
	h, ok := fs.handlers[req.Method]
	fs.mu.Unlock()

	if !ok {
		writeRPC(w, http.StatusOK, jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeMethodNotFound, "method not found")))
		return
	}

	rep := h(n)
	if rep.delay > 0 {
		select {
		case <-time.After(rep.delay):
		case <-r.Context().Done():
			return
		}
	}
	for k, v := range rep.header {
		w.Header().Set(k, v)
	}
	if rep.status >= 400 && rep.err == nil {
		http.Error(w, http.StatusText(rep.status), rep.status)
		return
	}
	status := rep.status
	if status == 0 {
		status = http.StatusOK
	}
	if rep.err != nil {
		writeRPC(w, status, jsonrpc.NewErrorResponse(req.ID, rep.err))
		return
	}
	resp, _ := jsonrpc.NewResponse(req.ID, rep.result)
	writeRPC(w, status, resp)
}

func writeRPC(w http.ResponseWriter, status int, resp *jsonrpc.Response) {
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Server.URL = url
	cfg.Server.TimeoutMs = 1000
	cfg.Server.MaxRetries = 0
	cfg.Server.RetryDelayMs = 1
	cfg.Server.MaxReconnectAttempts = 2
	return cfg
}

func newTestClient(t *testing.T, cfg *config.Config, opts ...Option) (*Client, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	opts = append([]Option{WithMetrics(m)}, opts...)
	c, err := New(cfg, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return c, m
}
