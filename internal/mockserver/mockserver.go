// Package mockserver implements an in-process generation-API double for
// the mock protocol variant and for end-to-end tests, adapted from the
// teacher's MCP mock server (same Config/Server/Start/Stop shape, a
// generation-API response body instead of JSON-RPC).
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BehaviorProfile controls the double's synthetic timing and failure rate.
type BehaviorProfile struct {
	// MsPerOutputToken is the simulated per-token decode latency.
	MsPerOutputToken float64
	// FirstTokenMs is the simulated prefill/queueing latency before the
	// first output token.
	FirstTokenMs float64
	// FailureRate is the fraction of requests (0..1) that return a 503.
	// Each request fails independently at this rate; a failing request is
	// held for the next interval of a jittered exponential backoff shared
	// by all requests before the 503 is written.
	FailureRate float64
}

// DefaultBehavior mirrors a lightly loaded single-GPU deployment.
func DefaultBehavior() BehaviorProfile {
	return BehaviorProfile{
		MsPerOutputToken: 20,
		FirstTokenMs:     80,
		FailureRate:      0,
	}
}

// Config configures the mock server.
type Config struct {
	Addr     string
	Behavior BehaviorProfile
}

// DefaultConfig listens on an OS-assigned loopback port.
func DefaultConfig() *Config {
	return &Config{Addr: "127.0.0.1:0", Behavior: DefaultBehavior()}
}

// Server is the mock generation-API double.
type Server interface {
	Start() error
	Stop(ctx context.Context) error
	Addr() string
	URL() string
}

type server struct {
	cfg        *Config
	httpServer *http.Server
	listener   net.Listener
	addr       string
	backoff    backoff.BackOff
}

// New builds a Server; call Start to begin listening.
func New(cfg *Config) Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	return &server{cfg: cfg, backoff: b}
}

// StartTestServer starts a server with default behavior and returns a
// cleanup function, for use in other packages' tests.
func StartTestServer() (Server, func()) {
	srv := New(DefaultConfig())
	if err := srv.Start(); err != nil {
		return srv, func() {}
	}
	return srv, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}
}

func (s *server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		_ = s.httpServer.Serve(ln)
	}()
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *server) Addr() string { return s.addr }

func (s *server) URL() string {
	if s.addr == "" {
		return ""
	}
	return "http://" + s.addr + "/generate"
}

type genRequest struct {
	InputLength  uint32 `json:"input_length"`
	OutputLength uint32 `json:"output_length"`
	MaxTokens    int    `json:"max_tokens"`
	MaxNewTokens int    `json:"max_new_tokens"`
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req genRequest
	_ = json.Unmarshal(body, &req)
	outputLength := req.OutputLength
	if outputLength == 0 {
		outputLength = uint32(req.MaxTokens)
	}
	if outputLength == 0 {
		outputLength = uint32(req.MaxNewTokens)
	}
	if outputLength == 0 {
		outputLength = 1
	}

	if s.shouldFail() {
		time.Sleep(s.backoff.NextBackOff())
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	behavior := s.cfg.Behavior
	firstToken := behavior.FirstTokenMs
	perToken := behavior.MsPerOutputToken
	total := firstToken + perToken*float64(outputLength)

	time.Sleep(time.Duration(total) * time.Millisecond)

	h := w.Header()
	h.Set("x-first-token-time", formatMs(firstToken))
	h.Set("x-inference-time", formatMs(total-firstToken))
	h.Set("x-total-time", formatMs(total))
	h.Set("x-queue-time", formatMs(0))
	h.Set("x-max-time-between-tokens", formatMs(perToken*1.5))
	h.Set("x-p70-time-between-tokens", formatMs(perToken))
	h.Set("x-p90-time-between-tokens", formatMs(perToken*1.2))
	h.Set("x-p95-time-between-tokens", formatMs(perToken*1.3))
	h.Set("x-p99-time-between-tokens", formatMs(perToken*1.4))
	h.Set("x-input-length", strconv.Itoa(int(req.InputLength)))
	h.Set("x-output-length", strconv.Itoa(int(outputLength)))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"generated_tokens":%d}`, outputLength)
}

func (s *server) shouldFail() bool {
	return s.cfg.Behavior.FailureRate > 0 && rand.Float64() < s.cfg.Behavior.FailureRate
}

func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
