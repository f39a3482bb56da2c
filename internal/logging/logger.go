// Package logging provides structured JSON event logging for llmdrill.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Logger wraps slog with named methods for this system's own event
// vocabulary, so call sites read as "what happened" rather than loose
// slog.Info calls scattered through the dispatcher.
type Logger struct {
	logger *slog.Logger
	runID  string
}

// New creates a Logger with JSON output to stdout, tagged with a run id.
func New(runID string) *Logger {
	return NewWithWriter(runID, os.Stdout)
}

// NewWithWriter creates a Logger with JSON output to an arbitrary writer,
// for tests or redirecting output.
func NewWithWriter(runID string, w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With("run_id", runID)
	return &Logger{logger: logger, runID: runID}
}

// LogDispatchStart logs the dispatcher beginning a run over a trace of
// the given number of entries.
func (l *Logger) LogDispatchStart(mode, protocol, dataset string, entries int) {
	l.logger.Info("dispatch_start",
		"mode", mode,
		"protocol", protocol,
		"dataset", dataset,
		"entries", entries,
	)
}

// LogDispatchStop logs the dispatcher finishing a run.
func (l *Logger) LogDispatchStop(dispatched, completed, failed int) {
	l.logger.Info("dispatch_stop",
		"dispatched", dispatched,
		"completed", completed,
		"failed", failed,
	)
}

// LogRequestTimeout logs a request that exceeded its deadline.
func (l *Logger) LogRequestTimeout(index int, inputLength, outputLength uint32, timeoutSecs float64) {
	l.logger.Warn("request_timeout",
		"index", index,
		"input_length", inputLength,
		"output_length", outputLength,
		"timeout_secs", timeoutSecs,
	)
}

// LogRequestTransportError logs a transport-level failure (connection
// refused, DNS failure, ...); never retried, per this system's non-goals.
func (l *Logger) LogRequestTransportError(index int, err error) {
	l.logger.Error("request_transport_error",
		"index", index,
		"error", err.Error(),
	)
}

// LogChunkCacheMiss logs a first-writer-wins chunk cache insert.
func (l *Logger) LogChunkCacheMiss(hash uint64) {
	l.logger.Debug("chunk_cache_miss", "hash", hash)
}

// LogSamplerFatal logs an unrecoverable sampler/tokenizer failure.
func (l *Logger) LogSamplerFatal(err error) {
	l.logger.Error("sampler_fatal", "error", err.Error())
}

// LogTraceLoadError logs a trace file that failed to load.
func (l *Logger) LogTraceLoadError(path string, err error) {
	l.logger.Error("trace_load_error", "path", path, "error", err.Error())
}

var (
	global   *Logger
	globalMu sync.RWMutex
)

// SetGlobal installs the global logger instance.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// Global returns the global logger, or a discarding no-op logger if none
// has been installed yet.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global != nil {
		return global
	}
	return Noop()
}

// Noop returns a Logger that discards all events, for tests.
func Noop() *Logger {
	return NewWithWriter("", io.Discard)
}
