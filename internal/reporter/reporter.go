// Package reporter drains scheduled-request metrics records into an
// append-only JSONL file, one flush per record.
package reporter

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bc-dunia/llmdrill/internal/protocol"
)

// Reporter is a single-consumer buffered JSONL sink. Exactly one goroutine
// should call Run; other goroutines send records on the channel returned
// by Records().
type Reporter struct {
	writer *bufio.Writer
	file   *os.File
	mu     sync.Mutex
	ch     chan protocol.Record

	written     atomic.Int64
	writeErrors atomic.Int64
}

const defaultChannelBuffer = 1024

// Open creates (or appends to) the JSONL file at path and returns a
// Reporter ready to run.
func Open(path string, bufferSize int) (*Reporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		file:   f,
		writer: bufio.NewWriterSize(f, bufferSize),
		ch:     make(chan protocol.Record, defaultChannelBuffer),
	}, nil
}

// NewWithWriter builds a Reporter over an arbitrary writer (tests).
func NewWithWriter(w io.Writer) *Reporter {
	return &Reporter{
		writer: bufio.NewWriter(w),
		ch:     make(chan protocol.Record, defaultChannelBuffer),
	}
}

// Records returns the channel callers send completed metrics records on.
func (r *Reporter) Records() chan<- protocol.Record { return r.ch }

// Run drains records until the channel is closed, flushing after every
// line, and returns once exhausted. Intended to run in its own goroutine,
// joined by the supervisor at shutdown.
func (r *Reporter) Run() error {
	for rec := range r.ch {
		if err := r.writeLine(rec); err != nil {
			return err
		}
	}
	return r.Flush()
}

func (r *Reporter) writeLine(rec protocol.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		r.writeErrors.Add(1)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.writer.Write(data); err != nil {
		r.writeErrors.Add(1)
		return err
	}
	if err := r.writer.WriteByte('\n'); err != nil {
		r.writeErrors.Add(1)
		return err
	}
	r.written.Add(1)
	return r.writer.Flush()
}

// Flush forces any buffered bytes to the underlying writer.
func (r *Reporter) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Flush()
}

// Close flushes and closes the underlying file, if any.
func (r *Reporter) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Stats reports counters useful for the supervisor's exit-code decision.
type Stats struct {
	Written     int64
	WriteErrors int64
}

func (r *Reporter) Stats() Stats {
	return Stats{Written: r.written.Load(), WriteErrors: r.writeErrors.Load()}
}
