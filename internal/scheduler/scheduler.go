// Package scheduler dispatches trace entries as HTTP requests in an open
// loop: request timing is decided up front (by replay timestamps or a
// synthetic interval distribution), never by how quickly previous
// requests complete.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bc-dunia/llmdrill/internal/distribution"
	"github.com/bc-dunia/llmdrill/internal/logging"
	otelpkg "github.com/bc-dunia/llmdrill/internal/otel"
	"github.com/bc-dunia/llmdrill/internal/prompt"
	"github.com/bc-dunia/llmdrill/internal/protocol"
	tracepkg "github.com/bc-dunia/llmdrill/internal/trace"
)

// Mode selects how request send times are decided.
type Mode int

const (
	// Synthetic draws inter-arrival intervals from a Gamma distribution at
	// a target rate, looping the dataset if it runs out before RunTime.
	Synthetic Mode = iota
	// Replay sends each entry at its own recorded timestamp, scaled by
	// ScaleFactor, and stops once the dataset is exhausted.
	Replay
)

// Config configures a Dispatcher.
type Config struct {
	Mode        Mode
	Endpoint    string
	Store       *tracepkg.Store
	Materializer *prompt.Materializer
	Variant     protocol.Variant
	ReportCh    chan<- protocol.Record
	Logger      *logging.Logger
	Tracer      trace.Tracer
	Metrics     *otelpkg.Metrics

	// Synthetic mode.
	RateRPS float64
	CV      float64
	RunTime time.Duration

	// Replay mode.
	ScaleFactor float64

	HTTPClient *http.Client
}

// Dispatcher drives one open-loop run.
type Dispatcher struct {
	cfg      Config
	baseTime time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	dispatched atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
}

// New builds a Dispatcher. The dispatcher's monotonic clock base is
// captured here, at construction; every s_time/e_time it reports and every
// replay send time it computes is in milliseconds from that base.
func New(cfg Config) *Dispatcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("llmdrill")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = otelpkg.NoopMetrics()
	}
	return &Dispatcher{
		cfg:      cfg,
		baseTime: time.Now(),
		stopCh:   make(chan struct{}),
	}
}

// Dispatched, Completed and Failed satisfy internal/health.Counters.
func (d *Dispatcher) Dispatched() int64 { return d.dispatched.Load() }
func (d *Dispatcher) Completed() int64  { return d.completed.Load() }
func (d *Dispatcher) Failed() int64     { return d.failed.Load() }

func (d *Dispatcher) elapsedMs() uint64 {
	return uint64(time.Since(d.baseTime).Milliseconds())
}

// ElapsedMs exposes the dispatcher's monotonic run clock, so the health
// sampler timestamps its snapshots on the same scale as reported records.
func (d *Dispatcher) ElapsedMs() uint64 { return d.elapsedMs() }

// Stop broadcasts a non-blocking stop signal; in-flight requests are not
// cancelled, only new dispatch is halted. Safe to call more than once and
// from any goroutine.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// stopped polls the stop channel without blocking.
func (d *Dispatcher) stopped() bool {
	select {
	case <-d.stopCh:
		return true
	default:
		return false
	}
}

// Run dispatches entries until the run ends (RunTime elapses in synthetic
// mode, or the dataset is exhausted in replay mode), Stop is called or ctx
// is cancelled, then joins every in-flight request task before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.cfg.Logger.LogDispatchStart(modeName(d.cfg.Mode), d.cfg.Variant.Name(), "trace", d.cfg.Store.Len())

	switch d.cfg.Mode {
	case Synthetic:
		d.runSynthetic(ctx)
	case Replay:
		d.runReplay(ctx)
	default:
		return fmt.Errorf("scheduler: unknown mode %v", d.cfg.Mode)
	}

	d.wg.Wait()
	d.cfg.Logger.LogDispatchStop(int(d.Dispatched()), int(d.Completed()), int(d.Failed()))
	return nil
}

func modeName(m Mode) string {
	if m == Replay {
		return "replay"
	}
	return "synthetic"
}

func (d *Dispatcher) runSynthetic(ctx context.Context) {
	gen := distribution.NewGamma(d.cfg.RateRPS, d.cfg.CV)
	deadline := time.Now().Add(d.cfg.RunTime)
	next := d.cfg.Store.Iter()
	index := 0

	target := d.elapsedMs()
	for time.Now().Before(deadline) {
		if d.stopped() || ctx.Err() != nil {
			return
		}
		entry, idx, ok := next()
		if !ok {
			d.cfg.Store.Reset()
			next = d.cfg.Store.Iter()
			entry, idx, ok = next()
			if !ok {
				return
			}
		}
		index = idx

		d.sleepUntil(ctx, target)
		d.spawnRequest(ctx, entry, index, syntheticTimeout)
		target += uint64(gen.Next())
	}
}

func (d *Dispatcher) runReplay(ctx context.Context) {
	next := d.cfg.Store.Iter()
	scale := d.cfg.ScaleFactor
	if scale <= 0 {
		scale = 1.0
	}
	for {
		if d.stopped() || ctx.Err() != nil {
			return
		}
		entry, idx, ok := next()
		if !ok {
			return
		}
		target := uint64(float64(entry.TimestampMs) / scale)
		d.sleepUntil(ctx, target)
		d.spawnRequest(ctx, entry, idx, replayTimeout)
	}
}

func (d *Dispatcher) sleepUntil(ctx context.Context, targetMs uint64) {
	current := d.elapsedMs()
	if targetMs <= current+1 {
		return
	}
	wait := time.Duration(targetMs-current) * time.Millisecond
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// timeoutFn computes a request's deadline from its output length, per
// mode: see DESIGN.md's Open Question decision for the provenance of both
// formulas.
type timeoutFn func(outputLength uint32) time.Duration

func syntheticTimeout(outputLength uint32) time.Duration {
	secs := 180.0
	if v := float64(outputLength) * 0.4; v > secs {
		secs = v
	}
	return time.Duration(secs * float64(time.Second))
}

func replayTimeout(outputLength uint32) time.Duration {
	secs := 15 + float64(outputLength)/10
	return time.Duration(secs * float64(time.Second))
}

func (d *Dispatcher) spawnRequest(ctx context.Context, entry tracepkg.Entry, index int, timeout timeoutFn) {
	d.dispatched.Add(1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.executeRequest(ctx, entry, index, timeout(entry.OutputLength))
	}()
}

func (d *Dispatcher) executeRequest(ctx context.Context, entry tracepkg.Entry, index int, timeout time.Duration) {
	spanCtx, span := d.cfg.Tracer.Start(ctx, "llmdrill.dispatch",
		trace.WithAttributes(
			attribute.Int("llmdrill.index", index),
			attribute.Int64("llmdrill.input_length", int64(entry.InputLength)),
			attribute.Int64("llmdrill.output_length", int64(entry.OutputLength)),
			attribute.String("llmdrill.protocol", d.cfg.Variant.Name()),
		),
	)
	defer span.End()

	reqCtx, cancel := context.WithTimeout(spanCtx, timeout)
	defer cancel()

	d.cfg.Metrics.IncrementInFlight(reqCtx)
	defer d.cfg.Metrics.DecrementInFlight(reqCtx)

	startMs := d.elapsedMs()
	inputLength, outputLength := entry.InputLength, entry.OutputLength
	if d.cfg.Variant.Name() == "distserve" {
		inputLength, outputLength = protocol.TruncateLengths(inputLength, outputLength)
	}

	promptEntry := entry
	promptEntry.InputLength = inputLength
	text := d.cfg.Materializer.Inflate(promptEntry)

	body, err := d.cfg.Variant.BuildBody(text, inputLength, outputLength)
	if err != nil {
		d.failRequest(reqCtx, span, index, err, "protocol")
		return
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		d.failRequest(reqCtx, span, index, err, "transport")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.cfg.HTTPClient.Do(req)
	if err != nil {
		d.cfg.Logger.LogRequestTransportError(index, err)
		d.failRequest(reqCtx, span, index, err, "transport")
		return
	}
	defer resp.Body.Close()

	endMs := d.elapsedMs()
	rec, err := d.cfg.Variant.ParseResponse(resp)
	if err != nil {
		d.failRequest(reqCtx, span, index, err, "protocol")
		return
	}

	rec["s_time"] = strconv.FormatUint(startMs, 10)
	rec["e_time"] = strconv.FormatUint(endMs, 10)
	rec["input_length"] = strconv.FormatUint(uint64(inputLength), 10)
	rec["output_length"] = strconv.FormatUint(uint64(outputLength), 10)
	rec["status"] = strconv.Itoa(resp.StatusCode)

	d.completed.Add(1)
	d.cfg.Metrics.RecordRequestLatency(reqCtx, d.cfg.Variant.Name(), float64(endMs-startMs), true)
	select {
	case d.cfg.ReportCh <- rec:
	case <-reqCtx.Done():
	}
}

func (d *Dispatcher) failRequest(ctx context.Context, span trace.Span, index int, err error, category string) {
	d.failed.Add(1)
	span.RecordError(err)
	d.cfg.Metrics.RecordError(ctx, category)
	if ctx.Err() == context.DeadlineExceeded {
		d.cfg.Metrics.RecordTimeout(ctx)
	}
}
