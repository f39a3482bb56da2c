// Package supervisor wires every component of a run together: dataset
// load, tokenizer, sampler, chunk cache, prompt materializer, protocol
// variant, dispatcher, reporter and health sampler, and owns their
// shared lifecycle from start to a computed process exit code.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bc-dunia/llmdrill/internal/chunkcache"
	"github.com/bc-dunia/llmdrill/internal/config"
	"github.com/bc-dunia/llmdrill/internal/health"
	"github.com/bc-dunia/llmdrill/internal/logging"
	otelpkg "github.com/bc-dunia/llmdrill/internal/otel"
	"github.com/bc-dunia/llmdrill/internal/prompt"
	"github.com/bc-dunia/llmdrill/internal/protocol"
	"github.com/bc-dunia/llmdrill/internal/reporter"
	"github.com/bc-dunia/llmdrill/internal/sampler"
	"github.com/bc-dunia/llmdrill/internal/sampler/mocktokenizer"
	"github.com/bc-dunia/llmdrill/internal/scheduler"
	"github.com/bc-dunia/llmdrill/internal/trace"
)

// Supervisor owns one run's components from construction through
// shutdown.
type Supervisor struct {
	cfg    *config.Config
	runID  string
	logger *logging.Logger

	sampler    *sampler.Sampler
	dispatcher *scheduler.Dispatcher
	reporter   *reporter.Reporter
	health     *health.Sampler

	tracer  *otelpkg.Tracer
	metrics *otelpkg.Metrics

	healthOut chan health.Snapshot
}

// New builds a Supervisor from a validated Config, loading the requested
// dataset and constructing every downstream component. The Config must
// already have passed Validate (Parse and ExitOnError do this).
func New(ctx context.Context, cfg *config.Config) (*Supervisor, error) {
	runID := "run_" + uuid.NewString()
	logger := logging.New(runID)

	tracer, err := otelpkg.NewTracer(ctx, tracerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("supervisor: tracer: %w", err)
	}
	metrics, err := otelpkg.NewMetrics(ctx, metricsConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("supervisor: metrics: %w", err)
	}

	variant, ok := protocol.NewDefaultRegistry().Get(cfg.Protocol)
	if !ok {
		return nil, fmt.Errorf("supervisor: unknown protocol %q", cfg.Protocol)
	}

	store, err := trace.LoadDataset(cfg.Dataset, cfg.DatasetPaths, cfg.RateRPS, cfg.CV, trace.Options{
		PrefillOnly:       cfg.PrefillOnly,
		FilterLongContext: cfg.FilterLongContext,
		Truncate:          uint32(cfg.Truncate),
		HasTruncate:       cfg.HasTruncate,
		Shuffle:           cfg.Shuffle,
	})
	if err != nil {
		logger.LogTraceLoadError(firstPath(cfg.DatasetPaths), err)
		return nil, err
	}

	blockSize := trace.BlockSizeFor(cfg.Dataset)
	// mocktokenizer.New is the only Tokenizer this tree can construct:
	// cfg.Tokenizer is not read, and every run builds its prompts with the
	// mock tokenizer; no real vocabulary is loaded.
	tok := mocktokenizer.New(1 << 16)
	cache := chunkcache.New()
	samp := sampler.New(tok, blockSize, cfg.Workers, config.DefaultChannelBufferSize)
	mat := prompt.New(tok, cache, samp, blockSize)

	rep, err := reporter.Open(cfg.Output, config.DefaultChannelBufferSize)
	if err != nil {
		samp.Close()
		return nil, fmt.Errorf("supervisor: open output %s: %w", cfg.Output, err)
	}

	mode := scheduler.Synthetic
	if cfg.Replay {
		mode = scheduler.Replay
	}
	dispatcher := scheduler.New(scheduler.Config{
		Mode:         mode,
		Endpoint:     cfg.Endpoint,
		Store:        store,
		Materializer: mat,
		Variant:      variant,
		ReportCh:     rep.Records(),
		Logger:       logger,
		Tracer:       tracer.TracerProvider().Tracer(tracerInstrumentationName),
		Metrics:      metrics,
		RateRPS:      cfg.RateRPS,
		CV:           cfg.CV,
		RunTime:      time.Duration(cfg.RunTimeSecs) * time.Second,
		ScaleFactor:  cfg.ScaleFactor,
	})

	healthOut := make(chan health.Snapshot, 1)
	healthSampler := health.New(
		time.Duration(config.DefaultHealthIntervalMs)*time.Millisecond,
		dispatcher,
		dispatcher.ElapsedMs,
		healthOut,
	)

	return &Supervisor{
		cfg:        cfg,
		runID:      runID,
		logger:     logger,
		sampler:    samp,
		dispatcher: dispatcher,
		reporter:   rep,
		health:     healthSampler,
		tracer:     tracer,
		metrics:    metrics,
		healthOut:  healthOut,
	}, nil
}

// Run drives one full run to completion: it starts the reporter and
// health-sampling goroutines, runs the dispatcher to completion (new
// dispatch stops once RunTimeSecs has passed or ctx is cancelled), joins
// everything, and returns the process exit code.
func (s *Supervisor) Run(ctx context.Context) int {
	reportDone := make(chan error, 1)
	go func() { reportDone <- s.reporter.Run() }()

	healthCtx, stopHealth := context.WithCancel(ctx)
	healthDone := make(chan struct{})
	go func() {
		defer close(healthDone)
		s.health.Run(healthCtx)
	}()
	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		s.forwardHealth()
	}()

	runTimer := time.AfterFunc(time.Duration(s.cfg.RunTimeSecs)*time.Second, s.dispatcher.Stop)
	_ = s.dispatcher.Run(ctx)
	runTimer.Stop()

	stopHealth()
	<-healthDone
	close(s.healthOut)
	<-forwardDone
	close(s.reporter.Records())
	reportErr := <-reportDone

	s.sampler.Close()
	if err := s.reporter.Close(); err != nil && reportErr == nil {
		reportErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.tracer.Shutdown(shutdownCtx)
	_ = s.metrics.Shutdown(shutdownCtx)

	return s.exitCode(reportErr)
}

// forwardHealth turns each health.Snapshot into its own reporter record,
// tagged so it can be told apart from per-request records in the output
// JSONL, and sends it on the same channel the dispatcher reports through.
func (s *Supervisor) forwardHealth() {
	for snap := range s.healthOut {
		rec := protocol.Record{
			"record_type":    "health",
			"timestamp_ms":   fmt.Sprintf("%d", snap.TimestampMs),
			"cpu_percent":    fmt.Sprintf("%.2f", snap.CPUPercent),
			"mem_used_bytes": fmt.Sprintf("%d", snap.MemUsedBytes),
			"dispatched":     fmt.Sprintf("%d", snap.Dispatched),
			"completed":      fmt.Sprintf("%d", snap.Completed),
			"failed":         fmt.Sprintf("%d", snap.Failed),
		}
		select {
		case s.reporter.Records() <- rec:
		default:
		}
	}
}

// exitCode implements the invariant that a run exits non-zero whenever any
// request failed or the reporter hit a write error, zero otherwise.
func (s *Supervisor) exitCode(reportErr error) int {
	if reportErr != nil {
		return 1
	}
	stats := s.reporter.Stats()
	if stats.WriteErrors > 0 {
		return 1
	}
	if s.dispatcher.Failed() > 0 {
		return 1
	}
	return 0
}

// Stop halts new dispatch without cancelling in-flight requests; cmd/llmdrill
// calls this on SIGINT/SIGTERM before falling back to context cancellation.
func (s *Supervisor) Stop() { s.dispatcher.Stop() }

// InFlight reports requests dispatched but not yet completed or failed, for
// the CLI's bounded graceful-shutdown wait loop.
func (s *Supervisor) InFlight() int64 {
	return s.dispatcher.Dispatched() - s.dispatcher.Completed() - s.dispatcher.Failed()
}

// RunID returns the generated run identifier this Supervisor's logger
// tags every log line with.
func (s *Supervisor) RunID() string { return s.runID }

func firstPath(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func tracerConfig(cfg *config.Config) *otelpkg.Config {
	c := otelpkg.DefaultConfig()
	c.Enabled = cfg.OTelExporter != "" && cfg.OTelExporter != "none"
	c.ExporterType = otelpkg.ExporterType(cfg.OTelExporter)
	c.OTLPEndpoint = cfg.OTelEndpoint
	return c
}

func metricsConfig(cfg *config.Config) *otelpkg.MetricsConfig {
	c := otelpkg.DefaultMetricsConfig()
	c.Enabled = cfg.OTelExporter != "" && cfg.OTelExporter != "none"
	c.ExporterType = otelpkg.ExporterType(cfg.OTelExporter)
	c.OTLPEndpoint = cfg.OTelEndpoint
	return c
}

const tracerInstrumentationName = "llmdrill"
