// Package config holds the run configuration for llmdrill and the CLI flag
// parsing that builds it.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
)

var (
	ErrMissingEndpoint = errors.New("config: --endpoint is required")
	ErrMissingDataset  = errors.New("config: at least one --dataset-path is required")
	ErrInvalidProtocol = errors.New("config: --protocol must be one of st, vllm, distserve, mock")
	ErrInvalidDataset  = errors.New("config: --dataset must be one of mooncake, burstgpt, azure, mooncake-sampled, uniform, mock")
)

// stringList collects a repeatable flag into an ordered slice.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// ConfigError wraps a configuration validation failure with the flag that
// caused it.
type ConfigError struct {
	Flag string
	Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: --%s: %v", e.Flag, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the fully parsed, validated run configuration.
type Config struct {
	Tokenizer  string
	Endpoint   string
	Protocol   string
	Dataset    string
	DatasetPaths []string
	Workers    int
	Replay     bool
	RateRPS    float64
	ScaleFactor float64
	CV         float64
	Output     string
	RunTimeSecs int
	PrefillOnly bool
	Truncate   uint64
	HasTruncate bool
	FilterLongContext bool
	Shuffle    bool

	OTelExporter string
	OTelEndpoint string

	AllowPrivateNetworks []string
}

var validProtocols = map[string]bool{"st": true, "vllm": true, "distserve": true, "mock": true}
var validDatasets = map[string]bool{
	"mooncake": true, "burstgpt": true, "azure": true,
	"mooncake-sampled": true, "uniform": true, "mock": true,
}

// Parse builds a Config from the given CLI arguments (normally os.Args[1:]).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("llmdrill", flag.ContinueOnError)

	tokenizer := fs.String("tokenizer", "", "path or identifier of a tokenizer (accepted but not loaded; prompts are built with the built-in mock tokenizer)")
	endpoint := fs.String("endpoint", "", "target generation-API endpoint URL")
	protocol := fs.String("protocol", "mock", "request protocol: st, vllm, distserve, mock")
	dataset := fs.String("dataset", "mock", "dataset kind: mooncake, burstgpt, azure, mooncake-sampled, uniform, mock")
	var datasetPaths stringList
	fs.Var(&datasetPaths, "dataset-path", "path to a dataset file (repeatable)")
	workers := fs.Int("workers", runtime.NumCPU(), "number of token-block sampler producer goroutines")
	replay := fs.Bool("replay", false, "replay the dataset's own timestamps instead of a synthetic rate")
	rate := fs.Float64("rate", 1.0, "synthetic request rate in requests per second")
	scaleFactor := fs.Float64("scale-factor", DefaultScaleFactor, "replay timestamp scale factor")
	cv := fs.Float64("cv", DefaultCV, "coefficient of variation for the synthetic gamma interval distribution")
	output := fs.String("output", DefaultOutputPath, "output JSONL path")
	runTime := fs.Int("run-time", DefaultRunTimeSecs, "run duration in seconds")
	prefillOnly := fs.Bool("prefill-only", false, "request prefill only, zero output tokens")
	truncate := fs.Uint64("truncate", 0, "truncate input_length to this many tokens (0 disables)")
	filterLongContext := fs.Bool("filter-long-context", false, "drop entries over the context window instead of rewriting them")
	shuffle := fs.Bool("shuffle", false, "shuffle dataset order (ignored in replay mode)")
	otelExporter := fs.String("otel-exporter", "none", "otel exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := fs.String("otel-endpoint", "", "otel collector endpoint")
	var allowPrivate stringList
	fs.Var(&allowPrivate, "allow-private-networks", "CIDR range permitted as an endpoint target (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Tokenizer:            *tokenizer,
		Endpoint:             *endpoint,
		Protocol:             *protocol,
		Dataset:              *dataset,
		DatasetPaths:         datasetPaths,
		Workers:              *workers,
		Replay:               *replay,
		RateRPS:              *rate,
		ScaleFactor:          scaleFactor2(*scaleFactor),
		CV:                   *cv,
		Output:               *output,
		RunTimeSecs:          *runTime,
		PrefillOnly:          *prefillOnly,
		Truncate:             *truncate,
		HasTruncate:          *truncate > 0,
		FilterLongContext:    *filterLongContext,
		Shuffle:              *shuffle && !*replay,
		OTelExporter:         *otelExporter,
		OTelEndpoint:         *otelEndpoint,
		AllowPrivateNetworks: allowPrivate,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func scaleFactor2(v float64) float64 {
	if v <= 0 {
		return DefaultScaleFactor
	}
	return v
}

// Validate checks the config for internal consistency. Callers that build a
// Config without Parse (e.g. tests) should call this directly.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if err := ValidateEndpoint(c.Endpoint, c.AllowPrivateNetworks); err != nil {
		return &ConfigError{Flag: "endpoint", Err: err}
	}
	if !validProtocols[c.Protocol] {
		return &ConfigError{Flag: "protocol", Err: ErrInvalidProtocol}
	}
	if !validDatasets[c.Dataset] {
		return &ConfigError{Flag: "dataset", Err: ErrInvalidDataset}
	}
	if c.Dataset != "mock" && len(c.DatasetPaths) == 0 {
		return &ConfigError{Flag: "dataset-path", Err: ErrMissingDataset}
	}
	if c.Workers <= 0 {
		return &ConfigError{Flag: "workers", Err: errors.New("must be positive")}
	}
	if c.RunTimeSecs < MinRunTimeSecs {
		return &ConfigError{Flag: "run-time", Err: fmt.Errorf("must be >= %d", MinRunTimeSecs)}
	}
	if c.CV <= 0 {
		return &ConfigError{Flag: "cv", Err: errors.New("must be positive")}
	}
	return nil
}

// ExitOnError parses args and terminates the process with a usage message on
// failure, matching the teacher's cmd/*/main.go error-reporting shape.
func ExitOnError(args []string) *Config {
	cfg, err := Parse(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llmdrill: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
