package config

// Default configuration constants for the scheduler, sampler and reporter.
const (
	DefaultChannelBufferSize = 10000
	DefaultCV                = 0.5
	DefaultOutputPath        = "./log/output.jsonl"
	DefaultRunTimeSecs       = 60
	DefaultTokenBlockSize    = 512
	DefaultScaleFactor       = 1.0
	DefaultSampleProducers   = 4
	DefaultHealthIntervalMs  = 5000
	MinRunTimeSecs           = 1
)
