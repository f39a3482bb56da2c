package trace

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bc-dunia/llmdrill/internal/distribution"
)

const (
	mooncakeBlockSize = 512
	azureBlockSize    = 16
)

// mooncakeLine is one JSONL record as emitted by the Mooncake trace format.
type mooncakeLine struct {
	Timestamp  uint64   `json:"timestamp"`
	InputLen   uint32   `json:"input_length"`
	OutputLen  uint32   `json:"output_length"`
	HashIDs    []uint64 `json:"hash_ids"`
}

// LoadMooncakeJSONL reads a Mooncake-format JSONL trace file, one JSON
// object per line, each carrying prefix-cache hash ids chunked at 512
// tokens per block.
func LoadMooncakeJSONL(path string, opts Options) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec mooncakeLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("trace: parse mooncake line: %w", err)
		}
		entries = append(entries, Entry{
			TimestampMs:  rec.Timestamp,
			InputLength:  rec.InputLen,
			OutputLength: rec.OutputLen,
			ChunkHashes:  rec.HashIDs,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: scan %s: %w", path, err)
	}
	return NewStore(entries, opts)
}

// LoadBurstGPTCSV reads a BurstGPT-format CSV trace: a header row naming
// Timestamp, Request tokens and Response tokens columns (Timestamp read as
// whole milliseconds since the trace's own start).
func LoadBurstGPTCSV(path string, opts Options) (*Store, error) {
	entries, err := loadCSVColumns(path, []string{"Timestamp", "Request tokens", "Response tokens"})
	if err != nil {
		return nil, err
	}
	return NewStore(entries, opts)
}

// LoadAzureCSV reads an Azure-format CSV trace (ContextTokens,
// GeneratedTokens, TIMESTAMP columns), chunked at 16 tokens per block for
// prefix caching.
func LoadAzureCSV(path string, opts Options) (*Store, error) {
	entries, err := loadCSVColumns(path, []string{"TIMESTAMP", "ContextTokens", "GeneratedTokens"})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].ChunkHashes = syntheticChunkHashes(entries[i].InputLength, azureBlockSize, uint64(i))
	}
	return NewStore(entries, opts)
}

// loadCSVColumns reads a CSV trace whose header names the timestamp, input
// length and output length columns, in that logical order regardless of
// file column order.
func loadCSVColumns(path string, want []string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("trace: read header %s: %w", path, err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	tsCol, tsOK := idx[want[0]]
	inCol, inOK := idx[want[1]]
	outCol, outOK := idx[want[2]]
	if !tsOK || !inOK || !outOK {
		return nil, fmt.Errorf("trace: %s missing expected columns %v", path, want)
	}

	var entries []Entry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trace: read row %s: %w", path, err)
		}
		ts, _ := strconv.ParseUint(rec[tsCol], 10, 64)
		in, _ := strconv.ParseUint(rec[inCol], 10, 32)
		out, _ := strconv.ParseUint(rec[outCol], 10, 32)
		entries = append(entries, Entry{
			TimestampMs:  ts,
			InputLength:  uint32(in),
			OutputLength: uint32(out),
		})
	}
	return entries, nil
}

// LoadMooncakeSampled reads a Mooncake JSONL trace and resamples its
// inter-arrival gaps onto a synthetic gamma-style spacing while keeping the
// original length/chunk-hash pairs, for replaying shape without replaying
// exact timing.
func LoadMooncakeSampled(path string, rateRPS, cv float64, opts Options) (*Store, error) {
	raw, err := LoadMooncakeJSONL(path, Options{})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, raw.Len())
	var ts uint64
	gaps := distribution.NewGamma(rateRPS, cv)
	for i := 0; i < raw.Len(); i++ {
		e := raw.At(i)
		e.TimestampMs = ts
		entries[i] = e
		ts += uint64(gaps.Next())
	}
	return NewStore(entries, opts)
}

// Uniform synthesizes a trace of n entries with fixed input/output lengths,
// evenly spaced at the given rate, for baseline load tests.
func Uniform(n int, inputLength, outputLength uint32, rateRPS float64, opts Options) (*Store, error) {
	intervalMs := 1000.0 / rateRPS
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = Entry{
			TimestampMs:  uint64(float64(i) * intervalMs),
			InputLength:  inputLength,
			OutputLength: outputLength,
			ChunkHashes:  syntheticChunkHashes(inputLength, mooncakeBlockSize, uint64(i)),
		}
	}
	return NewStore(entries, opts)
}

// Mock synthesizes a small deterministic trace for tests and the mock
// protocol's own smoke runs; no file I/O involved.
func Mock() (*Store, error) {
	return Uniform(16, 128, 64, 8.0, Options{})
}

// LoadDataset dispatches to the loader named by kind. File-based kinds use
// the first entry of paths; mock and uniform ignore paths entirely.
func LoadDataset(kind string, paths []string, rateRPS, cv float64, opts Options) (*Store, error) {
	switch kind {
	case "mock":
		return Uniform(16, 128, 64, 8.0, opts)
	case "uniform":
		return Uniform(64, 256, 64, rateRPS, opts)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("trace: dataset %q requires at least one --dataset-path", kind)
	}
	path := paths[0]

	switch kind {
	case "mooncake":
		return LoadMooncakeJSONL(path, opts)
	case "burstgpt":
		return LoadBurstGPTCSV(path, opts)
	case "azure":
		return LoadAzureCSV(path, opts)
	case "mooncake-sampled":
		return LoadMooncakeSampled(path, rateRPS, cv, opts)
	default:
		return nil, fmt.Errorf("trace: unknown dataset kind %q", kind)
	}
}

// BlockSizeFor returns the prefix-cache chunk size a dataset format uses,
// so callers can size the sampler and prompt materializer to match.
func BlockSizeFor(kind string) int {
	if kind == "azure" {
		return azureBlockSize
	}
	return mooncakeBlockSize
}

// syntheticChunkHashes builds deterministic per-entry chunk hash ids for
// formats (Azure, Uniform) that don't natively carry prefix-cache hashes,
// so the chunk cache still has something to key on.
func syntheticChunkHashes(inputLength uint32, blockSize int, seed uint64) []uint64 {
	n := int(inputLength) / blockSize
	if n == 0 {
		n = 1
	}
	hashes := make([]uint64, n)
	for i := range hashes {
		hashes[i] = seed*1_000_003 + uint64(i)
	}
	return hashes
}
