package prompt

import (
	"testing"

	"github.com/bc-dunia/llmdrill/internal/chunkcache"
	"github.com/bc-dunia/llmdrill/internal/sampler"
	"github.com/bc-dunia/llmdrill/internal/sampler/mocktokenizer"
	"github.com/bc-dunia/llmdrill/internal/trace"
)

func TestInflateExactLength(t *testing.T) {
	tok := mocktokenizer.New(50000)
	s := sampler.New(tok, 16, 2, 4)
	defer s.Close()
	cache := chunkcache.New()
	m := New(tok, cache, s, 16)

	entry := trace.Entry{InputLength: 40, ChunkHashes: []uint64{1, 2}}
	text := m.Inflate(entry)
	got := len(tok.Encode(text))
	if got != 40 {
		t.Fatalf("inflated length = %d, want 40", got)
	}
}

func TestInflateSharesChunksAcrossEntries(t *testing.T) {
	tok := mocktokenizer.New(50000)
	s := sampler.New(tok, 16, 2, 4)
	defer s.Close()
	cache := chunkcache.New()
	m := New(tok, cache, s, 16)

	a := m.Inflate(trace.Entry{InputLength: 16, ChunkHashes: []uint64{7}})
	b := m.Inflate(trace.Entry{InputLength: 16, ChunkHashes: []uint64{7}})
	if a != b {
		t.Fatalf("expected shared chunk text, got %q vs %q", a, b)
	}
}
