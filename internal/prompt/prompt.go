// Package prompt assembles prompt text for a trace entry from cached
// prefix chunks and freshly sampled filler tokens.
package prompt

import (
	"strings"

	"github.com/bc-dunia/llmdrill/internal/chunkcache"
	"github.com/bc-dunia/llmdrill/internal/sampler"
	"github.com/bc-dunia/llmdrill/internal/trace"
)

// Materializer turns a trace entry into concrete prompt text: every chunk
// hash but the last is resolved through the shared cache at the format's
// fixed block size (sharing text across entries with identical prefixes);
// the last hash covers whatever length remains so the total decodes back
// to exactly InputLength tokens.
type Materializer struct {
	tok       sampler.Tokenizer
	cache     *chunkcache.Cache
	sample    *sampler.Sampler
	blockSize int
}

// New builds a Materializer over a shared chunk cache and token sampler.
func New(tok sampler.Tokenizer, cache *chunkcache.Cache, s *sampler.Sampler, blockSize int) *Materializer {
	return &Materializer{tok: tok, cache: cache, sample: s, blockSize: blockSize}
}

// Inflate returns the prompt text for entry, whose total decoded length is
// exactly entry.InputLength tokens. Each chunk's decoded text already opens
// and closes on the tokenizer's splitter token (sampler.generateBlock wraps
// it that way), so chunks are joined on a single space rather than another
// splitter — concatenating splitter characters directly would merge into
// one token and silently drop two tokens per chunk boundary.
func (m *Materializer) Inflate(entry trace.Entry) string {
	total := int(entry.InputLength)
	if total <= 0 {
		return ""
	}
	hashes := entry.ChunkHashes
	if len(hashes) == 0 {
		return m.tok.Decode(m.sample.Draw(total))
	}

	parts := make([]string, 0, len(hashes))
	covered := 0
	for i, hash := range hashes {
		chunkLen := m.blockSize
		if i == len(hashes)-1 {
			chunkLen = total - covered
		}
		if chunkLen <= 0 {
			break
		}
		text := m.cache.GetOrInsert(hash, func() string {
			return m.tok.Decode(m.sample.Draw(chunkLen))
		})
		parts = append(parts, text)
		covered += chunkLen
	}

	return strings.Join(parts, " ")
}
