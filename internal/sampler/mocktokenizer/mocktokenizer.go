// Package mocktokenizer provides a deterministic, dependency-free
// Tokenizer implementation used by tests and the mock protocol.
package mocktokenizer

import (
	"strconv"
	"strings"
)

// Tokenizer encodes text as whitespace-separated decimal token ids and
// decodes the reverse, so Encode(Decode(ids)) == ids for any ids slice
// produced by this tokenizer — useful for exercising the sampler's
// rejection-sampling loop without pulling in a real BPE vocabulary.
type Tokenizer struct {
	vocabSize int
}

// New builds a mock tokenizer with the given vocabulary size.
func New(vocabSize int) *Tokenizer {
	return &Tokenizer{vocabSize: vocabSize}
}

func (t *Tokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		if id, err := strconv.Atoi(f); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *Tokenizer) Decode(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}

func (t *Tokenizer) VocabSize() int { return t.vocabSize }

func (t *Tokenizer) Splitter() string { return "0" }
