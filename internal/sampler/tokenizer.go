package sampler

// Tokenizer is the external tokenizer collaborator. Its exact backing
// (a BPE vocabulary, a SentencePiece model, ...) is out of this system's
// scope; the sampler only needs encode/decode round trips and vocabulary
// size to draw random, decodable token blocks.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	VocabSize() int
	// Splitter returns a short piece of text (e.g. a special token's
	// surface form) that the sampler places, space-separated, before and
	// after every generated block (and uses alone for blocks of one or two
	// tokens) so each block's re-encoded length stays stable.
	Splitter() string
}
