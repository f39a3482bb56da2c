// Package trace loads and serves workload traces for the dispatcher.
package trace

import (
	"errors"
	"math/rand"
	"sync/atomic"
)

// ErrNoEntries is returned when a trace loads to zero usable entries.
var ErrNoEntries = errors.New("trace: no entries loaded")

const maxContextWindow = 4096

// Entry is one scheduled request drawn from a trace.
type Entry struct {
	TimestampMs  uint64
	InputLength  uint32
	OutputLength uint32
	ChunkHashes  []uint64
}

// Options controls post-load transforms applied uniformly across formats.
type Options struct {
	Shuffle           bool
	PrefillOnly       bool
	Truncate          uint32
	HasTruncate       bool
	FilterLongContext bool
}

// Store is an immutable, concurrency-safe view over a loaded trace. Many
// goroutines call Iter's returned function concurrently; each call advances
// a single shared cursor exactly once.
type Store struct {
	entries []Entry
	cursor  atomic.Uint64
}

// NewStore builds a Store from already-parsed entries, applying Options.
func NewStore(entries []Entry, opts Options) (*Store, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if opts.PrefillOnly {
			e.OutputLength = 0
		}
		if opts.HasTruncate && uint32(opts.Truncate) < e.InputLength {
			e.InputLength = uint32(opts.Truncate)
		}
		if e.InputLength+e.OutputLength > maxContextWindow {
			if opts.FilterLongContext {
				continue
			}
			if e.OutputLength < maxContextWindow-1 {
				e.InputLength = maxContextWindow - 1 - e.OutputLength
			} else {
				e.InputLength = 1
			}
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrNoEntries
	}
	if opts.Shuffle {
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return &Store{entries: out}, nil
}

// Len returns the number of entries in the store.
func (s *Store) Len() int { return len(s.entries) }

// At returns the entry at index i in load order (post shuffle).
func (s *Store) At(i int) Entry { return s.entries[i] }

// Iter returns a function that, called repeatedly (safely from many
// goroutines), hands out entries in order exactly once each, then reports
// exhaustion. Used by the dispatcher for synthetic mode's round-robin draw
// and by replay mode's sequential scan.
func (s *Store) Iter() func() (Entry, int, bool) {
	return func() (Entry, int, bool) {
		idx := s.cursor.Add(1) - 1
		if int(idx) >= len(s.entries) {
			return Entry{}, 0, false
		}
		return s.entries[idx], int(idx), true
	}
}

// Reset rewinds the shared cursor to the beginning; used when a synthetic
// run must loop the dataset past its natural length.
func (s *Store) Reset() { s.cursor.Store(0) }

// RequestRate estimates the average request rate implied by entry
// timestamps, in requests per second (meaningful for replay traces only).
func (s *Store) RequestRate() float64 {
	if len(s.entries) < 2 {
		return 0
	}
	span := s.entries[len(s.entries)-1].TimestampMs - s.entries[0].TimestampMs
	if span == 0 {
		return 0
	}
	return float64(len(s.entries)-1) * 1000.0 / float64(span)
}
