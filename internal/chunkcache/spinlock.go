package chunkcache

import (
	"runtime"
	"sync/atomic"
)

// spinRWMutex is a writer-priority spin lock: once a writer announces
// intent, new readers and writers queue behind it, so a steady stream of
// readers can never starve a writer.
//
// state packs three fields into one word:
//
//	bits  0..31  reader count
//	bit   32     writer active
//	bit   33     writer waiting
type spinRWMutex struct {
	state atomic.Uint64
}

const (
	writerActiveBit  = uint64(1) << 32
	writerWaitingBit = uint64(1) << 33
	readerCountMask  = uint64(1)<<32 - 1
)

func (m *spinRWMutex) rLock() {
	spins := 0
	for {
		s := m.state.Load()
		if s&(writerActiveBit|writerWaitingBit) == 0 {
			if m.state.CompareAndSwap(s, s+1) {
				return
			}
		}
		spins = backoff(spins)
	}
}

func (m *spinRWMutex) rUnlock() {
	m.state.Add(^uint64(0)) // -1, reader count only ever touches the low bits
}

func (m *spinRWMutex) lock() {
	// Announce intent so arriving readers stop acquiring. Only one writer
	// holds the waiting bit at a time; later writers spin until it is free.
	spins := 0
	for {
		s := m.state.Load()
		if s&writerWaitingBit == 0 && m.state.CompareAndSwap(s, s|writerWaitingBit) {
			break
		}
		spins = backoff(spins)
	}
	spins = 0
	for {
		s := m.state.Load()
		if s&readerCountMask == 0 && s&writerActiveBit == 0 {
			if m.state.CompareAndSwap(s, (s&^writerWaitingBit)|writerActiveBit) {
				return
			}
		}
		spins = backoff(spins)
	}
}

func (m *spinRWMutex) unlock() {
	for {
		s := m.state.Load()
		if m.state.CompareAndSwap(s, s&^writerActiveBit) {
			return
		}
	}
}

// backoff yields the goroutine (runtime.Gosched) on each of the first 64
// iterations, then only on every 16th iteration thereafter.
func backoff(spins int) int {
	if spins < 64 {
		runtime.Gosched()
		return spins + 1
	}
	if spins&0xF == 0 {
		runtime.Gosched()
	}
	return spins + 1
}
