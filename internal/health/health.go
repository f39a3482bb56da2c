// Package health periodically samples host resource usage via gopsutil,
// feeding it into the reporter alongside per-request metrics records.
package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one resource sample, emitted as its own reporter record type.
type Snapshot struct {
	TimestampMs     uint64
	CPUPercent      float64
	MemUsedBytes    uint64
	Dispatched      int64
	Completed       int64
	Failed          int64
}

// Counters is the minimal view of run progress the sampler needs,
// satisfied by the scheduler.
type Counters interface {
	Dispatched() int64
	Completed() int64
	Failed() int64
}

// Sampler periodically captures a Snapshot until stopped.
type Sampler struct {
	interval time.Duration
	counters Counters
	baseMs   func() uint64
	out      chan<- Snapshot
}

// New builds a Sampler that writes snapshots to out every interval.
func New(interval time.Duration, counters Counters, baseMs func() uint64, out chan<- Snapshot) *Sampler {
	return &Sampler{interval: interval, counters: counters, baseMs: baseMs, out: out}
}

// Run samples until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.capture()
			select {
			case s.out <- snap:
			default:
			}
		}
	}
}

func (s *Sampler) capture() Snapshot {
	snap := Snapshot{TimestampMs: s.baseMs()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		snap.MemUsedBytes = vm.Used
	}
	if s.counters != nil {
		snap.Dispatched = s.counters.Dispatched()
		snap.Completed = s.counters.Completed()
		snap.Failed = s.counters.Failed()
	}
	return snap
}
