// Package sysstats samples host CPU and memory load for the dashboard header.
package sysstats

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HistorySize is how many samples the sparklines cover.
const HistorySize = 30

// Snapshot is one host reading plus the retained history.
type Snapshot struct {
	CPUPercent float64
	MemPercent float64
	MemUsed    uint64
	MemTotal   uint64
	CPUHistory []float64
	MemHistory []float64
}

// CPUFunc returns overall CPU usage since the previous call.
type CPUFunc func(ctx context.Context) (float64, error)

// MemFunc returns used percent, used bytes and total bytes.
type MemFunc func(ctx context.Context) (float64, uint64, uint64, error)

// Sampler keeps a rolling window of host readings. Safe for concurrent use.
type Sampler struct {
	mu     sync.Mutex
	cpuFn  CPUFunc
	memFn  MemFunc
	cpuH   []float64
	memH   []float64
	latest Snapshot
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithSources replaces the gopsutil readers.
func WithSources(c CPUFunc, m MemFunc) SamplerOption {
	return func(s *Sampler) {
		s.cpuFn = c
		s.memFn = m
	}
}

func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{cpuFn: hostCPU, memFn: hostMem}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func hostCPU(ctx context.Context) (float64, error) {
	// interval 0 compares against the previous call
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, fmt.Errorf("no cpu reading")
	}
	return pct[0], nil
}

func hostMem(ctx context.Context) (float64, uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	return vm.UsedPercent, vm.Used, vm.Total, nil
}

// Sample takes one reading and appends it to the history.
func (s *Sampler) Sample(ctx context.Context) (Snapshot, error) {
	cpuPct, err := s.cpuFn(ctx)
	if err != nil {
		return s.Latest(), fmt.Errorf("failed to read cpu: %w", err)
	}
	memPct, used, total, err := s.memFn(ctx)
	if err != nil {
		return s.Latest(), fmt.Errorf("failed to read memory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpuH = appendBounded(s.cpuH, cpuPct)
	s.memH = appendBounded(s.memH, memPct)
	s.latest = Snapshot{
		CPUPercent: cpuPct,
		MemPercent: memPct,
		MemUsed:    used,
		MemTotal:   total,
		CPUHistory: append([]float64(nil), s.cpuH...),
		MemHistory: append([]float64(nil), s.memH...),
	}
	return s.latest, nil
}

// Latest returns the most recent snapshot without sampling.
func (s *Sampler) Latest() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func appendBounded(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > HistorySize {
		h = h[len(h)-HistorySize:]
	}
	return h
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders percentages (0-100) as block glyphs, keeping the last
// width values and left-padding with spaces.
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", width-len(values)))
	for _, v := range values {
		v = max(0, min(v, 100))
		idx := int(v / 100 * float64(len(sparkBlocks)-1))
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
