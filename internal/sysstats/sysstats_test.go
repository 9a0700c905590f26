package sysstats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"empty", nil, 4, "    "},
		{"zero width", []float64{50}, 0, ""},
		{"range", []float64{0, 50, 100}, 3, "▁▄█"},
		{"clamped", []float64{-10, 250}, 2, "▁█"},
		{"keeps newest", []float64{100, 0, 0}, 2, "▁▁"},
		{"padded", []float64{100}, 3, "  █"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sparkline(tt.values, tt.width))
		})
	}
}

func TestSamplerHistory(t *testing.T) {
	n := 0.0
	s := NewSampler(WithSources(
		func(context.Context) (float64, error) { n++; return n, nil },
		func(context.Context) (float64, uint64, uint64, error) { return 40, 4 << 30, 16 << 30, nil },
	))
	ctx := context.Background()

	var snap Snapshot
	var err error
	for i := 0; i < HistorySize+5; i++ {
		snap, err = s.Sample(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, float64(HistorySize+5), snap.CPUPercent)
	assert.Len(t, snap.CPUHistory, HistorySize)
	assert.Equal(t, 6.0, snap.CPUHistory[0])
	assert.Equal(t, 40.0, snap.MemPercent)
	assert.Equal(t, uint64(4<<30), snap.MemUsed)
	assert.Equal(t, snap, s.Latest())
}

func TestSamplerErrorKeepsLatest(t *testing.T) {
	fail := false
	s := NewSampler(WithSources(
		func(context.Context) (float64, error) {
			if fail {
				return 0, errors.New("no /proc")
			}
			return 12, nil
		},
		func(context.Context) (float64, uint64, uint64, error) { return 1, 1, 2, nil },
	))
	ctx := context.Background()

	first, err := s.Sample(ctx)
	require.NoError(t, err)

	fail = true
	got, err := s.Sample(ctx)
	require.Error(t, err)
	assert.Equal(t, first, got)
	assert.Len(t, s.Latest().CPUHistory, 1)
}
