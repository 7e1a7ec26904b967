package supplier

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	tests := []struct {
		name     string
		interval int64
		nbv      int
		floor    int64
		ceil     int64
		n, p     int
		integral bool
	}{
		{name: "scenario A", interval: 43200, nbv: 10, floor: 4320, ceil: 4320, n: 10, integral: true},
		{name: "scenario B", interval: 3600, nbv: 5, floor: 720, ceil: 720, n: 5, integral: true},
		{name: "scenario C", interval: 100, nbv: 7, floor: 14, ceil: 15, n: 5, p: 2},
		{name: "remainder above floor", interval: 10, nbv: 4, floor: 2, ceil: 3, n: 2, p: 2},
		{name: "interval shorter than Nbv", interval: 3, nbv: 5, floor: 1, ceil: 1, n: 5},
		{name: "single bucket", interval: 59, nbv: 1, floor: 59, ceil: 59, n: 1, integral: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlan(tt.interval, tt.nbv)
			assert.Equal(t, tt.floor, p.FloorDelta)
			assert.Equal(t, tt.ceil, p.CeilDelta)
			assert.Equal(t, tt.n, p.N)
			assert.Equal(t, tt.p, p.P)
			assert.Equal(t, tt.integral, p.Integral())
		})
	}
}

func TestPlanSplitInvariant(t *testing.T) {
	for interval := int64(1); interval <= 400; interval += 7 {
		for nbv := 1; nbv <= 60; nbv++ {
			p := NewPlan(interval, nbv)
			require.Equal(t, nbv, p.N+p.P, "interval %d nbv %d", interval, nbv)
			require.GreaterOrEqual(t, p.P, 0)
			require.Len(t, p.Slots(time.Unix(0, 0)), nbv)
			if interval >= int64(nbv) {
				require.Equal(t, interval, p.Span(), fmt.Sprintf("interval %d nbv %d: %s", interval, nbv, p))
			} else {
				require.Equal(t, int64(nbv), p.Span())
			}
		}
	}
}

func TestPlanSlots(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	slots := NewPlan(100, 7).Slots(start)
	require.Len(t, slots, 7)
	widths := make([]int64, 0, len(slots))
	for i, s := range slots {
		widths = append(widths, s.Seconds())
		if i > 0 {
			assert.Equal(t, slots[i-1].End, s.Start)
		}
	}
	assert.Equal(t, []int64{14, 14, 14, 14, 14, 15, 15}, widths)
	assert.Equal(t, start, slots[0].Start)
	assert.Equal(t, start.Add(100*time.Second), slots[6].End)
}
