package supplier

import (
	"fmt"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
)

// Plan splits an interval into exactly Nbv buckets: N of width FloorDelta followed by P of
// width CeilDelta.
type Plan struct {
	Interval   int64
	Nbv        int
	Delta      float64
	FloorDelta int64
	CeilDelta  int64
	N          int
	P          int
}

// NewPlan builds the bucket plan of an interval in seconds. An interval shorter than Nbv
// yields Nbv one-second buckets, which overrun the interval.
func NewPlan(interval int64, nbv int) Plan {
	p := Plan{
		Interval:   interval,
		Nbv:        nbv,
		Delta:      float64(interval) / float64(nbv),
		FloorDelta: interval / int64(nbv),
	}
	p.CeilDelta = p.FloorDelta
	if interval%int64(nbv) != 0 {
		p.CeilDelta++
	}
	if p.FloorDelta == 0 {
		p.FloorDelta = p.CeilDelta
		p.N = nbv
		return p
	}
	p.P = int(interval - int64(nbv)*p.FloorDelta)
	p.N = nbv - p.P
	return p
}

// Uniform reports whether every bucket has the same width, so one bucketed query serves the plan
func (p Plan) Uniform() bool {
	return p.P == 0
}

// Integral reports whether the interval divides evenly into Nbv buckets
func (p Plan) Integral() bool {
	return p.Interval >= int64(p.Nbv) && p.Interval%int64(p.Nbv) == 0
}

// Span is the number of seconds covered by the buckets
func (p Plan) Span() int64 {
	return int64(p.N)*p.FloorDelta + int64(p.P)*p.CeilDelta
}

// Slots returns the Nbv bucket windows starting at start, narrower buckets first
func (p Plan) Slots(start time.Time) []core.Window {
	res := make([]core.Window, 0, p.Nbv)
	cur := start
	add := func(count int, width int64) {
		step := time.Duration(width) * time.Second
		for i := 0; i < count; i++ {
			res = append(res, core.Window{Start: cur, End: cur.Add(step)})
			cur = cur.Add(step)
		}
	}
	add(p.N, p.FloorDelta)
	add(p.P, p.CeilDelta)
	return res
}

func (p Plan) String() string {
	return fmt.Sprintf("%d x %ds + %d x %ds", p.N, p.FloorDelta, p.P, p.CeilDelta)
}
