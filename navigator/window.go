package navigator

import (
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
)

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

// Apply computes the window an operation moves to. Factor zooms scale the displayed width by the
// largest multiplier; calendar zooms step by the largest period, and zoom out to the next larger
// one or to the whole series.
func Apply(op core.Operation, w core.Window, zoom core.ZoomSpec, bounds core.Window) (core.Window, error) {
	if op == core.OpInit {
		return w, nil
	}
	s, e := w.Start, w.End
	d := w.Seconds()

	var start, end time.Time
	if zoom.IsFactor() {
		f := int64(zoom.LargestFactor())
		switch op {
		case core.OpUp:
			start, end = s, s.Add(seconds(d/f))
		case core.OpDown:
			start, end = s, s.Add(seconds(d*f))
		case core.OpNext:
			start, end = e, e.Add(seconds(d))
		case core.OpPrevious:
			start, end = s.Add(-seconds(d)), s
		default:
			return core.Window{}, core.ErrInvalidInput.New("unknown operation " + string(op))
		}
	} else {
		p := zoom.LargestPeriod()
		switch op {
		case core.OpUp:
			start, end = s, s.Add(seconds(p))
		case core.OpDown:
			next, ok := zoom.NextLargerPeriod(d)
			if !ok {
				return bounds, nil
			}
			start, end = s, s.Add(seconds(next))
		case core.OpNext:
			start, end = e, e.Add(seconds(p))
		case core.OpPrevious:
			start, end = s.Add(-seconds(p)), s
		default:
			return core.Window{}, core.ErrInvalidInput.New("unknown operation " + string(op))
		}
	}
	if op == core.OpDown && end.After(bounds.End) {
		end = bounds.End
		// a view starting at or past the series end zooms out to the whole series
		if !end.After(start) {
			return bounds, nil
		}
	}
	return core.NewWindow(start, end)
}

// InitialWindow seeds a view at the series start: the span divided by the largest factor, or
// the largest calendar period
func InitialWindow(meta core.SeriesMetadata, zoom core.ZoomSpec) (core.Window, error) {
	var d int64
	if zoom.IsFactor() {
		d = (meta.End.Unix() - meta.Start.Unix()) / int64(zoom.LargestFactor())
	} else {
		d = zoom.LargestPeriod()
	}
	return core.NewWindow(meta.Start, meta.Start.Add(seconds(d)))
}
