package core

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// SeriesMetadata describes a stored series. It is read-only for the view engine.
type SeriesMetadata struct {
	Name   string    `json:"name"`
	Unit   string    `json:"unit,omitempty"`
	Period int64     `json:"period"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	QMin   int       `json:"qmin"`
	QMax   int       `json:"qmax"`
}

// Bounds returns the span of available data
func (m SeriesMetadata) Bounds() Window {
	return Window{Start: m.Start, End: m.End}
}

// Window is the [Start, End) range displayed for a series, at second resolution
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow truncates both ends to the second and rejects empty or inverted ranges
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start.UTC().Truncate(time.Second), End: end.UTC().Truncate(time.Second)}
	if !w.End.After(w.Start) {
		return Window{}, ErrInvalidInput.New("window end " + end.Format(time.RFC3339) +
			" must be after start " + start.Format(time.RFC3339))
	}
	return w, nil
}

// Seconds is the window length in whole seconds
func (w Window) Seconds() int64 {
	return w.End.Unix() - w.Start.Unix()
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return w.Start.UTC().Format(time.RFC3339) + "/" + w.End.UTC().Format(time.RFC3339)
}

// Bucket holds one aggregate slice. V2 is only used by QUART; both are NaN for an empty bucket.
type Bucket struct {
	Start time.Time
	End   time.Time
	Count int64
	V1    float64
	V2    float64
}

// EmptyBucket returns a bucket with no observation
func EmptyBucket(start, end time.Time) Bucket {
	return Bucket{Start: start, End: end, V1: math.NaN(), V2: math.NaN()}
}

func (b Bucket) IsEmpty() bool {
	return b.Count == 0
}

type bucketJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int64     `json:"count"`
	V1    *float64  `json:"v1"`
	V2    *float64  `json:"v2"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON writes NaN values as null
func (b Bucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(bucketJSON{
		Start: b.Start.UTC(),
		End:   b.End.UTC(),
		Count: b.Count,
		V1:    nullable(b.V1),
		V2:    nullable(b.V2),
	})
}

func (b *Bucket) UnmarshalJSON(data []byte) error {
	var raw bucketJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Bucket{Start: raw.Start, End: raw.End, Count: raw.Count, V1: math.NaN(), V2: math.NaN()}
	if raw.V1 != nil {
		b.V1 = *raw.V1
	}
	if raw.V2 != nil {
		b.V2 = *raw.V2
	}
	return nil
}

// BucketSet is the result for one statistic
type BucketSet struct {
	Statistic StatisticKind `json:"statistic"`
	Buckets   []Bucket      `json:"buckets"`
}

// Empty reports whether no bucket of the set holds an observation
func (s BucketSet) Empty() bool {
	for _, b := range s.Buckets {
		if b.Count > 0 {
			return false
		}
	}
	return true
}

// ViewResult is what a navigation resolves to
type ViewResult struct {
	Series string      `json:"series"`
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Sets   []BucketSet `json:"statistics"`
}

func (r *ViewResult) Window() Window {
	return Window{Start: r.Start, End: r.End}
}

// CatalogEntry records a materialized aggregate table
type CatalogEntry struct {
	Series     string        `json:"series"`
	Statistic  StatisticKind `json:"statistic"`
	Multiplier int           `json:"zoom_id"`
	Unit       ZoomToken     `json:"zoom_coef"`
	Delta      int64         `json:"delta"`
	Table      string        `json:"table_name"`
}

// Operation is a navigation step
type Operation string

const (
	OpInit     Operation = "init"
	OpUp       Operation = "up"
	OpDown     Operation = "down"
	OpNext     Operation = "next"
	OpPrevious Operation = "previous"
)

// ParseOperation parses an operation token, ignoring case
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case OpInit, OpUp, OpDown, OpNext, OpPrevious:
		return op, nil
	}
	return "", ErrInvalidInput.New("unknown operation " + s)
}
