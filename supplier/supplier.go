package supplier

import (
	"context"
	"fmt"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/gigapi/gigapi-zoomview/metrics"
)

// Supplier returns exactly Nbv buckets per statistic for a window, from a materialized table
// when the catalog has one aligned on the window, from raw observations otherwise.
type Supplier struct {
	Metadata     core.SeriesMetadataStore
	Observations core.ObservationStore
	Catalog      core.CatalogStore
}

// New creates a new Supplier
func New(metadata core.SeriesMetadataStore, observations core.ObservationStore, catalog core.CatalogStore) *Supplier {
	return &Supplier{
		Metadata:     metadata,
		Observations: observations,
		Catalog:      catalog,
	}
}

// GetBuckets computes one BucketSet per requested statistic, ALL expanded
func (s *Supplier) GetBuckets(ctx context.Context, series string, stats []core.StatisticKind,
	start, end time.Time, nbv int) ([]core.BucketSet, error) {
	if nbv <= 0 {
		return nil, core.ErrInvalidInput.New(fmt.Sprintf("Nbv %d must be positive", nbv))
	}
	if len(stats) == 0 {
		return nil, core.ErrInvalidInput.New("at least one statistic is required")
	}
	window, err := core.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	meta, err := s.Metadata.Get(ctx, series)
	if err != nil {
		return nil, err
	}

	plan := NewPlan(window.Seconds(), nbv)
	res := make([]core.BucketSet, 0, len(stats))
	empty := true
	for _, stat := range core.ExpandStatistics(stats) {
		set, err := s.statistic(ctx, meta, stat, window, plan)
		if err != nil {
			core.Errorf(ctx, "Failed to compute %s of %s over %s: %v", stat, series, window, err)
			return nil, err
		}
		if !set.Empty() {
			empty = false
		}
		res = append(res, set)
	}
	if empty {
		return nil, core.ErrEmptyResult.New(series, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}
	return res, nil
}

func (s *Supplier) statistic(ctx context.Context, meta core.SeriesMetadata, stat core.StatisticKind,
	window core.Window, plan Plan) (core.BucketSet, error) {
	started := time.Now()
	set := core.BucketSet{Statistic: stat}
	slots := plan.Slots(window.Start)

	if plan.Integral() {
		buckets, ok, err := s.materialized(ctx, meta, stat, window, plan)
		if err != nil {
			return set, err
		}
		if ok {
			set.Buckets = densify(slots, buckets)
			metrics.SupplierPath.WithLabelValues(metrics.PathMaterialized).Inc()
			metrics.SupplierDuration.WithLabelValues(metrics.PathMaterialized).Observe(time.Since(started).Seconds())
			return set, nil
		}
	}

	buckets, err := s.onDemand(ctx, meta.Name, stat, window, plan, slots)
	if err != nil {
		return set, err
	}
	set.Buckets = densify(slots, buckets)
	metrics.SupplierPath.WithLabelValues(metrics.PathOnDemand).Inc()
	metrics.SupplierDuration.WithLabelValues(metrics.PathOnDemand).Observe(time.Since(started).Seconds())
	return set, nil
}

// materialized reads the catalog table matching the plan when the window lies on its bucket grid
func (s *Supplier) materialized(ctx context.Context, meta core.SeriesMetadata, stat core.StatisticKind,
	window core.Window, plan Plan) ([]core.Bucket, bool, error) {
	entry, err := s.Catalog.Find(ctx, meta.Name, stat, plan.Delta)
	if core.KindOf(err) == core.KindNotConfigured {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	offset := window.Start.Unix() - meta.Start.Unix()
	if offset < 0 || offset%entry.Delta != 0 {
		core.Debugf(ctx, "Window %s is off the grid of %s, computing on demand", window, entry.Table)
		return nil, false, nil
	}
	buckets, err := s.Catalog.Rows(ctx, entry, meta.Start, offset/entry.Delta, int64(plan.Nbv))
	if err != nil {
		return nil, false, err
	}
	core.Debugf(ctx, "Read %d rows of %s", len(buckets), entry.Table)
	return buckets, true, nil
}

// onDemand aggregates raw observations: one bucketed query for a uniform plan, one query per
// bucket otherwise
func (s *Supplier) onDemand(ctx context.Context, series string, stat core.StatisticKind,
	window core.Window, plan Plan, slots []core.Window) ([]core.Bucket, error) {
	if plan.Uniform() {
		end := window.Start.Add(time.Duration(plan.Span()) * time.Second)
		return s.Observations.BucketAggregate(ctx, series, stat, window.Start, end, plan.FloorDelta)
	}
	core.Debugf(ctx, "Splitting %s of %s into %s", window, series, plan)
	var res []core.Bucket
	for _, slot := range slots {
		buckets, err := s.Observations.BucketAggregate(ctx, series, stat, slot.Start, slot.End, slot.Seconds())
		if err != nil {
			return nil, err
		}
		res = append(res, buckets...)
	}
	return res, nil
}

// densify lays buckets into their slots; slots with no bucket get an empty one
func densify(slots []core.Window, buckets []core.Bucket) []core.Bucket {
	byStart := make(map[int64]core.Bucket, len(buckets))
	for _, b := range buckets {
		byStart[b.Start.Unix()] = b
	}
	res := make([]core.Bucket, len(slots))
	for i, slot := range slots {
		b, ok := byStart[slot.Start.Unix()]
		if !ok {
			res[i] = core.EmptyBucket(slot.Start, slot.End)
			continue
		}
		b.End = slot.End
		res[i] = b
	}
	return res
}
