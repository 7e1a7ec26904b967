package planner

import (
	"context"
	"fmt"

	"github.com/gigapi/gigapi-zoomview/core"
)

// TableNamer names the materialized table of a (series, statistic, zoom tier)
type TableNamer func(series string, stat core.StatisticKind, multiplier int, unit core.ZoomToken) string

// Planner materializes aggregate tables for zoom tiers and records them in the catalog
type Planner struct {
	Metadata  core.SeriesMetadataStore
	Catalog   core.CatalogStore
	TableName TableNamer
}

// New creates a new Planner
func New(metadata core.SeriesMetadataStore, catalog core.CatalogStore, names TableNamer) *Planner {
	return &Planner{
		Metadata:  metadata,
		Catalog:   catalog,
		TableName: names,
	}
}

// Delta computes the bucket width of a tier. Factor tiers divide the series span, calendar
// tiers their own duration.
func Delta(meta core.SeriesMetadata, unit core.ZoomUnit, nbv int) int64 {
	if unit.IsFactor() {
		span := meta.End.Unix() - meta.Start.Unix()
		return span / int64(unit.Multiplier) / int64(nbv)
	}
	return unit.Seconds() / int64(nbv)
}

// Plan lists the catalog entries Configure would create, skipping tiers with no positive delta
func (p *Planner) Plan(meta core.SeriesMetadata, stats []core.StatisticKind, nbv int, zoom core.ZoomSpec) []core.CatalogEntry {
	var res []core.CatalogEntry
	for _, stat := range core.ExpandStatistics(stats) {
		for _, unit := range zoom.Units() {
			delta := Delta(meta, unit, nbv)
			if delta <= 0 {
				continue
			}
			res = append(res, core.CatalogEntry{
				Series:     meta.Name,
				Statistic:  stat,
				Multiplier: unit.Multiplier,
				Unit:       unit.Unit,
				Delta:      delta,
				Table:      p.TableName(meta.Name, stat, unit.Multiplier, unit.Unit),
			})
		}
	}
	return res
}

// Configure materializes one table per (statistic, zoom tier). The first failure aborts the call;
// tables created before it stay in place and a repeated call completes the rest.
func (p *Planner) Configure(ctx context.Context, series string, stats []core.StatisticKind, nbv int, zoom core.ZoomSpec) error {
	if nbv <= 0 {
		return core.ErrInvalidInput.New(fmt.Sprintf("Nbv %d must be positive", nbv))
	}
	if len(stats) == 0 {
		return core.ErrInvalidInput.New("at least one statistic is required")
	}
	if err := zoom.Validate(); err != nil {
		return err
	}
	meta, err := p.Metadata.Get(ctx, series)
	if err != nil {
		return err
	}

	entries := p.Plan(meta, stats, nbv, zoom)
	core.Infof(ctx, "Configuring %s: %d tables for zoom %s with Nbv %d", series, len(entries), zoom, nbv)
	for _, entry := range entries {
		if err := p.Catalog.Materialize(ctx, entry, meta.Bounds()); err != nil {
			core.Errorf(ctx, "Failed to materialize %s: %v", entry.Table, err)
			return asStoreError(err, "materialize "+entry.Table)
		}
		if err := p.Catalog.Register(ctx, entry); err != nil {
			core.Errorf(ctx, "Failed to register %s: %v", entry.Table, err)
			return asStoreError(err, "register "+entry.Table)
		}
		core.Debugf(ctx, "Materialized %s (delta %ds)", entry.Table, entry.Delta)
	}
	return nil
}

// DeleteConfiguration drops the table of one tier and removes its catalog row
func (p *Planner) DeleteConfiguration(ctx context.Context, series string, multiplier int, unit core.ZoomToken,
	stat core.StatisticKind) (int64, error) {
	if stat == core.StatAll {
		return 0, core.ErrInvalidInput.New("cannot delete configuration of statistic ALL")
	}
	n, err := p.Catalog.Delete(ctx, series, multiplier, unit, stat)
	if err != nil {
		return 0, err
	}
	core.Infof(ctx, "Deleted configuration %s %s %d %s: %d rows", series, stat, multiplier, unit, n)
	return n, nil
}

// Configurations lists the catalog
func (p *Planner) Configurations(ctx context.Context) ([]core.CatalogEntry, error) {
	return p.Catalog.List(ctx)
}

func asStoreError(err error, op string) error {
	if core.KindOf(err) == core.KindStoreUnavailable {
		return err
	}
	return core.ErrStoreUnavailable.Wrap(err, op)
}
