package core

import (
	"context"
	"time"
)

// SeriesMetadataStore resolves the metadata of a stored series
type SeriesMetadataStore interface {
	// Get returns the metadata of a series, ErrUnknownSeries if it is not registered
	Get(ctx context.Context, name string) (SeriesMetadata, error)

	// Names lists every registered series
	Names(ctx context.Context) ([]string, error)
}

// ObservationStore computes bucketed aggregates over raw observations
type ObservationStore interface {
	// BucketAggregate aggregates the observations of [start, end) into buckets of
	// width seconds aligned on start. Only non-empty buckets are returned, ordered by start.
	BucketAggregate(ctx context.Context, series string, stat StatisticKind,
		start, end time.Time, width int64) ([]Bucket, error)
}

// CatalogStore is the registry of materialized aggregate tables
type CatalogStore interface {
	// Find returns the entry materialized for (series, stat) with the given bucket width.
	// It returns ErrNotConfigured when no table matches.
	Find(ctx context.Context, series string, stat StatisticKind, delta float64) (CatalogEntry, error)

	// Materialize creates and fills the aggregate table of an entry if absent
	Materialize(ctx context.Context, entry CatalogEntry, bounds Window) error

	// Register records an entry, ignoring duplicates
	Register(ctx context.Context, entry CatalogEntry) error

	// Rows reads the non-empty buckets of a materialized table with index in [first, first+count).
	// Bucket i starts at origin + i*entry.Delta seconds.
	Rows(ctx context.Context, entry CatalogEntry, origin time.Time, first, count int64) ([]Bucket, error)

	// Delete drops the table of a configuration and its catalog row, returning rows affected
	Delete(ctx context.Context, series string, multiplier int, unit ZoomToken, stat StatisticKind) (int64, error)

	// List returns every catalog entry
	List(ctx context.Context) ([]CatalogEntry, error)
}
