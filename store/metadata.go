package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
)

var _ core.SeriesMetadataStore = (*Metadata)(nil)

// Metadata reads the series_metadata table
type Metadata struct {
	c *Client
}

func (m *Metadata) Get(ctx context.Context, name string) (core.SeriesMetadata, error) {
	conn, err := m.c.conn(ctx)
	if err != nil {
		return core.SeriesMetadata{}, err
	}
	defer conn.Close()

	var (
		meta       core.SeriesMetadata
		unit       sql.NullString
		start, end int64
	)
	err = conn.QueryRowContext(ctx,
		`SELECT name, unit, period, start_time, end_time, qmin, qmax FROM series_metadata WHERE name = ?`,
		name).Scan(&meta.Name, &unit, &meta.Period, &start, &end, &meta.QMin, &meta.QMax)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SeriesMetadata{}, core.ErrUnknownSeries.New(name)
	}
	if err != nil {
		return core.SeriesMetadata{}, core.ErrStoreUnavailable.Wrap(err, "select series_metadata")
	}
	meta.Unit = unit.String
	meta.Start = time.Unix(0, start).UTC()
	meta.End = time.Unix(0, end).UTC()
	return meta, nil
}

func (m *Metadata) Names(ctx context.Context) ([]string, error) {
	conn, err := m.c.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT name FROM series_metadata ORDER BY name`)
	if err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "select series names")
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, core.ErrStoreUnavailable.Wrap(err, "scan series name")
		}
		res = append(res, name)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "select series names")
	}
	return res, nil
}

// Put inserts or replaces the metadata of a series
func (m *Metadata) Put(ctx context.Context, meta core.SeriesMetadata) error {
	if meta.Name == "" {
		return core.ErrInvalidInput.New("series name is empty")
	}
	conn, err := m.c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO series_metadata (name, unit, period, start_time, end_time, qmin, qmax)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.Name, meta.Unit, meta.Period, meta.Start.UnixNano(), meta.End.UnixNano(), meta.QMin, meta.QMax)
	if err != nil {
		return core.ErrStoreUnavailable.Wrap(err, "insert series_metadata")
	}
	return nil
}
