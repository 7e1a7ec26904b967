package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
)

var _ core.CatalogStore = (*Catalog)(nil)

// Catalog is the registry of materialized aggregate tables kept in the configuration table
type Catalog struct {
	c *Client
}

func (cat *Catalog) Find(ctx context.Context, series string, stat core.StatisticKind, delta float64) (core.CatalogEntry, error) {
	if delta <= 0 || delta != math.Trunc(delta) {
		return core.CatalogEntry{}, core.ErrNotConfigured.New(series, stat, delta)
	}
	conn, err := cat.c.conn(ctx)
	if err != nil {
		return core.CatalogEntry{}, err
	}
	defer conn.Close()

	entry := core.CatalogEntry{Series: series, Statistic: stat}
	var unit string
	err = conn.QueryRowContext(ctx,
		`SELECT zoom_id, zoom_coef, delta, table_name FROM configuration
		WHERE series = ? AND statistic = ? AND delta = ?
		ORDER BY zoom_id LIMIT 1`,
		series, stat.Lower(), int64(delta)).Scan(&entry.Multiplier, &unit, &entry.Delta, &entry.Table)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CatalogEntry{}, core.ErrNotConfigured.New(series, stat, delta)
	}
	if err != nil {
		return core.CatalogEntry{}, core.ErrStoreUnavailable.Wrap(err, "select configuration")
	}
	entry.Unit = core.ZoomToken(unit)
	return entry, nil
}

// Materialize creates the aggregate table of an entry and fills it over the inclusive series
// bounds. A table that already holds rows is left untouched.
func (cat *Catalog) Materialize(ctx context.Context, entry core.CatalogEntry, bounds core.Window) error {
	if entry.Delta <= 0 {
		return core.ErrInvalidInput.New(fmt.Sprintf("delta %d must be positive", entry.Delta))
	}
	query, err := bucketQuery(entry.Statistic, true)
	if err != nil {
		return err
	}
	conn, err := cat.c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	table := quoteIdent(entry.Table)
	_, err = conn.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (bucket BIGINT, v1 DOUBLE, v2 DOUBLE, n BIGINT)`, table))
	if err != nil {
		return core.ErrStoreUnavailable.Wrap(err, "create "+entry.Table)
	}
	start := bounds.Start.UnixNano()
	_, err = conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s SELECT * FROM (%s) AS agg WHERE NOT EXISTS (SELECT 1 FROM %s)`,
			table, query, table),
		start, entry.Delta*int64(time.Second), entry.Series, start, bounds.End.UnixNano())
	if err != nil {
		return core.ErrStoreUnavailable.Wrap(err, "fill "+entry.Table)
	}
	return nil
}

func (cat *Catalog) Register(ctx context.Context, entry core.CatalogEntry) error {
	conn, err := cat.c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx,
		`INSERT INTO configuration (series, statistic, zoom_id, zoom_coef, delta, table_name)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		entry.Series, entry.Statistic.Lower(), entry.Multiplier, string(entry.Unit), entry.Delta, entry.Table)
	if err != nil {
		return core.ErrStoreUnavailable.Wrap(err, "insert configuration")
	}
	return nil
}

func (cat *Catalog) Rows(ctx context.Context, entry core.CatalogEntry, origin time.Time, first, count int64) ([]core.Bucket, error) {
	conn, err := cat.c.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT bucket, v1, v2, n FROM %s WHERE bucket >= ? AND bucket < ? ORDER BY bucket`,
			quoteIdent(entry.Table)),
		first, first+count)
	if err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "read "+entry.Table)
	}
	defer rows.Close()
	return scanBuckets(rows, origin, entry.Delta)
}

// Delete drops the table of a configuration and removes its row. Deleting an absent
// configuration affects no row and is not an error.
func (cat *Catalog) Delete(ctx context.Context, series string, multiplier int, unit core.ZoomToken,
	stat core.StatisticKind) (int64, error) {
	conn, err := cat.c.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var table string
	err = conn.QueryRowContext(ctx,
		`SELECT table_name FROM configuration WHERE series = ? AND statistic = ? AND zoom_id = ? AND zoom_coef = ?`,
		series, stat.Lower(), multiplier, string(unit)).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, core.ErrStoreUnavailable.Wrap(err, "select configuration")
	}
	if _, err = conn.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(table)); err != nil {
		return 0, core.ErrStoreUnavailable.Wrap(err, "drop "+table)
	}
	res, err := conn.ExecContext(ctx,
		`DELETE FROM configuration WHERE series = ? AND statistic = ? AND zoom_id = ? AND zoom_coef = ?`,
		series, stat.Lower(), multiplier, string(unit))
	if err != nil {
		return 0, core.ErrStoreUnavailable.Wrap(err, "delete configuration")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.ErrStoreUnavailable.Wrap(err, "delete configuration")
	}
	return n, nil
}

func (cat *Catalog) List(ctx context.Context) ([]core.CatalogEntry, error) {
	conn, err := cat.c.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx,
		`SELECT series, statistic, zoom_id, zoom_coef, delta, table_name FROM configuration
		ORDER BY series, statistic, zoom_id, zoom_coef`)
	if err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "select configuration")
	}
	defer rows.Close()
	var res []core.CatalogEntry
	for rows.Next() {
		var (
			e          core.CatalogEntry
			stat, unit string
		)
		if err := rows.Scan(&e.Series, &stat, &e.Multiplier, &unit, &e.Delta, &e.Table); err != nil {
			return nil, core.ErrStoreUnavailable.Wrap(err, "scan configuration")
		}
		if e.Statistic, err = core.ParseStatistic(stat); err != nil {
			return nil, err
		}
		e.Unit = core.ZoomToken(unit)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "select configuration")
	}
	return res, nil
}
