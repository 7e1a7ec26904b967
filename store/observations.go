package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/marcboeker/go-duckdb/v2"
)

var _ core.ObservationStore = (*Observations)(nil)

// Observation is one raw sample of a series
type Observation struct {
	Time    time.Time
	Value   float64
	Quality int
}

// Observations reads and appends raw samples
type Observations struct {
	c *Client
}

func (o *Observations) BucketAggregate(ctx context.Context, series string, stat core.StatisticKind,
	start, end time.Time, width int64) ([]core.Bucket, error) {
	if width <= 0 {
		return nil, core.ErrInvalidInput.New(fmt.Sprintf("bucket width %d must be positive", width))
	}
	query, err := bucketQuery(stat, false)
	if err != nil {
		return nil, err
	}
	conn, err := o.c.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	widthNs := width * int64(time.Second)
	rows, err := conn.QueryContext(ctx, query,
		start.UnixNano(), widthNs, series, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "bucket aggregate "+string(stat))
	}
	defer rows.Close()
	return scanBuckets(rows, start, width)
}

// scanBuckets reads (bucket, v1, v2, n) rows. Bucket i spans [origin+i*width, origin+(i+1)*width).
func scanBuckets(rows *sql.Rows, origin time.Time, width int64) ([]core.Bucket, error) {
	var res []core.Bucket
	step := time.Duration(width) * time.Second
	for rows.Next() {
		var (
			idx    int64
			v1, v2 sql.NullFloat64
			n      int64
		)
		if err := rows.Scan(&idx, &v1, &v2, &n); err != nil {
			return nil, core.ErrStoreUnavailable.Wrap(err, "scan bucket")
		}
		b := core.Bucket{
			Start: origin.Add(time.Duration(idx) * step),
			Count: n,
			V1:    math.NaN(),
			V2:    math.NaN(),
		}
		b.End = b.Start.Add(step)
		if v1.Valid {
			b.V1 = v1.Float64
		}
		if v2.Valid {
			b.V2 = v2.Float64
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrStoreUnavailable.Wrap(err, "read buckets")
	}
	return res, nil
}

// Append bulk loads samples of a series through the DuckDB appender
func (o *Observations) Append(ctx context.Context, series string, obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}
	conn, err := o.c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", "observations")
		if err != nil {
			return err
		}
		for _, ob := range obs {
			err = appender.AppendRow(series, ob.Time.UnixNano(), ob.Value, int32(ob.Quality))
			if err != nil {
				appender.Close()
				return err
			}
		}
		return appender.Close()
	})
	if err != nil {
		return core.ErrStoreUnavailable.Wrap(err, "append observations")
	}
	return nil
}
