package store

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gigapi/gigapi-zoomview/core"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS series_metadata (
		name VARCHAR PRIMARY KEY,
		unit VARCHAR,
		period BIGINT,
		start_time BIGINT,
		end_time BIGINT,
		qmin INTEGER,
		qmax INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		series VARCHAR NOT NULL,
		time BIGINT NOT NULL,
		value DOUBLE,
		quality INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS configuration (
		series VARCHAR NOT NULL,
		statistic VARCHAR NOT NULL,
		zoom_id INTEGER NOT NULL,
		zoom_coef VARCHAR NOT NULL,
		delta BIGINT NOT NULL,
		table_name VARCHAR NOT NULL,
		PRIMARY KEY (series, statistic, zoom_id, zoom_coef)
	)`,
}

// TableName builds the identifier of the aggregate table of an entry. Only typed values and
// a hash of the series name go into it.
func TableName(series string, stat core.StatisticKind, multiplier int, unit core.ZoomToken) string {
	return fmt.Sprintf("agg_%016x_%s_%d_%s", xxhash.Sum64String(series), stat.Lower(), multiplier, unit)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// aggregateColumns returns the v1, v2 select list of a statistic
func aggregateColumns(stat core.StatisticKind) (string, error) {
	switch stat {
	case core.StatMin:
		return "MIN(value) AS v1, NULL::DOUBLE AS v2", nil
	case core.StatMax:
		return "MAX(value) AS v1, NULL::DOUBLE AS v2", nil
	case core.StatAvg:
		return "AVG(value) AS v1, NULL::DOUBLE AS v2", nil
	case core.StatMedian:
		return "quantile_cont(value, 0.5) AS v1, NULL::DOUBLE AS v2", nil
	case core.StatQuart:
		return "quantile_cont(value, 0.25) AS v1, quantile_cont(value, 0.75) AS v2", nil
	}
	return "", core.ErrInvalidInput.New("statistic " + string(stat) + " has no aggregate")
}

// bucketQuery groups the observations of one series into buckets of a fixed width aligned on
// the first parameter. Parameters: origin ns, width ns, series, from ns, to ns.
func bucketQuery(stat core.StatisticKind, inclusiveEnd bool) (string, error) {
	cols, err := aggregateColumns(stat)
	if err != nil {
		return "", err
	}
	op := "<"
	if inclusiveEnd {
		op = "<="
	}
	return fmt.Sprintf(`SELECT bucket, %s, COUNT(value) AS n
FROM (
	SELECT (time - ?) // ? AS bucket, value
	FROM observations
	WHERE series = ? AND time >= ? AND time %s ?
)
GROUP BY bucket
ORDER BY bucket`, cols, op), nil
}
