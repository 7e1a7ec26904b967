package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/spf13/afero"
)

// Fixture is the JSON seed format:
//
//	{"series":[{"name":"temp","period":60,...}],"observations":{"temp":[["2024-01-01T00:00:00Z",1.5,1]]}}
type Fixture struct {
	Series       []core.SeriesMetadata    `json:"series"`
	Observations map[string][]Observation `json:"observations"`
}

// UnmarshalJSON reads the [time, value, quality] array form; quality is optional
func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 || len(raw) > 3 {
		return fmt.Errorf("observation %s: expected [time, value, quality]", string(data))
	}
	var ts string
	if err := json.Unmarshal(raw[0], &ts); err != nil {
		return fmt.Errorf("observation time: %w", err)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return fmt.Errorf("observation time: %w", err)
	}
	o.Time = t.UTC()
	if err := json.Unmarshal(raw[1], &o.Value); err != nil {
		return fmt.Errorf("observation value: %w", err)
	}
	if len(raw) == 3 {
		if err := json.Unmarshal(raw[2], &o.Quality); err != nil {
			return fmt.Errorf("observation quality: %w", err)
		}
	}
	return nil
}

// LoadFile seeds the store from a fixture file. Metadata without bounds gets them from its observations.
func (c *Client) LoadFile(ctx context.Context, fs afero.Fs, path string) (int, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return 0, core.ErrInvalidInput.Wrap(err, "fixture "+path)
	}
	return c.Load(ctx, fx)
}

// Load writes a fixture and returns the number of observations appended. Observations under a
// name the fixture does not declare are rejected before anything is written.
func (c *Client) Load(ctx context.Context, fx Fixture) (int, error) {
	known := make(map[string]bool, len(fx.Series))
	for _, meta := range fx.Series {
		known[meta.Name] = true
	}
	for name := range fx.Observations {
		if !known[name] {
			return 0, core.ErrInvalidInput.New("observations for undeclared series " + name)
		}
	}
	total := 0
	for _, meta := range fx.Series {
		obs := fx.Observations[meta.Name]
		sort.Slice(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })
		if len(obs) > 0 {
			if meta.Start.IsZero() {
				meta.Start = obs[0].Time
			}
			if meta.End.IsZero() {
				meta.End = obs[len(obs)-1].Time
			}
		}
		if err := c.Metadata().Put(ctx, meta); err != nil {
			return total, err
		}
		if err := c.Observations().Append(ctx, meta.Name, obs); err != nil {
			return total, err
		}
		total += len(obs)
		core.Infof(ctx, "Loaded series %s: %d observations between %s and %s",
			meta.Name, len(obs), meta.Start.Format(time.RFC3339), meta.End.Format(time.RFC3339))
	}
	return total, nil
}
