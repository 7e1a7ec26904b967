package querier

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
)

const maxZoomBody = 64 << 10

// pathParam reads a path wildcard, falling back to the path suffix when the host router
// does not expose wildcards
func pathParam(r *http.Request, name, prefix string) string {
	if v := r.PathValue(name); v != "" {
		return v
	}
	v := strings.TrimPrefix(r.URL.Path, prefix)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func required(q url.Values, key string) (string, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return "", core.ErrInvalidInput.New("parameter '" + key + "' is required")
	}
	return v, nil
}

func statistics(q url.Values, key string) ([]core.StatisticKind, error) {
	if len(q[key]) == 0 {
		return nil, core.ErrInvalidInput.New("parameter '" + key + "' is required")
	}
	return core.ParseStatistics(q[key])
}

// nbv reads nbv or Nbv, both spellings being used by the viewers
func (s *Server) nbv(q url.Values) (int, error) {
	raw := q.Get("nbv")
	if raw == "" {
		raw = q.Get("Nbv")
	}
	if raw == "" {
		return s.DefaultNbv, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.ErrInvalidInput.New("Nbv " + raw + " is not an integer")
	}
	if n <= 0 {
		return 0, core.ErrInvalidInput.New("Nbv " + raw + " must be positive")
	}
	return n, nil
}

func date(q url.Values, key string) (time.Time, error) {
	raw, err := required(q, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, core.ErrInvalidInput.New("parameter '" + key + "' must be an RFC3339 date: " + raw)
	}
	return t, nil
}

// zoomSpec reads the zoom spec from the JSON body, or from the zoom query parameter when the
// body is empty
func zoomSpec(r *http.Request) (core.ZoomSpec, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxZoomBody))
		if err != nil {
			return nil, core.ErrInvalidInput.New("failed to read body: " + err.Error())
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		raw := r.URL.Query().Get("zoom")
		if raw == "" {
			return nil, core.ErrInvalidInput.New("parameter 'zoom' is required")
		}
		body = []byte(raw)
	}
	return core.ParseZoomSpec(body)
}

// parseConfigName splits {series}_{stat}_{multiplier}_{unit}. The series name may itself
// contain underscores.
func parseConfigName(name string) (string, core.StatisticKind, int, core.ZoomToken, error) {
	parts := strings.Split(name, "_")
	k := len(parts)
	if k < 4 {
		return "", "", 0, "", core.ErrInvalidInput.New("invalid configuration name " + name)
	}
	series := strings.Join(parts[:k-3], "_")
	if series == "" {
		return "", "", 0, "", core.ErrInvalidInput.New("invalid configuration name " + name)
	}
	stat, err := core.ParseStatistic(parts[k-3])
	if err != nil {
		return "", "", 0, "", err
	}
	mult, err := strconv.Atoi(parts[k-2])
	if err != nil || mult <= 0 {
		return "", "", 0, "", core.ErrInvalidInput.New("invalid zoom multiplier " + parts[k-2])
	}
	unit, err := core.ParseZoomToken(parts[k-1])
	if err != nil {
		return "", "", 0, "", err
	}
	return series, stat, mult, unit, nil
}
