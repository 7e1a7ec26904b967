package querier

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
)

// HandleConfigData materializes the zoom tiers of a series: POST /config-data/{name}?data=..&nbv=..
// with the zoom spec as body
func (s *Server) HandleConfigData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := pathParam(r, "name", "/config-data/")
	q := r.URL.Query()
	stats, err := statistics(q, "data")
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	nbv, err := s.nbv(q)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	zoom, err := zoomSpec(r)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	if err := s.Planner.Configure(ctx, name, stats, nbv, zoom); err != nil {
		s.fail(ctx, w, err)
		return
	}

	entries, err := s.Planner.Configurations(ctx)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	res := make([]core.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Series == name {
			res = append(res, e)
		}
	}
	sendJSON(w, map[string]any{"series": name, "configurations": res})
}

// HandleInitView resolves the first view of a series: /get-initview?name=..&aggregation=..&nbv=..
func (s *Server) HandleInitView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	name, err := required(q, "name")
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	agg, err := required(q, "aggregation")
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	stat, err := core.ParseStatistic(agg)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	nbv, err := s.nbv(q)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	zoom, err := zoomSpec(r)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	res, err := s.Navigator.InitialView(ctx, name, stat, nbv, zoom)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	s.respond(ctx, w, r, res)
}

// HandleViews navigates from the displayed window:
// /get-views/{name}?data=..&startDate=..&endDate=..&Nbv=..&operation=..
func (s *Server) HandleViews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := pathParam(r, "name", "/get-views/")
	q := r.URL.Query()
	stats, err := statistics(q, "data")
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	start, end, err := dates(q)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	nbv, err := s.nbv(q)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	raw, err := required(q, "operation")
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	op, err := core.ParseOperation(raw)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	zoom, err := zoomSpec(r)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	res, err := s.Navigator.NavigateView(ctx, name, stats, start, end, nbv, zoom, op)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	s.respond(ctx, w, r, res)
}

// HandleData returns the buckets of a window without navigation or caching:
// /get-data/{name}?data=..&startDate=..&endDate=..&Nbv=..
func (s *Server) HandleData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := pathParam(r, "name", "/get-data/")
	q := r.URL.Query()
	stats, err := statistics(q, "data")
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	start, end, err := dates(q)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	nbv, err := s.nbv(q)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	sets, err := s.Supplier.GetBuckets(ctx, name, stats, start, end, nbv)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	s.respond(ctx, w, r, &core.ViewResult{
		Series: name,
		Start:  start.UTC().Truncate(time.Second),
		End:    end.UTC().Truncate(time.Second),
		Sets:   sets,
	})
}

// HandleDeleteConfiguration drops one tier: DELETE /delete-configuration/{series}_{stat}_{mult}_{unit}
func (s *Server) HandleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	series, stat, mult, unit, err := parseConfigName(pathParam(r, "config", "/delete-configuration/"))
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	n, err := s.Planner.DeleteConfiguration(ctx, series, mult, unit, stat)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	if n == 0 {
		sendErrorResponse(w, "configuration not found", "", http.StatusNotFound)
		return
	}
	sendJSON(w, map[string]any{"deleted": n})
}

func (s *Server) HandleConfigurations(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Planner.Configurations(r.Context())
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	if entries == nil {
		entries = []core.CatalogEntry{}
	}
	sendJSON(w, map[string]any{"configurations": entries})
}

func (s *Server) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.Store.Metadata().Get(r.Context(), pathParam(r, "name", "/get-metadata/"))
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	sendJSON(w, meta)
}

func (s *Server) HandleMetadataNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.Store.Metadata().Names(r.Context())
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	sendJSON(w, map[string]any{"names": names})
}

func dates(q url.Values) (time.Time, time.Time, error) {
	start, err := date(q, "startDate")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := date(q, "endDate")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
