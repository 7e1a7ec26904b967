package navigator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/gigapi/gigapi-zoomview/metrics"
	"github.com/gigapi/gigapi-zoomview/store"
	"github.com/gigapi/gigapi-zoomview/supplier"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetadata map[string]core.SeriesMetadata

func (f fakeMetadata) Get(ctx context.Context, name string) (core.SeriesMetadata, error) {
	m, ok := f[name]
	if !ok {
		return core.SeriesMetadata{}, core.ErrUnknownSeries.New(name)
	}
	return m, nil
}

func (f fakeMetadata) Names(ctx context.Context) ([]string, error) {
	var res []string
	for k := range f {
		res = append(res, k)
	}
	return res, nil
}

type requestMarker struct{}

// fakeSupplier returns one bucket per slot. Calls made outside a marked request context wait
// for the gate when one is set.
type fakeSupplier struct {
	calls   atomic.Int32
	waiting atomic.Int32
	gate    chan struct{}
}

func (f *fakeSupplier) GetBuckets(ctx context.Context, series string, stats []core.StatisticKind,
	start, end time.Time, nbv int) ([]core.BucketSet, error) {
	f.calls.Add(1)
	if f.gate != nil && ctx.Value(requestMarker{}) == nil {
		f.waiting.Add(1)
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	res := make([]core.BucketSet, 0, len(stats))
	for _, s := range stats {
		set := core.BucketSet{Statistic: s}
		for i := 0; i < nbv; i++ {
			set.Buckets = append(set.Buckets, core.Bucket{Start: start, End: end, Count: 1, V1: float64(i)})
		}
		res = append(res, set)
	}
	return res, nil
}

var testMeta = fakeMetadata{"temp": {Name: "temp", Period: 60, Start: t0, End: at(24 * 10)}}

func requestCtx() context.Context {
	return context.WithValue(context.Background(), requestMarker{}, true)
}

func neighbourKeys(req ViewRequest, res *core.ViewResult) map[uint64]bool {
	keys := map[uint64]bool{req.Key(): true}
	for _, op := range neighbourOps {
		keys[req.neighbour(res.Window(), op).Key()] = true
	}
	return keys
}

func TestInitialViewPrefetchesNeighbours(t *testing.T) {
	sup := &fakeSupplier{}
	n := New(sup, testMeta, Options{})
	defer n.Close()
	zoom := core.ZoomSpec{2: core.TokenFactor}

	res, err := n.InitialView(requestCtx(), "temp", core.StatMin, 10, zoom)
	require.NoError(t, err)
	assert.Equal(t, t0, res.Start)
	assert.Equal(t, at(120), res.End)
	require.Len(t, res.Sets, 1)
	assert.Len(t, res.Sets[0].Buckets, 10)

	require.Eventually(t, func() bool { return n.Cache().Len() == 5 }, 5*time.Second, 10*time.Millisecond)

	req := ViewRequest{Series: "temp", Statistics: []core.StatisticKind{core.StatMin},
		Start: t0, End: at(120), Nbv: 10, Zoom: zoom, Op: core.OpInit}
	expected := neighbourKeys(req, res)
	for _, k := range n.Cache().Keys() {
		assert.True(t, expected[k])
	}

	// the next view was prefetched: navigating to it is a hit with no supplier call
	calls := sup.calls.Load()
	next, err := n.NavigateView(requestCtx(), "temp", req.Statistics, res.Start, res.End, 10, zoom, core.OpNext)
	require.NoError(t, err)
	assert.Equal(t, at(120), next.Start)
	assert.Equal(t, at(240), next.End)
	assert.Equal(t, calls, sup.calls.Load())
}

func TestResolveHitDoesNoWork(t *testing.T) {
	sup := &fakeSupplier{}
	n := New(sup, testMeta, Options{})
	zoom := core.ZoomSpec{1: core.TokenHours, 24: core.TokenHours}
	req := ViewRequest{Series: "temp", Statistics: []core.StatisticKind{core.StatAvg},
		Start: at(24), End: at(25), Nbv: 4, Zoom: zoom, Op: core.OpUp}

	first, err := n.Resolve(requestCtx(), req)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return n.Cache().Len() == 5 }, 5*time.Second, 10*time.Millisecond)
	calls := sup.calls.Load()
	keys := n.Cache().Keys()

	hits := testutil.ToFloat64(metrics.CacheHits)
	second, err := n.Resolve(requestCtx(), req)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, hits+1, testutil.ToFloat64(metrics.CacheHits))

	// Close drains the queue: nothing was submitted by the hit
	n.Close()
	assert.Equal(t, calls, sup.calls.Load())
	assert.ElementsMatch(t, keys, n.Cache().Keys())
}

func TestCacheInvariant(t *testing.T) {
	sup := &fakeSupplier{}
	n := New(sup, testMeta, Options{})
	defer n.Close()
	zoom := core.ZoomSpec{2: core.TokenFactor}
	ctx := requestCtx()

	res, err := n.InitialView(ctx, "temp", core.StatMin, 8, zoom)
	require.NoError(t, err)
	req := ViewRequest{Series: "temp", Statistics: []core.StatisticKind{core.StatMin},
		Start: res.Start, End: res.End, Nbv: 8, Zoom: zoom, Op: core.OpInit}
	live := neighbourKeys(req, res)

	ops := []core.Operation{core.OpNext, core.OpNext, core.OpUp, core.OpPrevious, core.OpDown,
		core.OpDown, core.OpNext, core.OpUp, core.OpUp, core.OpPrevious}
	for i, op := range ops {
		req = ViewRequest{Series: "temp", Statistics: req.Statistics,
			Start: res.Start, End: res.End, Nbv: 8, Zoom: zoom, Op: op}
		hits := testutil.ToFloat64(metrics.CacheHits)
		res, err = n.Resolve(ctx, req)
		require.NoError(t, err, "step %d", i)
		if testutil.ToFloat64(metrics.CacheHits) == hits {
			live = neighbourKeys(req, res)
		}
		keys := n.Cache().Keys()
		assert.LessOrEqual(t, len(keys), 5, "step %d", i)
		for _, k := range keys {
			assert.True(t, live[k], "step %d: key %x outside the neighbourhood", i, k)
		}
	}
}

func TestPrefetchQueueFull(t *testing.T) {
	sup := &fakeSupplier{gate: make(chan struct{})}
	n := New(sup, testMeta, Options{QueueSize: 1, Timeout: time.Minute})
	zoom := core.ZoomSpec{2: core.TokenFactor}
	req := func(h float64) ViewRequest {
		return ViewRequest{Series: "temp", Statistics: []core.StatisticKind{core.StatMax},
			Start: at(h), End: at(h + 1), Nbv: 4, Zoom: zoom, Op: core.OpNext}
	}

	_, err := n.Resolve(requestCtx(), req(0))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sup.waiting.Load() == 1 }, 5*time.Second, time.Millisecond)

	dropped := testutil.ToFloat64(metrics.PrefetchDropped)
	_, err = n.Resolve(requestCtx(), req(10))
	require.NoError(t, err)
	_, err = n.Resolve(requestCtx(), req(20))
	require.NoError(t, err)
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.PrefetchDropped))

	close(sup.gate)
	n.Close()

	// the neighbours of req(10) were dropped, the latest ones were prefetched
	last := req(20)
	res, ok := n.Cache().Get(last.Key())
	require.True(t, ok)
	live := neighbourKeys(last, res)
	assert.Equal(t, len(live), n.Cache().Len())
	for _, k := range n.Cache().Keys() {
		assert.True(t, live[k])
	}
}

func TestResolveSurvivesCanceledCaller(t *testing.T) {
	sup := &fakeSupplier{gate: make(chan struct{})}
	n := New(sup, testMeta, Options{})
	defer n.Close()
	req := ViewRequest{Series: "temp", Statistics: []core.StatisticKind{core.StatAvg},
		Start: at(0), End: at(1), Nbv: 4, Zoom: core.ZoomSpec{2: core.TokenFactor}, Op: core.OpNext}

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		res *core.ViewResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := n.Resolve(ctx, req)
		done <- result{res, err}
	}()
	require.Eventually(t, func() bool { return sup.waiting.Load() == 1 }, 5*time.Second, time.Millisecond)

	// other waiters share the computation, so the first caller going away must not fail it
	cancel()
	close(sup.gate)
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, at(1), got.res.Start)
	assert.Equal(t, at(2), got.res.End)
}

func TestDownFromSeriesEnd(t *testing.T) {
	meta := fakeMetadata{"temp": {Name: "temp", Period: 60, Start: t0, End: at(24)}}
	n := New(&fakeSupplier{}, meta, Options{})
	defer n.Close()
	ctx := requestCtx()
	zoom := core.ZoomSpec{2: core.TokenFactor}
	stats := []core.StatisticKind{core.StatMin}

	res, err := n.InitialView(ctx, "temp", core.StatMin, 10, zoom)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		res, err = n.NavigateView(ctx, "temp", stats, res.Start, res.End, 10, zoom, core.OpNext)
		require.NoError(t, err)
	}
	assert.Equal(t, win(24, 36), res.Window())

	res, err = n.NavigateView(ctx, "temp", stats, res.Start, res.End, 10, zoom, core.OpDown)
	require.NoError(t, err)
	assert.Equal(t, win(0, 24), res.Window())
}

func TestResolveInvalid(t *testing.T) {
	n := New(&fakeSupplier{}, testMeta, Options{})
	defer n.Close()
	ctx := requestCtx()
	zoom := core.ZoomSpec{2: core.TokenFactor}
	stats := []core.StatisticKind{core.StatMin}

	_, err := n.NavigateView(ctx, "temp", stats, at(0), at(1), 0, zoom, core.OpNext)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))

	_, err = n.NavigateView(ctx, "temp", nil, at(0), at(1), 10, zoom, core.OpNext)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))

	_, err = n.NavigateView(ctx, "temp", stats, at(1), at(0), 10, zoom, core.OpNext)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))

	_, err = n.NavigateView(ctx, "temp", stats, at(0), at(1), 10, zoom, core.OpInit)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))

	_, err = n.NavigateView(ctx, "temp", stats, at(0), at(1), 10, core.ZoomSpec{}, core.OpNext)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))

	_, err = n.NavigateView(ctx, "temp", stats, at(0), at(1), 10, zoom, core.Operation("left"))
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))

	_, err = n.InitialView(ctx, "missing", core.StatMin, 10, zoom)
	assert.Equal(t, core.KindUnknownSeries, core.KindOf(err))
	assert.Equal(t, 0, n.Cache().Len())
}

func TestConcurrentResolve(t *testing.T) {
	sup := &fakeSupplier{}
	n := New(sup, testMeta, Options{})
	defer n.Close()
	zoom := core.ZoomSpec{2: core.TokenFactor}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := n.NavigateView(requestCtx(), "temp", []core.StatisticKind{core.StatMin},
				at(float64(i%2)), at(float64(i%2)+1), 5, zoom, core.OpNext)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, n.Cache().Len(), 5)
}

func TestNavigatorWithStore(t *testing.T) {
	c := store.NewClient("", 2)
	require.NoError(t, c.Initialize(context.Background()))
	defer c.Close()
	obs := make([]store.Observation, 0, 1441)
	for i := 0; i <= 1440; i++ {
		obs = append(obs, store.Observation{Time: t0.Add(time.Duration(i) * time.Minute), Value: float64(i)})
	}
	_, err := c.Load(context.Background(), store.Fixture{
		Series:       []core.SeriesMetadata{{Name: "temp", Period: 60}},
		Observations: map[string][]store.Observation{"temp": obs},
	})
	require.NoError(t, err)

	n := New(supplier.New(c.Metadata(), c.Observations(), c.Catalog()), c.Metadata(), Options{})
	defer n.Close()
	ctx := context.Background()
	zoom := core.ZoomSpec{2: core.TokenFactor}

	res, err := n.InitialView(ctx, "temp", core.StatMin, 10, zoom)
	require.NoError(t, err)
	assert.Equal(t, t0, res.Start)
	assert.Equal(t, at(12), res.End)
	require.Len(t, res.Sets[0].Buckets, 10)
	assert.Equal(t, 72.0, res.Sets[0].Buckets[1].V1)

	// previous lies before the series start and yields no view: four entries remain
	require.Eventually(t, func() bool { return n.Cache().Len() == 4 }, 10*time.Second, 10*time.Millisecond)

	down, err := n.NavigateView(ctx, "temp", []core.StatisticKind{core.StatMin}, res.Start, res.End, 10, zoom, core.OpDown)
	require.NoError(t, err)
	assert.Equal(t, at(24), down.End)

	_, err = n.NavigateView(ctx, "temp", []core.StatisticKind{core.StatMin}, res.Start, res.End, 10, zoom, core.OpPrevious)
	assert.Equal(t, core.KindEmptyResult, core.KindOf(err))
}
