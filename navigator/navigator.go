package navigator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/gigapi/gigapi-zoomview/metrics"
	"golang.org/x/sync/singleflight"
)

// BucketSupplier computes Nbv buckets per statistic for a window
type BucketSupplier interface {
	GetBuckets(ctx context.Context, series string, stats []core.StatisticKind,
		start, end time.Time, nbv int) ([]core.BucketSet, error)
}

// ViewRequest identifies a view: the displayed window and the operation applied to it
type ViewRequest struct {
	Series     string
	Statistics []core.StatisticKind
	Start      time.Time
	End        time.Time
	Nbv        int
	Zoom       core.ZoomSpec
	Op         core.Operation
}

// Key hashes the canonical form of the request
func (r ViewRequest) Key() uint64 {
	stats := make([]string, len(r.Statistics))
	for i, s := range r.Statistics {
		stats[i] = string(s)
	}
	return xxhash.Sum64String(strings.Join([]string{
		r.Series,
		strings.Join(stats, ","),
		strconv.FormatInt(r.Start.Unix(), 10),
		strconv.FormatInt(r.End.Unix(), 10),
		strconv.Itoa(r.Nbv),
		r.Zoom.String(),
		string(r.Op),
	}, "|"))
}

func (r ViewRequest) validate() error {
	if r.Nbv <= 0 {
		return core.ErrInvalidInput.New(fmt.Sprintf("Nbv %d must be positive", r.Nbv))
	}
	if len(r.Statistics) == 0 {
		return core.ErrInvalidInput.New("at least one statistic is required")
	}
	if err := r.Zoom.Validate(); err != nil {
		return err
	}
	if _, err := core.ParseOperation(string(r.Op)); err != nil {
		return err
	}
	_, err := core.NewWindow(r.Start, r.End)
	return err
}

// neighbour is the request reaching the view next to a resolved window
func (r ViewRequest) neighbour(w core.Window, op core.Operation) ViewRequest {
	n := r
	n.Start, n.End, n.Op = w.Start, w.End, op
	return n
}

var neighbourOps = []core.Operation{core.OpNext, core.OpPrevious, core.OpUp, core.OpDown}

type Options struct {
	// QueueSize bounds the pending prefetch tasks; a full queue drops its oldest task
	QueueSize int
	// Timeout bounds every view computation
	Timeout time.Duration
}

// Navigator resolves views and keeps the cache warm around the last one. It owns one prefetch
// worker, stopped by Close.
type Navigator struct {
	Supplier BucketSupplier
	Metadata core.SeriesMetadataStore

	cache   *Cache
	group   singleflight.Group
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	tasks  chan []ViewRequest
	wg     sync.WaitGroup
}

// New creates a Navigator and starts its prefetch worker
func New(supplier BucketSupplier, metadata core.SeriesMetadataStore, opts Options) *Navigator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	n := &Navigator{
		Supplier: supplier,
		Metadata: metadata,
		cache:    NewCache(),
		timeout:  opts.Timeout,
		tasks:    make(chan []ViewRequest, opts.QueueSize),
	}
	n.wg.Add(1)
	go n.prefetch()
	return n
}

// Cache exposes the neighbour cache
func (n *Navigator) Cache() *Cache {
	return n.cache
}

// InitialView resolves the first view of a series, seeded at the series start
func (n *Navigator) InitialView(ctx context.Context, series string, stat core.StatisticKind, nbv int,
	zoom core.ZoomSpec) (*core.ViewResult, error) {
	if err := zoom.Validate(); err != nil {
		return nil, err
	}
	meta, err := n.Metadata.Get(ctx, series)
	if err != nil {
		return nil, err
	}
	seed, err := InitialWindow(meta, zoom)
	if err != nil {
		return nil, err
	}
	return n.Resolve(ctx, ViewRequest{
		Series:     series,
		Statistics: []core.StatisticKind{stat},
		Start:      seed.Start,
		End:        seed.End,
		Nbv:        nbv,
		Zoom:       zoom,
		Op:         core.OpInit,
	})
}

// NavigateView applies up, down, next or previous to the displayed window
func (n *Navigator) NavigateView(ctx context.Context, series string, stats []core.StatisticKind,
	start, end time.Time, nbv int, zoom core.ZoomSpec, op core.Operation) (*core.ViewResult, error) {
	if op == core.OpInit {
		return nil, core.ErrInvalidInput.New("init is not a navigation operation")
	}
	return n.Resolve(ctx, ViewRequest{
		Series:     series,
		Statistics: stats,
		Start:      start,
		End:        end,
		Nbv:        nbv,
		Zoom:       zoom,
		Op:         op,
	})
}

// Resolve returns the view of a request. A cached view is returned as is. Otherwise it is
// computed, the cache is narrowed to it and its four neighbours, and the neighbours are queued
// for the prefetch worker.
func (n *Navigator) Resolve(ctx context.Context, req ViewRequest) (*core.ViewResult, error) {
	started := time.Now()
	defer func() { metrics.ResolveDuration.Observe(time.Since(started).Seconds()) }()

	if err := req.validate(); err != nil {
		return nil, err
	}
	key := req.Key()
	if res, ok := n.cache.Get(key); ok {
		metrics.CacheHits.Inc()
		core.Debugf(ctx, "Cache hit for %s %s %s", req.Series, req.Op, res.Window())
		return res, nil
	}
	metrics.CacheMisses.Inc()

	// the computation is shared by every waiter, so it must outlive the caller that started it
	v, err, _ := n.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		return n.compute(shared, req)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*core.ViewResult)

	resolved := res.Window()
	neighbours := make([]ViewRequest, 0, len(neighbourOps))
	keys := make([]uint64, 0, len(neighbourOps))
	for _, op := range neighbourOps {
		nb := req.neighbour(resolved, op)
		neighbours = append(neighbours, nb)
		keys = append(keys, nb.Key())
	}
	if evicted := n.cache.Settle(key, res, keys); evicted > 0 {
		core.Debugf(ctx, "Evicted %d views", evicted)
	}
	n.submit(ctx, neighbours)
	return res, nil
}

func (n *Navigator) compute(ctx context.Context, req ViewRequest) (*core.ViewResult, error) {
	meta, err := n.Metadata.Get(ctx, req.Series)
	if err != nil {
		return nil, err
	}
	current, err := core.NewWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	w, err := Apply(req.Op, current, req.Zoom, meta.Bounds())
	if err != nil {
		return nil, err
	}
	sets, err := n.Supplier.GetBuckets(ctx, req.Series, req.Statistics, w.Start, w.End, req.Nbv)
	if err != nil {
		return nil, err
	}
	return &core.ViewResult{Series: req.Series, Start: w.Start, End: w.End, Sets: sets}, nil
}

func (n *Navigator) submit(ctx context.Context, task []ViewRequest) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	for {
		select {
		case n.tasks <- task:
			metrics.PrefetchQueue.Set(float64(len(n.tasks)))
			return
		default:
		}
		// the oldest task surrounds a view the user already left
		select {
		case old := <-n.tasks:
			metrics.PrefetchDropped.Inc()
			core.Warnf(ctx, "Prefetch queue is full, dropping neighbours of %s %s", old[0].Series,
				core.Window{Start: old[0].Start, End: old[0].End})
		default:
		}
	}
}

// prefetch computes queued neighbour views one at a time, in submission order
func (n *Navigator) prefetch() {
	defer n.wg.Done()
	ctx := core.WithDefaultLogger(context.Background(), "prefetch")
	core.Debugf(ctx, "Prefetch worker started")
	for task := range n.tasks {
		metrics.PrefetchQueue.Set(float64(len(n.tasks)))
		for _, req := range task {
			n.prefetchOne(ctx, req)
		}
	}
	core.Debugf(ctx, "Prefetch worker stopped")
}

func (n *Navigator) prefetchOne(ctx context.Context, req ViewRequest) {
	key := req.Key()
	if n.cache.Has(key) || !n.cache.IsLive(key) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	res, err := n.compute(ctx, req)
	if err != nil {
		metrics.PrefetchErrors.Inc()
		core.Debugf(ctx, "Prefetch of %s %s failed: %v", req.Series, req.Op, err)
		return
	}
	if !n.cache.PutIfLive(key, res) {
		metrics.PrefetchStale.Inc()
		return
	}
	metrics.PrefetchComputed.Inc()
}

// Close stops the prefetch worker once the queued tasks are done
func (n *Navigator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.tasks)
	n.mu.Unlock()
	n.wg.Wait()
}
