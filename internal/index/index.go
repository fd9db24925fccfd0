// Package index implements the in-memory TF-IDF similarity index over every
// ticket and document in the record store.
//
// The index is lazily rebuilt. Invalidate only bumps a version counter; the
// next query that sees a snapshot older than the current version rebuilds it
// from a full store scan before scoring. Rebuilds are serialised, snapshots
// are published atomically, and queries against a fresh snapshot take no
// lock at all.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
)

// Source lists every indexable record: tickets ordered by id, then
// documents ordered by id.
type Source interface {
	ListRecords(ctx context.Context) ([]record.Record, error)
}

type Index struct {
	source  Source
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	// version is bumped by Invalidate. A snapshot is fresh only while its
	// version equals this value.
	version atomic.Uint64
	snap    atomic.Pointer[Snapshot]

	// mu serialises rebuilds.
	mu           sync.Mutex
	rebuilds     atomic.Uint64
	failures     atomic.Uint64
	invalidation atomic.Uint64
}

// Option configures an Index.
type Option func(*Index)

// WithMetrics records rebuild and snapshot metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Index) { ix.metrics = m }
}

func New(source Source, opts ...Option) *Index {
	ix := &Index{
		source: source,
		logger: slog.Default().With("component", "similarity-index"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Invalidate marks the current snapshot stale. It never blocks on a rebuild
// and may be called any number of times; the next query rebuilds once.
func (ix *Index) Invalidate() {
	ix.version.Add(1)
	ix.invalidation.Add(1)
	if ix.metrics != nil {
		ix.metrics.IndexInvalidations.Inc()
	}
}

// Stale reports whether the next query will rebuild.
func (ix *Index) Stale() bool {
	snap := ix.snap.Load()
	return snap == nil || snap.version != ix.version.Load()
}

// Snapshot returns a snapshot built after the most recent Invalidate that
// returned before this call, rebuilding from the store if needed. A store
// error is returned wrapped and the previous snapshot stays published.
func (ix *Index) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := ix.snap.Load(); snap != nil && snap.version == ix.version.Load() {
		return snap, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Another caller may have finished a rebuild while we waited.
	v := ix.version.Load()
	if snap := ix.snap.Load(); snap != nil && snap.version == v {
		return snap, nil
	}
	return ix.rebuild(ctx, v)
}

// rebuild must be called with mu held. v is captured before the store is
// read, so an Invalidate racing with the scan leaves the new snapshot stale.
func (ix *Index) rebuild(ctx context.Context, v uint64) (*Snapshot, error) {
	start := ix.now()
	records, err := ix.source.ListRecords(ctx)
	if err != nil {
		ix.failures.Add(1)
		if ix.metrics != nil {
			ix.metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		}
		ix.logger.Error("index rebuild failed", "error", err)
		return nil, fmt.Errorf("rebuilding index: %w", err)
	}

	gen := ix.rebuilds.Add(1)
	snap := buildSnapshot(records, gen, v, ix.now())
	ix.snap.Store(snap)

	elapsed := ix.now().Sub(start)
	if ix.metrics != nil {
		ix.metrics.IndexRebuildsTotal.WithLabelValues("success").Inc()
		ix.metrics.IndexRebuildDuration.Observe(elapsed.Seconds())
		ix.metrics.SnapshotRecords.Set(float64(snap.Len()))
		ix.metrics.SnapshotTerms.Set(float64(snap.Terms()))
	}
	ix.logger.Info("index rebuilt",
		"generation", gen,
		"records", snap.Len(),
		"terms", snap.Terms(),
		"duration", elapsed,
	)
	return snap, nil
}

// Query ranks every record against text and returns the best topK.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Search(text, topK), nil
}

// Stats describes the index for operators.
type Stats struct {
	Generation    uint64    `json:"generation"`
	Fingerprint   string    `json:"fingerprint"`
	Records       int       `json:"records"`
	Terms         int       `json:"terms"`
	Stale         bool      `json:"stale"`
	Rebuilds      uint64    `json:"rebuilds"`
	Failures      uint64    `json:"rebuild_failures"`
	Invalidations uint64    `json:"invalidations"`
	BuiltAt       time.Time `json:"built_at"`
}

func (ix *Index) Stats() Stats {
	st := Stats{
		Stale:         ix.Stale(),
		Rebuilds:      ix.rebuilds.Load(),
		Failures:      ix.failures.Load(),
		Invalidations: ix.invalidation.Load(),
	}
	if snap := ix.snap.Load(); snap != nil {
		st.Generation = snap.generation
		st.Fingerprint = snap.fingerprint
		st.Records = snap.Len()
		st.Terms = snap.Terms()
		st.BuiltAt = snap.builtAt
	}
	return st
}
