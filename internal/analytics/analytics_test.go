package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/database"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(QueryEvent{Query: "Payment  Timeout", Returned: 2, TopScore: 0.7, LatencyMs: 10, Composer: "simple"})
	agg.Record(QueryEvent{Query: "payment timeout", Returned: 2, TopScore: 0.7, LatencyMs: 30, CacheHit: true, Composer: "simple"})
	agg.Record(QueryEvent{Query: "zebra", Returned: 2, TopScore: 0, LatencyMs: 20, Composer: "openai"})
	agg.Record(QueryEvent{Query: "broken", Failed: true})
	agg.Record(IngestEvent{Kind: record.KindTicket, Count: 3})
	agg.Record(IngestEvent{Kind: record.KindDocument, Count: 1})
	agg.Record("unknown")

	st := agg.Stats()
	if st.TotalQueries != 4 || st.FailedQueries != 1 {
		t.Errorf("totals = %d/%d", st.TotalQueries, st.FailedQueries)
	}
	if st.CacheHits != 1 || st.CacheMisses != 2 {
		t.Errorf("cache = %d/%d", st.CacheHits, st.CacheMisses)
	}
	if st.ZeroResultCount != 1 || st.LLMAnswers != 1 {
		t.Errorf("zero=%d llm=%d", st.ZeroResultCount, st.LLMAnswers)
	}
	if st.TicketsIngested != 3 || st.DocumentsIngested != 1 {
		t.Errorf("ingested = %d/%d", st.TicketsIngested, st.DocumentsIngested)
	}
	if st.AvgLatencyMs != 20 || st.P50LatencyMs != 20 || st.P99LatencyMs != 30 {
		t.Errorf("latency avg=%v p50=%d p99=%d", st.AvgLatencyMs, st.P50LatencyMs, st.P99LatencyMs)
	}
	if len(st.TopQueries) == 0 || st.TopQueries[0] != (QueryCount{Query: "payment timeout", Count: 2}) {
		t.Errorf("top queries = %v", st.TopQueries)
	}
	if len(st.UnansweredQueries) != 1 || st.UnansweredQueries[0].Query != "zebra" {
		t.Errorf("unanswered = %v", st.UnansweredQueries)
	}
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+50; i++ {
		agg.Record(QueryEvent{Query: "q", Returned: 1, TopScore: 1, LatencyMs: int64(i)})
	}
	agg.mu.RLock()
	n := len(agg.latencies)
	agg.mu.RUnlock()
	if n != maxLatencySamples {
		t.Errorf("latency window = %d", n)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []any
}

func (s *recordingSink) Record(e any) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func TestCollectorDeliversBeforeClose(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 16)
	c.Start(context.Background())
	for i := 0; i < 10; i++ {
		c.Track(QueryEvent{Query: "q"})
	}
	c.Close()
	if len(sink.events) != 10 {
		t.Errorf("delivered %d events, want 10", len(sink.events))
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 2)
	for i := 0; i < 5; i++ {
		c.Track(QueryEvent{})
	}
	c.Start(context.Background())
	c.Close()
	if len(sink.events) != 2 {
		t.Errorf("delivered %d events, want 2", len(sink.events))
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewSnapshotStore(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		store.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if err := store.Save(ctx, AggregatedStats{TotalQueries: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	snaps, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 || snaps[0].Stats.TotalQueries != 3 || snaps[1].Stats.TotalQueries != 2 {
		t.Fatalf("unexpected snapshots %+v", snaps)
	}
	if !snaps[0].CapturedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("captured_at = %v", snaps[0].CapturedAt)
	}
}

func TestHandlers(t *testing.T) {
	agg := NewAggregator()
	agg.Record(QueryEvent{Query: "vpn", Returned: 1, TopScore: 0.5, LatencyMs: 4})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var st AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.TotalQueries != 1 {
		t.Errorf("total = %d", st.TotalQueries)
	}

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("history status = %d", rec.Code)
	}
}
