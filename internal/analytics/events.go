// Package analytics aggregates query and ingest activity in process. Events
// are tracked asynchronously through a buffered Collector, folded into an
// Aggregator, served at /api/v1/analytics, and periodically persisted as
// snapshots in the record store's database.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
)

// QueryEvent describes one answered query.
type QueryEvent struct {
	Query     string    `json:"query"`
	TopK      int       `json:"top_k"`
	Returned  int       `json:"returned"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Composer  string    `json:"composer"`
	Failed    bool      `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IngestEvent describes one committed write batch.
type IngestEvent struct {
	Kind      record.Kind `json:"kind"`
	Count     int         `json:"count"`
	Timestamp time.Time   `json:"timestamp"`
}
