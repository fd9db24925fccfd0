package analytics

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
)

// ChangeListener returns a store.ChangeListener that tracks every committed
// write as an IngestEvent and counts the records on m. Either argument may
// be nil.
func ChangeListener(c *Collector, m *metrics.Metrics) store.ChangeListener {
	return func(_ context.Context, change store.Change) {
		if m != nil {
			m.RecordsIngestedTotal.WithLabelValues(string(change.Kind)).Add(float64(change.Count))
		}
		if c != nil {
			c.Track(IngestEvent{Kind: change.Kind, Count: change.Count, Timestamp: time.Now().UTC()})
		}
	}
}
