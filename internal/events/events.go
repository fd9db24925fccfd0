// Package events propagates record-store changes between replicas. Each
// replica publishes a RecordChanged event after a committed write and
// consumes everyone else's events to invalidate its own similarity index, so
// a query on any replica sees writes made through any other.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
)

// RecordChanged is the message published for each committed write batch.
type RecordChanged struct {
	Origin    string      `json:"origin"`
	Kind      record.Kind `json:"kind"`
	IDs       []int64     `json:"ids"`
	Count     int         `json:"count"`
	ChangedAt time.Time   `json:"changed_at"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher forwards store changes to the record-change topic.
type Publisher struct {
	producer EventPublisher
	origin   string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewPublisher creates a Publisher tagging events with origin, the
// process's instance id.
func NewPublisher(producer EventPublisher, origin string, m *metrics.Metrics) *Publisher {
	return &Publisher{
		producer: producer,
		origin:   origin,
		metrics:  m,
		logger:   slog.Default().With("component", "record-events", "origin", origin),
	}
}

// OnChange is a store.ChangeListener. Publish failures are logged and do not
// fail the write; other replicas then serve from a stale snapshot until
// their next invalidation.
func (p *Publisher) OnChange(ctx context.Context, change store.Change) {
	event := kafka.Event{
		Key: string(change.Kind),
		Value: RecordChanged{
			Origin:    p.origin,
			Kind:      change.Kind,
			IDs:       change.IDs,
			Count:     change.Count,
			ChangedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.count("failed")
		p.logger.Error("failed to publish record change",
			"kind", change.Kind,
			"count", change.Count,
			"error", err,
		)
		return
	}
	p.count("published")
}

func (p *Publisher) count(direction string) {
	if p.metrics != nil {
		p.metrics.RecordEventsTotal.WithLabelValues(direction).Inc()
	}
}

// Invalidator is satisfied by *index.Index.
type Invalidator interface {
	Invalidate()
}

// Handler returns the kafka.MessageHandler that invalidates idx for changes
// made by other replicas. Undecodable messages are logged and skipped so
// they do not block the partition.
func Handler(idx Invalidator, origin string, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "record-events", "origin", origin)
	count := func(direction string) {
		if m != nil {
			m.RecordEventsTotal.WithLabelValues(direction).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RecordChanged](value)
		if err != nil {
			count("failed")
			logger.Error("failed to decode record change", "key", string(key), "error", err)
			return nil
		}
		if event.Origin == origin {
			count("skipped")
			return nil
		}
		idx.Invalidate()
		count("consumed")
		logger.Debug("index invalidated by remote change",
			"from", event.Origin,
			"kind", event.Kind,
			"count", event.Count,
		)
		return nil
	}
}
