package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/kafka"
)

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, e kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type countingIndex struct{ n int }

func (c *countingIndex) Invalidate() { c.n++ }

func TestPublisherEmitsOneEventPerChange(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewPublisher(prod, "replica-a", nil)
	pub.OnChange(context.Background(), store.Change{Kind: record.KindTicket, IDs: []int64{4, 5}, Count: 2})

	if len(prod.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(prod.events))
	}
	ev := prod.events[0]
	if ev.Key != "ticket" {
		t.Errorf("key = %q", ev.Key)
	}
	rc, ok := ev.Value.(RecordChanged)
	if !ok {
		t.Fatalf("value type %T", ev.Value)
	}
	if rc.Origin != "replica-a" || rc.Count != 2 || len(rc.IDs) != 2 {
		t.Errorf("unexpected event %+v", rc)
	}
}

func TestPublisherSwallowsErrors(t *testing.T) {
	pub := NewPublisher(&fakeProducer{err: errors.New("broker down")}, "a", nil)
	pub.OnChange(context.Background(), store.Change{Kind: record.KindDocument, Count: 1})
}

func TestHandlerInvalidatesForRemoteChanges(t *testing.T) {
	idx := &countingIndex{}
	h := Handler(idx, "replica-a", nil)
	ctx := context.Background()

	encode := func(origin string) []byte {
		b, err := json.Marshal(RecordChanged{Origin: origin, Kind: record.KindTicket, Count: 1})
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	if err := h(ctx, []byte("ticket"), encode("replica-b")); err != nil {
		t.Fatal(err)
	}
	if err := h(ctx, []byte("ticket"), encode("replica-a")); err != nil {
		t.Fatal(err)
	}
	if err := h(ctx, nil, []byte("not json")); err != nil {
		t.Fatalf("bad messages must not block the partition: %v", err)
	}
	if idx.n != 1 {
		t.Errorf("expected exactly one invalidation, got %d", idx.n)
	}
}
