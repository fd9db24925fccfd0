package store

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func strPtr(s string) *string { return &s }

func TestCreateAndGetTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTicket(ctx, NewTicket{
		ExternalID: strPtr("T-1"),
		Title:      "Payment fails",
		Body:       "Timeout on checkout",
		Metadata:   map[string]any{"priority": "high"},
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected generated id")
	}

	got, err := s.GetTicket(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Title != "Payment fails" || got.Body != "Timeout on checkout" {
		t.Errorf("unexpected ticket %+v", got)
	}
	if got.ExternalID == nil || *got.ExternalID != "T-1" {
		t.Errorf("external id not round-tripped: %v", got.ExternalID)
	}
	if got.Metadata["priority"] != "high" {
		t.Errorf("metadata not round-tripped: %v", got.Metadata)
	}
}

func TestGetMissingRecord(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), 42)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecordsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateDocument(ctx, NewDocument{Name: "faq.txt", Content: "returns"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateTickets(ctx, []NewTicket{
		{Title: "first", Body: "a"},
		{Title: "second", Body: "b"},
	}); err != nil {
		t.Fatal(err)
	}

	recs, err := s.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	want := []struct {
		kind record.Kind
		text string
	}{
		{record.KindTicket, "first\na"},
		{record.KindTicket, "second\nb"},
		{record.KindDocument, "returns"},
	}
	for i, w := range want {
		if recs[i].Kind != w.kind || recs[i].Text != w.text {
			t.Errorf("record %d = %+v, want kind=%s text=%q", i, recs[i], w.kind, w.text)
		}
	}
	if recs[2].Name != "faq.txt" {
		t.Errorf("document name = %q", recs[2].Name)
	}
}

func TestBatchNotifiesOnce(t *testing.T) {
	s := newTestStore(t)
	var changes []Change
	s.OnChange(func(_ context.Context, c Change) { changes = append(changes, c) })

	_, err := s.CreateTickets(context.Background(), []NewTicket{
		{Title: "a", Body: "1"}, {Title: "b", Body: "2"}, {Title: "c", Body: "3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected one notification, got %d", len(changes))
	}
	if changes[0].Count != 3 || changes[0].Kind != record.KindTicket || len(changes[0].IDs) != 3 {
		t.Errorf("unexpected change %+v", changes[0])
	}
}

func TestEmptyBatchIsNoop(t *testing.T) {
	s := newTestStore(t)
	called := false
	s.OnChange(func(context.Context, Change) { called = true })
	docs, err := s.CreateDocuments(context.Background(), nil)
	if err != nil || docs != nil {
		t.Fatalf("expected nil, nil; got %v, %v", docs, err)
	}
	if called {
		t.Error("listener called for empty batch")
	}
}

func TestListFailsWhenClosed(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	s := New(db)
	db.Close()
	_, err = s.ListRecords(context.Background())
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
