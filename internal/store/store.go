// Package store persists tickets and documents and serves the full-scan read
// the similarity index is rebuilt from. Every successful write notifies the
// registered change listeners exactly once per call, so a batch insert of N
// rows produces one notification.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// NewTicket is the input for creating a ticket.
type NewTicket struct {
	ExternalID *string
	Title      string
	Body       string
	Metadata   map[string]any
}

// NewDocument is the input for creating a document.
type NewDocument struct {
	Name     string
	Content  string
	Metadata map[string]any
}

// Change describes a committed write.
type Change struct {
	Kind  record.Kind
	IDs   []int64
	Count int
}

// ChangeListener is called after a write commits.
type ChangeListener func(ctx context.Context, change Change)

type Store struct {
	db        *database.Client
	mu        sync.RWMutex
	listeners []ChangeListener
	now       func() time.Time
	logger    *slog.Logger
}

func New(db *database.Client) *Store {
	return &Store{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "record-store"),
	}
}

// OnChange registers a listener for committed writes.
func (s *Store) OnChange(l ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(ctx context.Context, change Change) {
	s.mu.RLock()
	listeners := make([]ChangeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, change)
	}
}

func (s *Store) CreateTicket(ctx context.Context, in NewTicket) (*record.Ticket, error) {
	tickets, err := s.CreateTickets(ctx, []NewTicket{in})
	if err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

// CreateTickets inserts all tickets in one transaction.
func (s *Store) CreateTickets(ctx context.Context, in []NewTicket) ([]record.Ticket, error) {
	if len(in) == 0 {
		return nil, nil
	}
	created := make([]record.Ticket, 0, len(in))
	query := s.db.Rebind(`INSERT INTO tickets (external_id, title, body, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range in {
			meta, err := encodeMetadata(t.Metadata)
			if err != nil {
				return err
			}
			now := s.now()
			var id int64
			if err := stmt.QueryRowContext(ctx, nullableString(t.ExternalID), t.Title, t.Body, meta, now).Scan(&id); err != nil {
				return err
			}
			created = append(created, record.Ticket{
				ID:         id,
				ExternalID: t.ExternalID,
				Title:      t.Title,
				Body:       t.Body,
				Metadata:   emptyToNil(t.Metadata),
				CreatedAt:  now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("inserting tickets", err)
	}
	s.logger.Debug("tickets created", "count", len(created))
	s.notify(ctx, Change{Kind: record.KindTicket, IDs: ticketIDs(created), Count: len(created)})
	return created, nil
}

func (s *Store) CreateDocument(ctx context.Context, in NewDocument) (*record.Document, error) {
	docs, err := s.CreateDocuments(ctx, []NewDocument{in})
	if err != nil {
		return nil, err
	}
	return &docs[0], nil
}

// CreateDocuments inserts all documents in one transaction.
func (s *Store) CreateDocuments(ctx context.Context, in []NewDocument) ([]record.Document, error) {
	if len(in) == 0 {
		return nil, nil
	}
	created := make([]record.Document, 0, len(in))
	query := s.db.Rebind(`INSERT INTO documents (name, content, metadata_json, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`)
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range in {
			meta, err := encodeMetadata(d.Metadata)
			if err != nil {
				return err
			}
			now := s.now()
			var id int64
			if err := stmt.QueryRowContext(ctx, d.Name, d.Content, meta, now).Scan(&id); err != nil {
				return err
			}
			created = append(created, record.Document{
				ID:        id,
				Name:      d.Name,
				Content:   d.Content,
				Metadata:  emptyToNil(d.Metadata),
				CreatedAt: now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("inserting documents", err)
	}
	s.logger.Debug("documents created", "count", len(created))
	s.notify(ctx, Change{Kind: record.KindDocument, IDs: documentIDs(created), Count: len(created)})
	return created, nil
}

func (s *Store) GetTicket(ctx context.Context, id int64) (*record.Ticket, error) {
	row := s.db.DB.QueryRowContext(ctx, s.db.Rebind(
		`SELECT id, external_id, title, body, metadata_json, created_at FROM tickets WHERE id = ?`), id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, 404, "ticket %d not found", id)
	}
	if err != nil {
		return nil, storeErr("loading ticket", err)
	}
	return t, nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (*record.Document, error) {
	row := s.db.DB.QueryRowContext(ctx, s.db.Rebind(
		`SELECT id, name, content, metadata_json, created_at FROM documents WHERE id = ?`), id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, 404, "document %d not found", id)
	}
	if err != nil {
		return nil, storeErr("loading document", err)
	}
	return d, nil
}

// ListRecords returns every ticket (by id) followed by every document (by
// id). The two tables are scanned concurrently.
func (s *Store) ListRecords(ctx context.Context) ([]record.Record, error) {
	var tickets, docs []record.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickets, err = s.listTickets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = s.listDocuments(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(tickets)+len(docs))
	out = append(out, tickets...)
	return append(out, docs...), nil
}

func (s *Store) listTickets(ctx context.Context) ([]record.Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, external_id, title, body, metadata_json, created_at FROM tickets ORDER BY id`)
	if err != nil {
		return nil, storeErr("listing tickets", err)
	}
	defer rows.Close()
	var out []record.Record
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, storeErr("scanning ticket row", err)
		}
		out = append(out, t.Record())
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("listing tickets", err)
	}
	return out, nil
}

func (s *Store) listDocuments(ctx context.Context) ([]record.Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, content, metadata_json, created_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, storeErr("listing documents", err)
	}
	defer rows.Close()
	var out []record.Record
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, storeErr("scanning document row", err)
		}
		out = append(out, d.Record())
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("listing documents", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (*record.Ticket, error) {
	var (
		t    record.Ticket
		ext  sql.NullString
		meta sql.NullString
	)
	if err := row.Scan(&t.ID, &ext, &t.Title, &t.Body, &meta, &t.CreatedAt); err != nil {
		return nil, err
	}
	if ext.Valid {
		t.ExternalID = &ext.String
	}
	m, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	t.Metadata = m
	return &t, nil
}

func scanDocument(row scanner) (*record.Document, error) {
	var (
		d    record.Document
		meta sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Content, &meta, &d.CreatedAt); err != nil {
		return nil, err
	}
	m, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	d.Metadata = m
	return &d, nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, apperrors.Invalid("metadata is not serialisable: %v", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return m, nil
}

func emptyToNil(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// storeErr keeps input errors as they are and tags everything else as a
// store failure.
func storeErr(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStoreUnavailable, err)
}

func ticketIDs(ts []record.Ticket) []int64 {
	ids := make([]int64, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

func documentIDs(ds []record.Document) []int64 {
	ids := make([]int64, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return ids
}
