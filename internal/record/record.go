// Package record defines the ticket and document types stored by the service
// and the flattened Record view the similarity index is built from.
package record

import (
	"strconv"
	"time"
)

// Kind distinguishes the two record tables.
type Kind string

const (
	KindTicket   Kind = "ticket"
	KindDocument Kind = "document"
)

// Ticket is a support ticket as persisted in the record store.
type Ticket struct {
	ID         int64          `json:"id"`
	ExternalID *string        `json:"external_id"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"-"`
}

// Document is a free-form knowledge document.
type Document struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"-"`
}

// Record is one unit of indexable content. Title is set for tickets and
// Name for documents.
type Record struct {
	Kind  Kind
	ID    int64
	Text  string
	Title string
	Name  string
}

func (t Ticket) Record() Record {
	return Record{
		Kind:  KindTicket,
		ID:    t.ID,
		Text:  t.Title + "\n" + t.Body,
		Title: t.Title,
	}
}

func (d Document) Record() Record {
	return Record{
		Kind: KindDocument,
		ID:   d.ID,
		Text: d.Content,
		Name: d.Name,
	}
}

// Label is the human-readable handle for a record: its title, its name, or
// "<kind> <id>" when neither is set.
func (r Record) Label() string {
	switch {
	case r.Title != "":
		return r.Title
	case r.Name != "":
		return r.Name
	default:
		return string(r.Kind) + " " + strconv.FormatInt(r.ID, 10)
	}
}
