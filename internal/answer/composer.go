// Package answer turns a query and its ranked sources into the answer text
// returned to the caller. The templated composer is always available; an
// LLM-backed composer can be layered on top and falls back to the template
// when the provider misbehaves.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
)

// Source is one ranked record as shown to the caller and to composers.
type Source struct {
	Type    record.Kind `json:"type"`
	ID      int64       `json:"id"`
	Score   float64     `json:"score"`
	Title   string      `json:"title,omitempty"`
	Name    string      `json:"name,omitempty"`
	Snippet string      `json:"snippet,omitempty"`
}

// Label is the display handle used in answers.
func (s Source) Label() string {
	return record.Record{Kind: s.Type, ID: s.ID, Title: s.Title, Name: s.Name}.Label()
}

// ErrDegraded is returned, wrapped, alongside a usable answer that came from
// a fallback composer instead of the one asked for. Callers may serve the
// text but should not cache it.
var ErrDegraded = errors.New("answer composed by fallback")

// Composer produces an answer from a query and its ranked sources.
type Composer interface {
	Generate(ctx context.Context, query string, sources []Source) (string, error)
	Name() string
}

const (
	maxSummarySnippet = 300
	closingNote       = "Note: Configure an LLM provider to synthesize richer answers."
	noSourcesLine     = "No similar tickets or documents were found."
)

// Simple is the default composer: it echoes the query and lists the top
// findings with their scores. It never fails.
type Simple struct{}

func (Simple) Name() string { return "simple" }

func (Simple) Generate(_ context.Context, query string, sources []Source) (string, error) {
	return Template(query, sources), nil
}

// Template renders the extractive answer.
func Template(query string, sources []Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	b.WriteString("Top findings (from similar tickets/documents):\n")
	if len(sources) == 0 {
		b.WriteString(noSourcesLine + "\n")
	}
	for i, s := range sources {
		fmt.Fprintf(&b, "%d. %s — score %.2f: %s\n", i+1, s.Label(), s.Score, summarise(s.Snippet))
	}
	b.WriteString(closingNote)
	return b.String()
}

// summarise flattens newlines and truncates to maxSummarySnippet characters.
func summarise(snippet string) string {
	s := strings.ReplaceAll(strings.TrimSpace(snippet), "\n", " ")
	if utf8.RuneCountInString(s) <= maxSummarySnippet {
		return s
	}
	return string([]rune(s)[:maxSummarySnippet]) + "…"
}

// Snippet returns the first n characters of text; n <= 0 keeps all of it.
func Snippet(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
