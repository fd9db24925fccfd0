// Package ingest turns uploaded bytes into records ready for the store:
// plain text documents, and tickets from JSON or CSV files.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/errors"
)

// Recognised ticket fields, in fallback order.
var (
	externalIDKeys = []string{"external_id", "id"}
	titleKeys      = []string{"title", "subject"}
	bodyKeys       = []string{"body", "description"}
)

var knownColumns = map[string]struct{}{
	"external_id": {}, "id": {},
	"title": {}, "subject": {},
	"body": {}, "description": {},
}

// ParseText decodes an uploaded file as UTF-8, dropping invalid bytes.
func ParseText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

// ParseTicketFile dispatches on the file extension: .json or .csv.
func ParseTicketFile(filename string, data []byte) ([]store.NewTicket, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return ParseJSONTickets(data)
	case ".csv":
		return ParseCSVTickets(data)
	default:
		return nil, apperrors.New(apperrors.ErrUnsupportedFormat, http.StatusBadRequest,
			"Unsupported file format; use .json or .csv")
	}
}

// ParseJSONTickets accepts a single ticket object or an array of them.
func ParseJSONTickets(data []byte) ([]store.NewTicket, error) {
	dec := json.NewDecoder(strings.NewReader(ParseText(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, apperrors.Invalid("malformed JSON: %v", err)
	}
	if dec.More() {
		return nil, apperrors.Invalid("malformed JSON: trailing data after value")
	}

	var items []any
	switch v := raw.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	default:
		return nil, apperrors.Invalid("JSON upload must be an object or an array of objects")
	}

	tickets := make([]store.NewTicket, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, apperrors.Invalid("ticket %d is not a JSON object", i)
		}
		t := store.NewTicket{
			Title: firstValue(obj, titleKeys),
			Body:  firstValue(obj, bodyKeys),
		}
		if ext := firstValue(obj, externalIDKeys); ext != "" {
			t.ExternalID = &ext
		}
		if meta, ok := obj["metadata"].(map[string]any); ok && len(meta) > 0 {
			t.Metadata = meta
		}
		if err := validateUploaded(i, t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// ParseCSVTickets reads a header row and one ticket per following row.
// Columns other than the recognised ticket fields are kept as metadata.
func ParseCSVTickets(data []byte) ([]store.NewTicket, error) {
	r := csv.NewReader(strings.NewReader(ParseText(data)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []store.NewTicket{}, nil
	}
	if err != nil {
		return nil, apperrors.Invalid("malformed CSV header: %v", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var tickets []store.NewTicket
	for row := 0; ; row++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Invalid("malformed CSV: %v", err)
		}
		values := make(map[string]any, len(header))
		meta := make(map[string]any)
		for i, col := range header {
			if i >= len(fields) {
				break
			}
			values[col] = fields[i]
			if _, known := knownColumns[col]; !known {
				meta[col] = fields[i]
			}
		}
		t := store.NewTicket{
			Title: firstValue(values, titleKeys),
			Body:  firstValue(values, bodyKeys),
		}
		if ext := firstValue(values, externalIDKeys); ext != "" {
			t.ExternalID = &ext
		}
		if len(meta) > 0 {
			t.Metadata = meta
		}
		if err := validateUploaded(row, t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if tickets == nil {
		tickets = []store.NewTicket{}
	}
	return tickets, nil
}

// firstValue returns the first non-empty string or number found under keys.
func firstValue(obj map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
