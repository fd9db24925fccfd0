package ingest

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/errors"
)

const (
	maxTitleLength      = 512
	maxNameLength       = 512
	maxExternalIDLength = 128
	maxBodyLength       = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Unwrap reports ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateTicket checks a ticket submitted directly. Empty strings are
// accepted; fields named in missing were absent from the request and are
// reported as required.
func ValidateTicket(t store.NewTicket, missing ...string) error {
	errs := requireFields(missing)
	checkTicketLengths(t, errs)
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateDocument checks a document submitted directly, with the same
// treatment of empty and missing fields as ValidateTicket.
func ValidateDocument(d store.NewDocument, missing ...string) error {
	errs := requireFields(missing)
	if _, ok := errs["name"]; !ok && utf8.RuneCountInString(d.Name) > maxNameLength {
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	}
	if _, ok := errs["content"]; !ok && len(d.Content) > maxBodyLength {
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", maxBodyLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func requireFields(missing []string) map[string]string {
	errs := make(map[string]string, len(missing))
	for _, f := range missing {
		errs[f] = f + " is required"
	}
	return errs
}

// validateUploaded applies only the length limits; uploaded rows may leave
// fields blank.
func validateUploaded(row int, t store.NewTicket) error {
	errs := make(map[string]string)
	checkTicketLengths(t, errs)
	if len(errs) == 0 {
		return nil
	}
	prefixed := make(map[string]string, len(errs))
	for k, v := range errs {
		prefixed[fmt.Sprintf("tickets[%d].%s", row, k)] = v
	}
	return &ValidationError{Fields: prefixed}
}

func checkTicketLengths(t store.NewTicket, errs map[string]string) {
	if _, ok := errs["title"]; !ok && utf8.RuneCountInString(t.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if _, ok := errs["body"]; !ok && len(t.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	}
	if t.ExternalID != nil && utf8.RuneCountInString(*t.ExternalID) > maxExternalIDLength {
		errs["external_id"] = fmt.Sprintf("external_id must be at most %d characters", maxExternalIDLength)
	}
}
