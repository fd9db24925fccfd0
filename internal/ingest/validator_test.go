package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
)

func TestValidateTicket(t *testing.T) {
	tests := []struct {
		name       string
		in         store.NewTicket
		missing    []string
		wantFields []string
	}{
		{"valid", store.NewTicket{Title: "t", Body: "b"}, nil, nil},
		{"empty strings accepted", store.NewTicket{Title: "", Body: "  "}, nil, nil},
		{"missing both", store.NewTicket{}, []string{"title", "body"}, []string{"title", "body"}},
		{"long title", store.NewTicket{Title: strings.Repeat("a", maxTitleLength+1), Body: "b"}, nil, []string{"title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTicket(tt.in, tt.missing...)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			for _, f := range tt.wantFields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	if err := ValidateDocument(store.NewDocument{Name: "faq.txt", Content: "text"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateDocument(store.NewDocument{}); err != nil {
		t.Fatalf("empty name and content should be accepted: %v", err)
	}
	err := ValidateDocument(store.NewDocument{}, "name", "content")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Error() != "content: content is required; name: name is required" {
		t.Errorf("unexpected message %q", verr.Error())
	}
}
