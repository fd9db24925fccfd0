package ingest

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/errors"
)

func TestParseCSVExtraColumnsBecomeMetadata(t *testing.T) {
	data := []byte("external_id,title,body,extra_field\nT-9,Login loop,Redirects forever,vip\n")
	tickets, err := ParseCSVTickets(data)
	if err != nil {
		t.Fatalf("ParseCSVTickets: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(tickets))
	}
	got := tickets[0]
	if got.ExternalID == nil || *got.ExternalID != "T-9" {
		t.Errorf("external id = %v", got.ExternalID)
	}
	if got.Title != "Login loop" || got.Body != "Redirects forever" {
		t.Errorf("unexpected ticket %+v", got)
	}
	want := map[string]any{"extra_field": "vip"}
	if !reflect.DeepEqual(got.Metadata, want) {
		t.Errorf("metadata = %v, want %v", got.Metadata, want)
	}
}

func TestParseCSVFallbacksAndNoMetadata(t *testing.T) {
	data := []byte("id,subject,description\n7,Refund,Card charged twice\n8,,\n")
	tickets, err := ParseCSVTickets(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(tickets))
	}
	if tickets[0].Title != "Refund" || tickets[0].Body != "Card charged twice" || *tickets[0].ExternalID != "7" {
		t.Errorf("fallback columns not applied: %+v", tickets[0])
	}
	if tickets[0].Metadata != nil {
		t.Errorf("expected nil metadata, got %v", tickets[0].Metadata)
	}
	if tickets[1].Title != "" || tickets[1].Body != "" {
		t.Errorf("blank row should yield empty fields: %+v", tickets[1])
	}
}

func TestParseCSVEmptyAndMalformed(t *testing.T) {
	tickets, err := ParseCSVTickets(nil)
	if err != nil || len(tickets) != 0 {
		t.Fatalf("empty file: got %v, %v", tickets, err)
	}
	_, err = ParseCSVTickets([]byte("title,body\n\"unterminated,x\n"))
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestParseJSONObjectOrArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"object", `{"title":"A","body":"B"}`, 1},
		{"array", `[{"title":"A","body":"B"},{"subject":"C","description":"D"}]`, 2},
		{"empty array", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickets, err := ParseJSONTickets([]byte(tt.input))
			if err != nil {
				t.Fatal(err)
			}
			if len(tickets) != tt.want {
				t.Errorf("got %d tickets, want %d", len(tickets), tt.want)
			}
		})
	}
}

func TestParseJSONFieldFallbacks(t *testing.T) {
	input := `[{"id": 12, "subject": "VPN down", "description": "No tunnel", "metadata": {"priority": 2}},
	           {"external_id": "X-1", "title": "t", "body": "b", "metadata": {}}]`
	tickets, err := ParseJSONTickets([]byte(input))
	if err != nil {
		t.Fatal(err)
	}
	first := tickets[0]
	if first.ExternalID == nil || *first.ExternalID != "12" {
		t.Errorf("numeric id not used as external id: %v", first.ExternalID)
	}
	if first.Title != "VPN down" || first.Body != "No tunnel" {
		t.Errorf("fallbacks not applied: %+v", first)
	}
	if first.Metadata["priority"] == nil {
		t.Errorf("metadata lost: %v", first.Metadata)
	}
	if tickets[1].Metadata != nil {
		t.Errorf("empty metadata should be nil, got %v", tickets[1].Metadata)
	}
}

func TestParseJSONRejectsBadInput(t *testing.T) {
	for _, input := range []string{`{"title":`, `"just a string"`, `[1, 2]`, `{} {}`} {
		_, err := ParseJSONTickets([]byte(input))
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("input %q: expected invalid input, got %v", input, err)
		}
		if apperrors.HTTPStatusCode(err) != http.StatusBadRequest {
			t.Errorf("input %q: expected 400", input)
		}
	}
}

func TestParseTicketFileRejectsExtension(t *testing.T) {
	_, err := ParseTicketFile("tickets.xml", []byte("<x/>"))
	if !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if apperrors.HTTPStatusCode(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apperrors.HTTPStatusCode(err))
	}
	if _, err := ParseTicketFile("TICKETS.JSON", []byte(`[]`)); err != nil {
		t.Errorf("extension match should ignore case: %v", err)
	}
}

func TestParseTextDropsInvalidUTF8(t *testing.T) {
	got := ParseText([]byte("caf\xc3\xa9 \xff\xfeok"))
	if got != "café ok" {
		t.Errorf("ParseText = %q", got)
	}
}

func TestUploadedLengthLimits(t *testing.T) {
	long := strings.Repeat("x", maxTitleLength+1)
	_, err := ParseJSONTickets([]byte(`[{"title":"ok","body":"ok"},{"title":"` + long + `"}]`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["tickets[1].title"]; !ok {
		t.Errorf("expected field tickets[1].title, got %v", verr.Fields)
	}
	if apperrors.HTTPStatusCode(err) != http.StatusBadRequest {
		t.Errorf("expected 400")
	}
}
