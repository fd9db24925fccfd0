package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// These tests run against a live server. Start one and point E2E_BASE_URL at
// it; they skip when nothing is listening.

func baseURL() string {
	if v := os.Getenv("E2E_BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:8000"
}

func liveClient(t *testing.T) *http.Client {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL() + "/health")
	if err != nil {
		t.Skipf("server unavailable: %v", err)
	}
	resp.Body.Close()
	return client
}

func TestLiveHealth(t *testing.T) {
	client := liveClient(t)
	for _, path := range []string{"/health", "/health/ready", "/"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(baseURL() + path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestLiveTicketThenQuery creates a ticket with a unique word and expects it
// as the top source of a query for that word.
func TestLiveTicketThenQuery(t *testing.T) {
	client := liveClient(t)

	word := fmt.Sprintf("e2eword%d", time.Now().UnixNano())
	payload := fmt.Sprintf(`{"title":"%s ticket","body":"customer reports %s failing at checkout"}`, word, word)
	resp, err := client.Post(baseURL()+"/tickets", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	qresp, err := client.Post(baseURL()+"/query", "application/json",
		strings.NewReader(fmt.Sprintf(`{"query":%q,"top_k":1}`, word)))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer qresp.Body.Close()
	if qresp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(qresp.Body)
		t.Fatalf("expected 200, got %d: %s", qresp.StatusCode, body)
	}
	var out struct {
		Answer  string `json:"answer"`
		Sources []struct {
			Type  string  `json:"type"`
			ID    int64   `json:"id"`
			Score float64 `json:"score"`
		} `json:"sources"`
	}
	if err := json.NewDecoder(qresp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Sources) != 1 || out.Sources[0].Type != "ticket" || out.Sources[0].ID != created.ID {
		t.Errorf("sources = %+v, want ticket %d", out.Sources, created.ID)
	}
}

func TestLiveAnalytics(t *testing.T) {
	client := liveClient(t)
	resp, err := client.Get(baseURL() + "/api/v1/analytics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	t.Logf("analytics: %v", stats)
}
