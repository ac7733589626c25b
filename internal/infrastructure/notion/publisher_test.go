package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"maildigest/internal/config"
	"maildigest/internal/domain"
)

func testDocument() domain.WeeklyDigestDocument {
	return domain.WeeklyDigestDocument{
		ID:               "doc-1",
		RangeStart:       time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		RangeEnd:         time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TotalNewsletters: 9,
		UnifiedNarrative: "The week in brief.",
		GeneratedAt:      time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC),
		Model:            "test-model",
	}
}

func TestPublishCreatesPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/pages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("unexpected auth header: %s", got)
		}
		if got := r.Header.Get("Notion-Version"); got == "" {
			t.Error("missing Notion-Version header")
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		parent, _ := req["parent"].(map[string]any)
		if parent["database_id"] != "db-42" {
			t.Errorf("unexpected parent: %v", parent)
		}

		_, _ = w.Write([]byte(`{"id":"page-123"}`))
	}))
	defer server.Close()

	p := NewPublisher(config.NotionConfig{Token: "secret-token", DatabaseID: "db-42"})
	p.baseURL = server.URL

	id, err := p.Publish(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "page-123" {
		t.Fatalf("unexpected page id: %s", id)
	}
}

func TestPublishAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"validation_error"}`))
	}))
	defer server.Close()

	p := NewPublisher(config.NotionConfig{Token: "t", DatabaseID: "d"})
	p.baseURL = server.URL

	_, err := p.Publish(context.Background(), testDocument())
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "validation_error") {
		t.Fatalf("expected api payload in error, got: %v", err)
	}
}

func TestPublishUnconfigured(t *testing.T) {
	t.Parallel()

	p := NewPublisher(config.NotionConfig{})
	if p.Configured() {
		t.Fatal("expected unconfigured publisher")
	}
	if _, err := p.Publish(context.Background(), testDocument()); err == nil {
		t.Fatal("expected error from unconfigured publisher")
	}
}

func TestSplitBlocks(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", blockLimit+100)
	chunks := splitBlocks(long)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != blockLimit || len(chunks[1]) != 100 {
		t.Fatalf("unexpected chunk sizes: %d, %d", len(chunks[0]), len(chunks[1]))
	}
}
