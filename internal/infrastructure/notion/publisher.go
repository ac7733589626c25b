package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"maildigest/internal/config"
	"maildigest/internal/domain"
	"maildigest/internal/ports"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"

	// Notion caps a single rich_text element at 2000 characters.
	blockLimit = 2000
)

// Publisher creates a page for each weekly digest inside a Notion
// database. Publishing is best effort; callers log failures and keep the
// archived file as the source of truth.
type Publisher struct {
	cfg     config.NotionConfig
	baseURL string
	client  *http.Client
}

var _ ports.DigestPublisher = (*Publisher)(nil)

// NewPublisher wires the Notion integration token and target database.
func NewPublisher(cfg config.NotionConfig) *Publisher {
	return &Publisher{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether both the token and database id are present.
func (p *Publisher) Configured() bool {
	return p.cfg.Token != "" && p.cfg.DatabaseID != ""
}

// Publish creates the digest page and returns its Notion page id.
func (p *Publisher) Publish(ctx context.Context, doc domain.WeeklyDigestDocument) (string, error) {
	if !p.Configured() {
		return "", fmt.Errorf("notion publisher not configured")
	}

	payload, err := json.Marshal(p.pageRequest(doc))
	if err != nil {
		return "", fmt.Errorf("marshal page request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/pages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post page: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("notion status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var page struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return "", fmt.Errorf("decode page response: %w", err)
	}
	if page.ID == "" {
		return "", fmt.Errorf("notion response missing page id")
	}

	return page.ID, nil
}

func (p *Publisher) pageRequest(doc domain.WeeklyDigestDocument) map[string]any {
	title := fmt.Sprintf("Weekly Digest: %s - %s",
		doc.RangeStart.Format("Jan 02"), doc.RangeEnd.Format("Jan 02, 2006"))

	children := []map[string]any{
		paragraph(fmt.Sprintf("%d newsletters, generated %s by %s.",
			doc.TotalNewsletters, doc.GeneratedAt.Format("2006-01-02 15:04"), doc.Model)),
	}
	for _, chunk := range splitBlocks(doc.UnifiedNarrative) {
		children = append(children, paragraph(chunk))
	}

	return map[string]any{
		"parent": map[string]any{"database_id": p.cfg.DatabaseID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": []map[string]any{
					{"text": map[string]any{"content": title}},
				},
			},
		},
		"children": children,
	}
}

func paragraph(text string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": []map[string]any{
				{"type": "text", "text": map[string]any{"content": text}},
			},
		},
	}
}

func splitBlocks(text string) []string {
	var chunks []string
	for len(text) > blockLimit {
		chunks = append(chunks, text[:blockLimit])
		text = text[blockLimit:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
