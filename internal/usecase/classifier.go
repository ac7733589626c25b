package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maildigest/internal/domain"
	"maildigest/internal/jsonscan"
	"maildigest/internal/ports"
)

// ClassifierConfig carries the batch pacing constants. Intervals default
// to zero, which disables the corresponding wait; production values come
// from the application config.
type ClassifierConfig struct {
	Model          string
	BatchSize      int
	BatchInterval  time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
	ApprovedGenres []string
	DefaultGenre   string
}

// ClassifyStats exposes per-run counters so silent degradation (dropped
// chunks) is visible to operators beyond log lines.
type ClassifyStats struct {
	Candidates      int
	ChunksAttempted int
	ChunksSucceeded int
	CompletionCalls int
	RetryWaits      int
	Classified      int
}

// Classifier turns candidate emails into genre-tagged summaries through
// chunked, rate-limited LLM calls. Dispatch is strictly sequential: the
// upstream provider enforces rate limits the pacing intervals exist to
// respect.
type Classifier struct {
	cfg       ClassifierConfig
	completer ports.Completer
	logger    *slog.Logger
	approved  map[string]struct{}
}

// NewClassifier validates the configuration and builds the engine.
func NewClassifier(cfg ClassifierConfig, completer ports.Completer, logger *slog.Logger) (*Classifier, error) {
	if completer == nil {
		return nil, fmt.Errorf("classifier requires a completer")
	}
	if len(cfg.ApprovedGenres) == 0 {
		return nil, fmt.Errorf("classifier requires a non-empty approved genre list")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.DefaultGenre == "" {
		cfg.DefaultGenre = domain.DefaultGenre
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		cfg:       cfg,
		completer: completer,
		logger:    logger,
		approved:  domain.GenreSet(cfg.ApprovedGenres),
	}, nil
}

// Classify processes candidates in order, in chunks of at most BatchSize.
// A chunk that exhausts its retries yields nothing and processing moves
// on; LLM-side failures never abort the run. The returned error is
// non-nil only when the context is cancelled mid-run.
func (c *Classifier) Classify(ctx context.Context, candidates []domain.EmailCandidate) ([]domain.ClassifiedNewsletter, ClassifyStats, error) {
	stats := ClassifyStats{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return nil, stats, nil
	}

	chunks := chunkCandidates(candidates, c.cfg.BatchSize)
	c.logger.Info("starting batch classification",
		"model", c.cfg.Model, "candidates", len(candidates), "chunks", len(chunks))

	var classified []domain.ClassifiedNewsletter
	for i, chunk := range chunks {
		stats.ChunksAttempted++

		results, err := c.classifyChunk(ctx, chunk, i+1, len(chunks), &stats)
		if err != nil {
			return classified, stats, err
		}

		if results != nil {
			stats.ChunksSucceeded++
			classified = append(classified, results...)
			c.logger.Info("chunk classified", "chunk", i+1, "records", len(results))
		} else {
			c.logger.Warn("chunk dropped after exhausting retries", "chunk", i+1)
		}

		if i < len(chunks)-1 {
			c.logger.Debug("pacing before next chunk", "interval", c.cfg.BatchInterval)
			if err := waitFor(ctx, c.cfg.BatchInterval); err != nil {
				return classified, stats, fmt.Errorf("batch pacing interrupted: %w", err)
			}
		}
	}

	stats.Classified = len(classified)
	c.logger.Info("batch classification complete",
		"classified", stats.Classified,
		"chunks_succeeded", stats.ChunksSucceeded,
		"chunks_attempted", stats.ChunksAttempted)
	return classified, stats, nil
}

// classifyChunk runs the bounded attempt loop for one chunk. A nil, nil
// return means the chunk failed every attempt and is dropped.
func (c *Classifier) classifyChunk(ctx context.Context, chunk []domain.EmailCandidate, num, total int, stats *ClassifyStats) ([]domain.ClassifiedNewsletter, error) {
	prompt := c.buildBatchPrompt(chunk)

	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		c.logger.Debug("chunk attempt", "chunk", num, "of", total, "attempt", attempt)

		response, err := c.completer.Complete(ctx, c.cfg.Model, prompt)
		stats.CompletionCalls++
		if err != nil {
			c.logger.Warn("completion failed", "chunk", num, "attempt", attempt, "error", err)
		} else {
			results, perr := c.parseBatchResponse(response, chunk)
			if perr != nil {
				c.logger.Warn("response rejected", "chunk", num, "attempt", attempt, "error", perr)
			} else if len(results) == 0 {
				c.logger.Warn("response accepted no items", "chunk", num, "attempt", attempt)
			} else {
				return results, nil
			}
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("chunk %d aborted: %w", num, ctx.Err())
		}

		if attempt < c.cfg.RetryAttempts {
			stats.RetryWaits++
			if err := waitFor(ctx, c.cfg.RetryInterval); err != nil {
				return nil, fmt.Errorf("retry pacing interrupted: %w", err)
			}
		}
	}

	return nil, nil
}

const batchPromptHeader = `You are an expert newsletter analyst. Analyze these %d newsletters and provide structured output.

For each newsletter, provide:
1. A comprehensive summary that captures the main content, key insights, and valuable information. Feel free to format it in markdown format. Ensure the summary comprehensively covers the newsletter content.
2. A genre classification from the approved list (a single genre for each newsletter)

APPROVED GENRES (use one of these for each): %s

NEWSLETTERS TO ANALYZE:
%s

RESPOND WITH VALID JSON ONLY (no other text):
{
    "newsletters": [
    {
        "newsletter_id": 1,
        "summary": "Comprehensive summary of newsletter content...",
        "genre": "Technology"
    }
    ]
}

IMPORTANT:
- newsletter_id must match the newsletter number (1, 2, 3, etc.)
- genre must be exactly one of the approved genres
- summary should be comprehensive and valuable for a weekly digest
- skip any emails that are not newsletters
- respond with valid JSON only`

func (c *Classifier) buildBatchPrompt(chunk []domain.EmailCandidate) string {
	var entries strings.Builder
	for i, candidate := range chunk {
		subject := candidate.Subject
		if subject == "" {
			subject = "No Subject"
		}
		fmt.Fprintf(&entries, "\nNewsletter %d:\nSubject: %s\nContent: %s\n", i+1, subject, candidate.Body)
	}

	return fmt.Sprintf(batchPromptHeader,
		len(chunk),
		strings.Join(c.cfg.ApprovedGenres, ", "),
		entries.String())
}

type batchItem struct {
	NewsletterID int    `json:"newsletter_id"`
	Summary      string `json:"summary"`
	Genre        string `json:"genre"`
}

// parseBatchResponse extracts and validates the structured payload from
// one completion. Malformed JSON or a missing newsletters field fails
// the whole attempt; item-level problems are repaired instead: an
// out-of-range newsletter_id drops that item (the model may decline to
// classify an email), an unapproved genre is coerced to the default.
func (c *Classifier) parseBatchResponse(response string, chunk []domain.EmailCandidate) ([]domain.ClassifiedNewsletter, error) {
	span, err := jsonscan.FirstObject(response)
	if err != nil {
		return nil, fmt.Errorf("extract payload: %w", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	rawItems, ok := payload["newsletters"]
	if !ok {
		return nil, fmt.Errorf("payload missing newsletters field")
	}

	var items []batchItem
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, fmt.Errorf("decode newsletters field: %w", err)
	}

	results := make([]domain.ClassifiedNewsletter, 0, len(items))
	for _, item := range items {
		if item.NewsletterID < 1 || item.NewsletterID > len(chunk) {
			c.logger.Debug("dropping item with out-of-range id", "newsletter_id", item.NewsletterID)
			continue
		}

		summary := strings.TrimSpace(item.Summary)
		if summary == "" {
			c.logger.Debug("dropping item with empty summary", "newsletter_id", item.NewsletterID)
			continue
		}

		genre := domain.CoerceGenre(item.Genre, c.approved, c.cfg.DefaultGenre)
		if genre != item.Genre {
			c.logger.Debug("coerced unapproved genre", "genre", item.Genre, "coerced", genre)
		}

		source := chunk[item.NewsletterID-1]
		results = append(results, domain.ClassifiedNewsletter{
			Original:  source,
			Summary:   summary,
			Genre:     genre,
			Sender:    source.Sender,
			Subject:   source.Subject,
			Date:      source.Date,
			WordCount: domain.CountWords(summary),
		})
	}

	return results, nil
}

func chunkCandidates(candidates []domain.EmailCandidate, size int) [][]domain.EmailCandidate {
	var chunks [][]domain.EmailCandidate
	for start := 0; start < len(candidates); start += size {
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}
		chunks = append(chunks, candidates[start:end])
	}
	return chunks
}
