package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maildigest/internal/domain"
	"maildigest/internal/ports"
)

// Minimum acceptable narrative lengths, guarding against truncated or
// empty completions.
const (
	minGenreNarrative  = 50
	minDigestNarrative = 200
)

// AggregatorConfig carries the weekly pacing constants. The weekly retry
// shape differs from the daily classifier: RetryAttempts counts retries
// AFTER the initial attempt, so each unit gets RetryAttempts+1 calls at
// most.
type AggregatorConfig struct {
	Model          string
	GenreInterval  time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
	ApprovedGenres []string
	DefaultGenre   string
}

// AggregateStats exposes per-run counters for the weekly synthesis.
type AggregateStats struct {
	Records           int
	GenresAttempted   int
	GenresSynthesized int
	CompletionCalls   int
	RetryWaits        int
}

// GenreGroups maps genres to their member records, keeping the order in
// which genres first appeared. The order slice exists because map
// iteration would otherwise randomize what is defined as insertion order.
type GenreGroups struct {
	Order   []string
	Members map[string][]domain.StoredNewsletter
}

// TotalRecords counts members across every genre, synthesized or not.
func (g GenreGroups) TotalRecords() int {
	total := 0
	for _, members := range g.Members {
		total += len(members)
	}
	return total
}

// GroupByGenre buckets stored records by genre in first-appearance
// order. Genres outside the approved set are coerced on the read path as
// well; records should already be valid at write time, but the grouping
// re-checks.
func GroupByGenre(records []domain.StoredNewsletter, approved map[string]struct{}, fallback string) GenreGroups {
	groups := GenreGroups{Members: make(map[string][]domain.StoredNewsletter)}
	for _, record := range records {
		genre := domain.CoerceGenre(record.Genre, approved, fallback)
		if _, seen := groups.Members[genre]; !seen {
			groups.Order = append(groups.Order, genre)
		}
		groups.Members[genre] = append(groups.Members[genre], record)
	}
	return groups
}

// Aggregator synthesizes one narrative per genre from the stored
// summaries of a trailing window, under the same sequential pacing
// discipline as the daily classifier but with its own interval set.
type Aggregator struct {
	cfg       AggregatorConfig
	completer ports.Completer
	logger    *slog.Logger
	approved  map[string]struct{}
}

// NewAggregator validates the configuration and builds the engine.
func NewAggregator(cfg AggregatorConfig, completer ports.Completer, logger *slog.Logger) (*Aggregator, error) {
	if completer == nil {
		return nil, fmt.Errorf("aggregator requires a completer")
	}
	if len(cfg.ApprovedGenres) == 0 {
		return nil, fmt.Errorf("aggregator requires a non-empty approved genre list")
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.DefaultGenre == "" {
		cfg.DefaultGenre = domain.DefaultGenre
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		cfg:       cfg,
		completer: completer,
		logger:    logger,
		approved:  domain.GenreSet(cfg.ApprovedGenres),
	}, nil
}

// Group buckets records using the aggregator's genre configuration.
func (a *Aggregator) Group(records []domain.StoredNewsletter) GenreGroups {
	return GroupByGenre(records, a.approved, a.cfg.DefaultGenre)
}

// Synthesize produces one GenreSummary per genre that survives its
// retries. A genre that exhausts retries is dropped from the result but
// keeps its members in the groups, so downstream totals still count it.
// The error is non-nil only for context cancellation.
func (a *Aggregator) Synthesize(ctx context.Context, groups GenreGroups) ([]domain.GenreSummary, AggregateStats, error) {
	stats := AggregateStats{Records: groups.TotalRecords()}

	var summaries []domain.GenreSummary
	for i, genre := range groups.Order {
		members := groups.Members[genre]
		stats.GenresAttempted++
		a.logger.Info("synthesizing genre", "genre", genre, "newsletters", len(members),
			"position", fmt.Sprintf("%d/%d", i+1, len(groups.Order)))

		prompt := a.buildGenrePrompt(genre, members)
		narrative, err := attemptNarrative(ctx, a.completer, a.cfg.Model, prompt,
			minGenreNarrative, a.cfg.RetryAttempts, a.cfg.RetryInterval, &stats, a.logger.With("genre", genre))
		if err != nil {
			return summaries, stats, err
		}

		if narrative != "" {
			stats.GenresSynthesized++
			summaries = append(summaries, domain.GenreSummary{
				Genre:           genre,
				Narrative:       narrative,
				NewsletterCount: len(members),
			})
		} else {
			a.logger.Warn("genre dropped after exhausting retries", "genre", genre)
		}

		if i < len(groups.Order)-1 {
			a.logger.Debug("pacing before next genre", "interval", a.cfg.GenreInterval)
			if err := waitFor(ctx, a.cfg.GenreInterval); err != nil {
				return summaries, stats, fmt.Errorf("genre pacing interrupted: %w", err)
			}
		}
	}

	a.logger.Info("genre synthesis complete",
		"synthesized", stats.GenresSynthesized, "attempted", stats.GenresAttempted)
	return summaries, stats, nil
}

const genrePromptHeader = `You are an expert newsletter curator creating a comprehensive weekly digest summary for the %s genre.

Your task is to create a unified, comprehensive, and non-redundant summary that captures all the key insights, trends, and important information from these %d newsletters.

GUIDELINES:
1. CREATE A COHESIVE NARRATIVE: Don't just list summaries - weave the information together into a flowing narrative
2. IDENTIFY COMMON THEMES: Look for patterns, trends, and connections across the newsletters
3. HIGHLIGHT KEY INSIGHTS: Focus on the most valuable and actionable information
4. AVOID REDUNDANCY: If multiple newsletters cover the same topic, synthesize them into one coherent discussion
5. MAINTAIN CONTEXT: Include specific details, examples, and data points that add value
6. BE COMPREHENSIVE: Don't truncate or skip information - use the full content provided
7. WRITE ENGAGINGLY: Make it interesting and readable for someone who wants to stay informed

NEWSLETTERS TO SYNTHESIZE:
%s

Create a comprehensive %s summary that would be valuable for someone who wants to understand the week's key developments in this area. Write in a clear, engaging style that flows naturally.

RESPOND WITH THE SUMMARY ONLY - NO PREFIXES OR EXPLANATIONS.`

func (a *Aggregator) buildGenrePrompt(genre string, members []domain.StoredNewsletter) string {
	var entries strings.Builder
	for i, record := range members {
		subject := record.Subject
		if subject == "" {
			subject = "No Subject"
		}
		fmt.Fprintf(&entries, "\nNewsletter %d:\nSubject: %s\nFrom: %s\nDate: %s\nSummary: %s\n",
			i+1, subject, record.Sender, record.Date, record.Summary)
	}

	return fmt.Sprintf(genrePromptHeader, genre, len(members), entries.String(), genre)
}

// attemptNarrative runs the weekly retry shape: one initial attempt plus
// up to retries retry attempts, each separated by the retry interval.
// An empty return with nil error means every attempt failed.
func attemptNarrative(ctx context.Context, completer ports.Completer, model, prompt string,
	minLength, retries int, retryInterval time.Duration, stats *AggregateStats, logger *slog.Logger) (string, error) {
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			logger.Debug("narrative retry", "attempt", attempt, "of", retries)
		}

		response, err := completer.Complete(ctx, model, prompt)
		stats.CompletionCalls++
		if err != nil {
			logger.Warn("completion failed", "attempt", attempt+1, "error", err)
		} else {
			narrative := strings.TrimSpace(response)
			if len(narrative) >= minLength {
				return narrative, nil
			}
			logger.Warn("narrative below minimum length", "attempt", attempt+1,
				"length", len(narrative), "minimum", minLength)
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("narrative synthesis aborted: %w", ctx.Err())
		}

		if attempt < retries {
			stats.RetryWaits++
			if err := waitFor(ctx, retryInterval); err != nil {
				return "", fmt.Errorf("retry pacing interrupted: %w", err)
			}
		}
	}

	return "", nil
}
