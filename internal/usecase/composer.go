package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"maildigest/internal/domain"
	"maildigest/internal/ports"
)

// Composer reduces all genre narratives plus aggregate statistics into
// one cross-genre digest document via a single LLM call per attempt. It
// reuses the aggregator's retry constants.
type Composer struct {
	cfg       AggregatorConfig
	completer ports.Completer
	logger    *slog.Logger
	now       func() time.Time
}

// NewComposer builds the digest composer.
func NewComposer(cfg AggregatorConfig, completer ports.Completer, logger *slog.Logger) (*Composer, error) {
	if completer == nil {
		return nil, fmt.Errorf("composer requires a completer")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{cfg: cfg, completer: completer, logger: logger, now: time.Now}, nil
}

// Compose produces the final weekly digest document. An exhausted retry
// budget yields (nil, nil): no document this cycle, which the caller
// reports but does not escalate. TotalNewsletters counts every grouped
// record, including members of genres whose synthesis failed.
func (c *Composer) Compose(ctx context.Context, rangeStart, rangeEnd time.Time,
	groups GenreGroups, summaries []domain.GenreSummary) (*domain.WeeklyDigestDocument, error) {
	if len(summaries) == 0 {
		return nil, fmt.Errorf("no genre summaries to compose")
	}

	prompt := c.buildDigestPrompt(rangeStart, rangeEnd, groups, summaries)

	stats := AggregateStats{}
	narrative, err := attemptNarrative(ctx, c.completer, c.cfg.Model, prompt,
		minDigestNarrative, c.cfg.RetryAttempts, c.cfg.RetryInterval, &stats,
		c.logger.With("stage", "digest"))
	if err != nil {
		return nil, err
	}
	if narrative == "" {
		c.logger.Warn("digest narrative failed after exhausting retries",
			"calls", stats.CompletionCalls)
		return nil, nil
	}

	return &domain.WeeklyDigestDocument{
		ID:               uuid.NewString(),
		RangeStart:       rangeStart,
		RangeEnd:         rangeEnd,
		TotalNewsletters: groups.TotalRecords(),
		PerGenre:         summaries,
		UnifiedNarrative: narrative,
		GeneratedAt:      c.now(),
		Model:            c.cfg.Model,
	}, nil
}

const digestPromptHeader = `You are a professional newsletter curator creating a comprehensive weekly digest for busy professionals.

Your task is to create an engaging, cohesive weekly digest that presents the key insights and trends from this week's newsletters in a compelling narrative format.

GUIDELINES:
1. CREATE AN ENGAGING INTRODUCTION: Start with a compelling overview that highlights the week's major themes
2. PRESENT GENRE SECTIONS: Each genre should be a well-formatted section with clear headings
3. IDENTIFY CROSS-GENRE CONNECTIONS: Look for themes that span multiple genres and highlight them
4. MAINTAIN PROFESSIONAL TONE: Write for busy professionals who want high-value insights
5. PRESERVE ALL CONTENT: Don't truncate or summarize the genre summaries - use them in full
6. ADD CONTEXT: Provide thoughtful transitions between sections
7. CONCLUDE MEANINGFULLY: End with key takeaways or forward-looking insights

DIGEST METADATA:
- Date Range: %s
- Total Newsletters: %d
- Genres Covered: %d

GENRE SUMMARIES TO INCORPORATE:
%s

Create a comprehensive weekly digest that would be valuable for busy professionals. Use proper markdown formatting with clear headings and sections.

RESPOND WITH THE COMPLETE DIGEST IN MARKDOWN FORMAT.`

func (c *Composer) buildDigestPrompt(rangeStart, rangeEnd time.Time,
	groups GenreGroups, summaries []domain.GenreSummary) string {
	var sections strings.Builder
	for _, summary := range summaries {
		fmt.Fprintf(&sections, "\n## %s\n*%d newsletters*\n\n%s\n",
			summary.Genre, summary.NewsletterCount, summary.Narrative)
	}

	dateRange := fmt.Sprintf("%s - %s",
		rangeStart.Format("January 02"), rangeEnd.Format("January 02, 2006"))

	return fmt.Sprintf(digestPromptHeader,
		dateRange, groups.TotalRecords(), len(summaries), sections.String())
}
