package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maildigest/internal/domain"
	"maildigest/internal/ports"
)

// CandidateFilter is the pure primitive pre-filter over raw emails. It
// is injected rather than imported so the policy stays replaceable.
type CandidateFilter func([]domain.EmailCandidate) []domain.EmailCandidate

// BodyCleaner normalizes candidate bodies ahead of prompting.
type BodyCleaner interface {
	Clean([]domain.EmailCandidate) []domain.EmailCandidate
}

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Mail       ports.MailSource
	Filter     CandidateFilter
	Cleaner    BodyCleaner
	Classifier *Classifier
	Aggregator *Aggregator
	Composer   *Composer
	Store      ports.NewsletterStore
	Archive    ports.DigestArchive
	Publisher  ports.DigestPublisher
	Logger     *slog.Logger
	DaysBack   int
}

// Pipeline implements the daily ingestion workflow and the weekly digest
// workflow over the collaborator ports.
type Pipeline struct {
	mail       ports.MailSource
	filter     CandidateFilter
	cleaner    BodyCleaner
	classifier *Classifier
	aggregator *Aggregator
	composer   *Composer
	store      ports.NewsletterStore
	archive    ports.DigestArchive
	publisher  ports.DigestPublisher
	logger     *slog.Logger
	daysBack   int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	daysBack := deps.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	return &Pipeline{
		mail:       deps.Mail,
		filter:     deps.Filter,
		cleaner:    deps.Cleaner,
		classifier: deps.Classifier,
		aggregator: deps.Aggregator,
		composer:   deps.Composer,
		store:      deps.Store,
		archive:    deps.Archive,
		publisher:  deps.Publisher,
		logger:     logger,
		daysBack:   daysBack,
	}
}

// DailyReport summarizes one daily run for logs and operators.
type DailyReport struct {
	Fetched    int
	Candidates int
	Stored     int
	Stats      ClassifyStats
}

// DailyRun fetches the trailing 24 hours of mail, pre-filters, cleans,
// classifies, and persists the results. Mailbox and storage errors are
// hard failures of the run; LLM failures only degrade yield.
func (p *Pipeline) DailyRun(ctx context.Context, day time.Time) (DailyReport, error) {
	var report DailyReport

	emails, err := p.mail.Fetch(ctx, day.Add(-24*time.Hour), day)
	if err != nil {
		return report, fmt.Errorf("fetch mail: %w", err)
	}
	report.Fetched = len(emails)
	if len(emails) == 0 {
		p.logger.Info("no mail in window")
		return report, nil
	}

	candidates := emails
	if p.filter != nil {
		candidates = p.filter(emails)
	}
	report.Candidates = len(candidates)
	p.logger.Info("primitive filtering done", "fetched", len(emails), "candidates", len(candidates))
	if len(candidates) == 0 {
		return report, nil
	}

	if p.cleaner != nil {
		candidates = p.cleaner.Clean(candidates)
	}

	classified, stats, err := p.classifier.Classify(ctx, candidates)
	report.Stats = stats
	if err != nil {
		return report, fmt.Errorf("classify candidates: %w", err)
	}
	if len(classified) == 0 {
		p.logger.Info("no newsletters classified")
		return report, nil
	}

	if err := p.store.Store(ctx, classified); err != nil {
		return report, fmt.Errorf("store newsletters: %w", err)
	}
	report.Stored = len(classified)
	p.logger.Info("daily run complete", "stored", report.Stored)
	return report, nil
}

// WeeklyReport summarizes one weekly digest run.
type WeeklyReport struct {
	Records     int
	Genres      int
	Stats       AggregateStats
	DigestPath  string
	PublishedID string
	Document    *domain.WeeklyDigestDocument
}

// WeeklyRun queries the trailing window, synthesizes per-genre and
// unified narratives, archives the digest, and optionally publishes it.
// An exhausted digest composition skips the cycle without error; publish
// failures are logged and never roll back the archived document.
func (p *Pipeline) WeeklyRun(ctx context.Context, now time.Time) (WeeklyReport, error) {
	var report WeeklyReport

	start := now.AddDate(0, 0, -p.daysBack)
	records, err := p.store.QueryRange(ctx, start.Format("2006-01-02"), now.Format("2006-01-02"))
	if err != nil {
		return report, fmt.Errorf("query window: %w", err)
	}
	report.Records = len(records)
	if len(records) == 0 {
		p.logger.Info("no newsletters in window", "days_back", p.daysBack)
		return report, nil
	}

	groups := p.aggregator.Group(records)
	report.Genres = len(groups.Order)
	p.logger.Info("window grouped", "records", len(records), "genres", len(groups.Order))

	summaries, stats, err := p.aggregator.Synthesize(ctx, groups)
	report.Stats = stats
	if err != nil {
		return report, fmt.Errorf("synthesize genres: %w", err)
	}
	if len(summaries) == 0 {
		p.logger.Warn("no genre summaries produced, skipping digest")
		return report, nil
	}

	doc, err := p.composer.Compose(ctx, start, now, groups, summaries)
	if err != nil {
		return report, fmt.Errorf("compose digest: %w", err)
	}
	if doc == nil {
		p.logger.Warn("digest composition exhausted retries, skipping cycle")
		return report, nil
	}
	report.Document = doc

	path, err := p.archive.Save(ctx, *doc)
	if err != nil {
		return report, fmt.Errorf("save digest: %w", err)
	}
	report.DigestPath = path
	p.logger.Info("digest archived", "path", path, "newsletters", doc.TotalNewsletters)

	if p.publisher != nil {
		id, err := p.publisher.Publish(ctx, *doc)
		if err != nil {
			p.logger.Warn("digest publish failed", "error", err)
		} else {
			report.PublishedID = id
			p.logger.Info("digest published", "id", id)
		}
	}

	return report, nil
}
