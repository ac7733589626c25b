package ports

import (
	"context"
	"time"

	"maildigest/internal/domain"
)

// MailSource pulls raw messages from the mailbox for a time window.
type MailSource interface {
	Fetch(ctx context.Context, since, until time.Time) ([]domain.EmailCandidate, error)
}

// Completer is the opaque LLM text-completion interface the engines
// retry around. Implementations may fail with transport or provider
// errors; callers treat any error as a retryable attempt failure.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// NewsletterStore persists classified newsletters and answers the
// aggregation queries.
type NewsletterStore interface {
	Store(ctx context.Context, newsletters []domain.ClassifiedNewsletter) error
	QueryRange(ctx context.Context, startDate, endDate string) ([]domain.StoredNewsletter, error)
	QueryGenre(ctx context.Context, genre string, daysBack int) ([]domain.StoredNewsletter, error)
}

// DigestArchive persists the assembled weekly digest document.
type DigestArchive interface {
	Save(ctx context.Context, doc domain.WeeklyDigestDocument) (string, error)
}

// DigestPublisher pushes the digest to an external knowledge base.
// Publish failures are logged by callers and never roll back the
// already-archived document.
type DigestPublisher interface {
	Publish(ctx context.Context, doc domain.WeeklyDigestDocument) (string, error)
}

// Scheduler drives the recurring daily and weekly jobs.
type Scheduler interface {
	Start(ctx context.Context, daily, weekly func(time.Time)) error
	Stop(ctx context.Context) error
}
