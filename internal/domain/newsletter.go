package domain

import (
	"strings"
	"time"
)

// EmailCandidate is a raw mailbox message that survived primitive
// pre-filtering and is eligible for LLM classification. Date keeps the
// original header value; normalization happens at persistence time.
type EmailCandidate struct {
	ID      string
	Subject string
	Sender  string
	Date    string
	Body    string
}

// ClassifiedNewsletter is one batch-classification result linked back to
// its source candidate. WordCount is computed locally from Summary and
// never trusted from the model.
type ClassifiedNewsletter struct {
	Original  EmailCandidate
	Summary   string
	Genre     string
	Sender    string
	Subject   string
	Date      string
	WordCount int
}

// StoredNewsletter is the persisted form with a surrogate id, a
// normalized YYYY-MM-DD date, and an insertion timestamp. Records are
// immutable once written; there is no update or delete path.
type StoredNewsletter struct {
	ID        int64
	Date      string
	Sender    string
	Subject   string
	Summary   string
	Genre     string
	WordCount int
	CreatedAt time.Time
}

// GenreSummary is one synthesized narrative covering every stored record
// of a genre within the aggregation window.
type GenreSummary struct {
	Genre           string
	Narrative       string
	NewsletterCount int
}

// WeeklyDigestDocument is the final cross-genre digest produced once per
// weekly cycle. Never mutated after creation.
type WeeklyDigestDocument struct {
	ID               string
	RangeStart       time.Time
	RangeEnd         time.Time
	TotalNewsletters int
	PerGenre         []GenreSummary
	UnifiedNarrative string
	GeneratedAt      time.Time
	Model            string
}

// CountWords returns the whitespace-delimited token count of a summary.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
