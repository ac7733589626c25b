// Package content prepares newsletter bodies for prompting: HTML is
// reduced to text, boilerplate is stripped, and bodies are truncated so
// a full batch fits in one completion call.
package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"maildigest/internal/domain"
)

const defaultMaxLength = 3000

var (
	whitespaceExpr = regexp.MustCompile(`\s+`)

	artifactExprs = []*regexp.Regexp{
		regexp.MustCompile(`View this email in your browser`),
		regexp.MustCompile(`If you.*unsubscribe.*`),
		regexp.MustCompile(`This email was sent to.*`),
	}
)

// Cleaner normalizes candidate bodies ahead of classification.
type Cleaner struct {
	maxLength int
}

// NewCleaner builds a cleaner; maxLength <= 0 selects the default cap.
func NewCleaner(maxLength int) *Cleaner {
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}
	return &Cleaner{maxLength: maxLength}
}

// Clean returns a copy of the candidates with cleaned bodies. Candidates
// themselves are treated as read-only.
func (c *Cleaner) Clean(candidates []domain.EmailCandidate) []domain.EmailCandidate {
	cleaned := make([]domain.EmailCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		copy := candidate
		copy.Body = c.CleanBody(candidate.Body)
		cleaned = append(cleaned, copy)
	}
	return cleaned
}

// CleanBody reduces one body to flat, bounded text.
func (c *Cleaner) CleanBody(body string) string {
	text := body
	if looksLikeHTML(body) {
		text = htmlToText(body)
	}

	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = whitespaceExpr.ReplaceAllString(text, " ")

	for _, expr := range artifactExprs {
		text = expr.ReplaceAllString(text, "")
	}

	text = strings.TrimSpace(text)
	if len(text) > c.maxLength {
		text = text[:c.maxLength] + "..."
	}
	return text
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<p>") ||
		strings.Contains(lower, "<table")
}

func htmlToText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style, head").Remove()
	return doc.Text()
}
