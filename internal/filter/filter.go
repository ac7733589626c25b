// Package filter holds the primitive pre-filter that removes obvious
// non-newsletters before any LLM call. It is a pure function over email
// candidates; the classifier makes the real decisions downstream.
package filter

import (
	"strings"

	"maildigest/internal/domain"
)

// unsubscribeKeywords mark mailing-list style senders. An email must
// carry one of these somewhere to be considered a newsletter candidate.
var unsubscribeKeywords = []string{
	"unsubscribe", "opt out", "opt-out", "remove me", "stop emails",
	"manage preferences", "email preferences", "subscription preferences",
}

// skipKeywords flag obvious transactional or system mail. Deliberately
// conservative: anything ambiguous is left for the classifier.
var skipKeywords = []string{
	"verification code", "confirm your", "reset your password",
	"your account has been", "account verification", "please verify",
	"confirm your email", "activate your account", "password reset",
	"login attempt", "security alert", "suspicious activity",
	"invoice #", "receipt #", "payment confirmation",
	"order confirmation", "shipment", "delivery notification",
	"transaction completed", "payment failed", "card declined",
}

// Candidates filters a raw email sequence down to newsletter candidates.
// Pure; the input slice is not modified.
func Candidates(emails []domain.EmailCandidate) []domain.EmailCandidate {
	kept := make([]domain.EmailCandidate, 0, len(emails))
	for _, email := range emails {
		if keep(email) {
			kept = append(kept, email)
		}
	}
	return kept
}

func keep(email domain.EmailCandidate) bool {
	if email.Subject == "" || email.Sender == "" {
		return false
	}

	if !hasUnsubscribeOption(email) {
		return false
	}

	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)
	for _, keyword := range skipKeywords {
		if strings.Contains(subject, keyword) || strings.Contains(body, keyword) {
			return false
		}
	}

	return true
}

func hasUnsubscribeOption(email domain.EmailCandidate) bool {
	haystack := strings.ToLower(email.Subject + " " + email.Body + " " + email.Sender)
	for _, keyword := range unsubscribeKeywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}
