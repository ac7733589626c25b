package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"maildigest/internal/domain"
)

// scriptedCompleter replays canned responses in call order. A nil error
// with empty script entries falls back to errScriptExhausted.
type scriptedCompleter struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

var errScriptExhausted = errors.New("script exhausted")

func (s *scriptedCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)

	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errScriptExhausted
}

func candidateSet(n int) []domain.EmailCandidate {
	candidates := make([]domain.EmailCandidate, n)
	for i := range candidates {
		candidates[i] = domain.EmailCandidate{
			ID:      fmt.Sprintf("%d", i+1),
			Subject: fmt.Sprintf("Newsletter %d", i+1),
			Sender:  "news@example.com",
			Date:    "2024-01-15",
			Body:    "Body text.",
		}
	}
	return candidates
}

func batchResponse(items ...string) string {
	return fmt.Sprintf(`{"newsletters":[%s]}`, strings.Join(items, ","))
}

func item(id int, summary, genre string) string {
	return fmt.Sprintf(`{"newsletter_id":%d,"summary":%q,"genre":%q}`, id, summary, genre)
}

func testClassifier(t *testing.T, completer *scriptedCompleter) *Classifier {
	t.Helper()

	c, err := NewClassifier(ClassifierConfig{
		Model:          "test-model",
		BatchSize:      10,
		RetryAttempts:  3,
		ApprovedGenres: domain.ApprovedGenres,
		DefaultGenre:   domain.DefaultGenre,
	}, completer, nil)
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}
	return c
}

func TestClassifyChunking(t *testing.T) {
	t.Parallel()

	// 23 candidates with batch size 10 means chunks of 10, 10, 3.
	completer := &scriptedCompleter{responses: []string{
		batchResponse(item(1, "first chunk summary", "Technology")),
		batchResponse(item(1, "second chunk summary", "Technology")),
		batchResponse(item(1, "third chunk summary", "Technology")),
	}}
	c := testClassifier(t, completer)

	results, stats, err := c.Classify(context.Background(), candidateSet(23))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}

	if completer.calls != 3 {
		t.Fatalf("expected 3 completion calls, got %d", completer.calls)
	}
	if stats.ChunksAttempted != 3 || stats.ChunksSucceeded != 3 {
		t.Fatalf("unexpected chunk stats: %+v", stats)
	}
	if stats.RetryWaits != 0 {
		t.Fatalf("expected no retry waits, got %d", stats.RetryWaits)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !strings.Contains(completer.prompts[2], "these 3 newsletters") {
		t.Fatalf("final chunk prompt should cover 3 newsletters:\n%s", completer.prompts[2])
	}
}

func TestClassifyRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{
		errs:      []error{errors.New("timeout"), errors.New("timeout"), nil},
		responses: []string{"", "", batchResponse(item(1, "recovered summary", "Finance"))},
	}
	c := testClassifier(t, completer)

	results, stats, err := c.Classify(context.Background(), candidateSet(1))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}

	if completer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", completer.calls)
	}
	if stats.RetryWaits != 2 {
		t.Fatalf("expected 2 retry waits, got %d", stats.RetryWaits)
	}
	if len(results) != 1 || results[0].Genre != "Finance" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestClassifyChunkDroppedAfterRetries(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	c := testClassifier(t, completer)

	results, stats, err := c.Classify(context.Background(), candidateSet(2))
	if err != nil {
		t.Fatalf("Classify should not fail on exhausted retries: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if stats.ChunksAttempted != 1 || stats.ChunksSucceeded != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if completer.calls != 3 {
		t.Fatalf("expected exactly RetryAttempts calls, got %d", completer.calls)
	}
}

func TestClassifyEmptyPayloadRetries(t *testing.T) {
	t.Parallel()

	// A syntactically valid response carrying no accepted items counts as
	// a failed attempt.
	completer := &scriptedCompleter{responses: []string{
		`{"newsletters":[]}`,
		batchResponse(item(1, "eventually fine", "Technology")),
	}}
	c := testClassifier(t, completer)

	results, stats, err := c.Classify(context.Background(), candidateSet(1))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if completer.calls != 2 {
		t.Fatalf("expected retry after empty payload, got %d calls", completer.calls)
	}
	if stats.RetryWaits != 1 || len(results) != 1 {
		t.Fatalf("unexpected outcome: stats=%+v results=%d", stats, len(results))
	}
}

func TestParseBatchResponseItemRepair(t *testing.T) {
	t.Parallel()

	c := testClassifier(t, &scriptedCompleter{})
	chunk := candidateSet(2)

	response := "Here is the result:\n" + batchResponse(
		item(1, "good summary one", "Finance"),
		item(5, "orphan summary", "Finance"),
		item(2, "good summary two", "Astrology"),
	)

	results, err := c.parseBatchResponse(response, chunk)
	if err != nil {
		t.Fatalf("parseBatchResponse returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected out-of-range item dropped, got %d results", len(results))
	}
	if results[0].Genre != "Finance" {
		t.Fatalf("approved genre must survive: %s", results[0].Genre)
	}
	if results[1].Genre != domain.DefaultGenre {
		t.Fatalf("unapproved genre must coerce to default, got %s", results[1].Genre)
	}
	if results[1].Subject != chunk[1].Subject || results[1].Sender != chunk[1].Sender {
		t.Fatalf("result must link back to its source candidate: %+v", results[1])
	}
}

func TestParseBatchResponseWordCount(t *testing.T) {
	t.Parallel()

	c := testClassifier(t, &scriptedCompleter{})
	results, err := c.parseBatchResponse(
		batchResponse(item(1, "one two  three\nfour", "Technology")), candidateSet(1))
	if err != nil {
		t.Fatalf("parseBatchResponse returned error: %v", err)
	}
	if results[0].WordCount != 4 {
		t.Fatalf("expected word count 4, got %d", results[0].WordCount)
	}
}

func TestParseBatchResponseMissingField(t *testing.T) {
	t.Parallel()

	c := testClassifier(t, &scriptedCompleter{})
	if _, err := c.parseBatchResponse(`{"articles":[]}`, candidateSet(1)); err == nil {
		t.Fatal("expected error for missing newsletters field")
	}
	if _, err := c.parseBatchResponse(`no json here at all`, candidateSet(1)); err == nil {
		t.Fatal("expected error for absent payload")
	}
}

func TestClassifyEmptySummaryDropped(t *testing.T) {
	t.Parallel()

	c := testClassifier(t, &scriptedCompleter{})
	results, err := c.parseBatchResponse(
		batchResponse(item(1, "   ", "Technology"), item(2, "kept", "Technology")),
		candidateSet(2))
	if err != nil {
		t.Fatalf("parseBatchResponse returned error: %v", err)
	}
	if len(results) != 1 || results[0].Summary != "kept" {
		t.Fatalf("expected only the non-empty summary, got %+v", results)
	}
}

func TestClassifyContextCancelled(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{errs: []error{errors.New("down")}}
	c := testClassifier(t, completer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Classify(ctx, candidateSet(1))
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewClassifierValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClassifier(ClassifierConfig{ApprovedGenres: domain.ApprovedGenres}, nil, nil); err == nil {
		t.Fatal("expected error for nil completer")
	}
	if _, err := NewClassifier(ClassifierConfig{}, &scriptedCompleter{}, nil); err == nil {
		t.Fatal("expected error for empty genre list")
	}
}
