package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"maildigest/internal/domain"
)

func storedSet(genres ...string) []domain.StoredNewsletter {
	records := make([]domain.StoredNewsletter, len(genres))
	for i, genre := range genres {
		records[i] = domain.StoredNewsletter{
			ID:      int64(i + 1),
			Date:    "2024-01-15",
			Sender:  "news@example.com",
			Subject: "Subject",
			Summary: "Stored summary.",
			Genre:   genre,
		}
	}
	return records
}

func testAggregator(t *testing.T, completer *scriptedCompleter) *Aggregator {
	t.Helper()

	a, err := NewAggregator(AggregatorConfig{
		Model:          "test-model",
		RetryAttempts:  2,
		ApprovedGenres: domain.ApprovedGenres,
		DefaultGenre:   domain.DefaultGenre,
	}, completer, nil)
	if err != nil {
		t.Fatalf("NewAggregator returned error: %v", err)
	}
	return a
}

func TestGroupByGenreOrderAndCoercion(t *testing.T) {
	t.Parallel()

	a := testAggregator(t, &scriptedCompleter{})
	groups := a.Group(storedSet("Finance", "Technology", "Astrology", "Finance"))

	// First-appearance order; unknown genre coerces into Technology.
	want := []string{"Finance", "Technology"}
	if len(groups.Order) != 2 {
		t.Fatalf("expected 2 genres, got %v", groups.Order)
	}
	for i, genre := range want {
		if groups.Order[i] != genre {
			t.Fatalf("position %d: expected %s, got %s", i, genre, groups.Order[i])
		}
	}
	if len(groups.Members["Technology"]) != 2 {
		t.Fatalf("coerced record must join Technology: %v", groups.Members["Technology"])
	}
	if groups.TotalRecords() != 4 {
		t.Fatalf("expected 4 total records, got %d", groups.TotalRecords())
	}
}

func TestSynthesizePerGenre(t *testing.T) {
	t.Parallel()

	longNarrative := strings.Repeat("Weekly developments in this genre. ", 3)
	completer := &scriptedCompleter{responses: []string{longNarrative, longNarrative}}
	a := testAggregator(t, completer)

	groups := a.Group(storedSet("Finance", "Technology", "Finance"))
	summaries, stats, err := a.Synthesize(context.Background(), groups)
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Genre != "Finance" || summaries[0].NewsletterCount != 2 {
		t.Fatalf("unexpected first summary: %+v", summaries[0])
	}
	if stats.GenresAttempted != 2 || stats.GenresSynthesized != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !strings.Contains(completer.prompts[0], "these 2 newsletters") {
		t.Fatalf("genre prompt must carry member count:\n%s", completer.prompts[0])
	}
}

func TestSynthesizeFailedGenreDropped(t *testing.T) {
	t.Parallel()

	// Finance fails every attempt (1 initial + 2 retries); Technology
	// succeeds on its first.
	good := strings.Repeat("A solid narrative about the week. ", 3)
	completer := &scriptedCompleter{
		errs:      []error{errors.New("down"), errors.New("down"), errors.New("down"), nil},
		responses: []string{"", "", "", good},
	}
	a := testAggregator(t, completer)

	groups := a.Group(storedSet("Finance", "Technology"))
	summaries, stats, err := a.Synthesize(context.Background(), groups)
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	if len(summaries) != 1 || summaries[0].Genre != "Technology" {
		t.Fatalf("expected only Technology to survive, got %+v", summaries)
	}
	if stats.GenresAttempted != 2 || stats.GenresSynthesized != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// The failed genre still counts in the group totals.
	if groups.TotalRecords() != 2 {
		t.Fatalf("expected totals to include the failed genre, got %d", groups.TotalRecords())
	}
	// 3 failed Finance attempts plus 1 Technology success.
	if completer.calls != 4 {
		t.Fatalf("expected 4 completion calls, got %d", completer.calls)
	}
	if stats.RetryWaits != 2 {
		t.Fatalf("expected 2 retry waits, got %d", stats.RetryWaits)
	}
}

func TestSynthesizeShortNarrativeRejected(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Enough substance to pass the length gate. ", 2)
	completer := &scriptedCompleter{responses: []string{"too short", long}}
	a := testAggregator(t, completer)

	groups := a.Group(storedSet("Finance"))
	summaries, stats, err := a.Synthesize(context.Background(), groups)
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected retry to recover, got %d summaries", len(summaries))
	}
	if completer.calls != 2 || stats.RetryWaits != 1 {
		t.Fatalf("expected one rejection then success: calls=%d waits=%d", completer.calls, stats.RetryWaits)
	}
}
