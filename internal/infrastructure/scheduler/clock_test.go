package scheduler

import (
	"testing"
	"time"

	"maildigest/internal/config"
)

func newTestScheduler(t *testing.T) *ClockScheduler {
	t.Helper()

	c, err := NewClockScheduler(config.SchedulerConfig{
		DailyAt:   "20:00",
		WeeklyDay: "Sunday",
		WeeklyAt:  "07:00",
	}, nil)
	if err != nil {
		t.Fatalf("NewClockScheduler returned error: %v", err)
	}
	return c
}

func TestNextDaily(t *testing.T) {
	t.Parallel()

	c := newTestScheduler(t)

	// Before the fire time: today.
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	if got := c.nextDaily(now); !got.Equal(time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next daily: %v", got)
	}

	// After the fire time: tomorrow.
	now = time.Date(2024, 1, 10, 21, 0, 0, 0, time.UTC)
	if got := c.nextDaily(now); !got.Equal(time.Date(2024, 1, 11, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next daily: %v", got)
	}

	// Exactly at the fire time: tomorrow, never an immediate re-fire.
	now = time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)
	if got := c.nextDaily(now); !got.Equal(time.Date(2024, 1, 11, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next daily: %v", got)
	}
}

func TestNextWeekly(t *testing.T) {
	t.Parallel()

	c := newTestScheduler(t)

	// Wednesday: the coming Sunday.
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	want := time.Date(2024, 1, 14, 7, 0, 0, 0, time.UTC)
	if got := c.nextWeekly(now); !got.Equal(want) {
		t.Fatalf("unexpected next weekly: %v", got)
	}

	// Sunday before 07:00: same day.
	now = time.Date(2024, 1, 14, 5, 0, 0, 0, time.UTC)
	if got := c.nextWeekly(now); !got.Equal(want) {
		t.Fatalf("unexpected next weekly: %v", got)
	}

	// Sunday after 07:00: next week.
	now = time.Date(2024, 1, 14, 8, 0, 0, 0, time.UTC)
	want = time.Date(2024, 1, 21, 7, 0, 0, 0, time.UTC)
	if got := c.nextWeekly(now); !got.Equal(want) {
		t.Fatalf("unexpected next weekly: %v", got)
	}
}

func TestNewClockSchedulerRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := []config.SchedulerConfig{
		{DailyAt: "25:00", WeeklyDay: "Sunday", WeeklyAt: "07:00"},
		{DailyAt: "20:00", WeeklyDay: "Sunday", WeeklyAt: "nope"},
		{DailyAt: "20:00", WeeklyDay: "Someday", WeeklyAt: "07:00"},
	}
	for _, cfg := range cases {
		if _, err := NewClockScheduler(cfg, nil); err == nil {
			t.Errorf("expected error for config %+v", cfg)
		}
	}
}
