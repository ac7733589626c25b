package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maildigest/internal/config"
	"maildigest/internal/ports"
)

// ClockScheduler fires the daily job at a fixed wall-clock time every
// day and the weekly job at a fixed weekday and time, both in the
// configured location.
type ClockScheduler struct {
	dailyAt   clockTime
	weeklyAt  clockTime
	weeklyDay time.Weekday
	location  *time.Location
	logger    *slog.Logger
	stop      chan struct{}
	now       func() time.Time
}

var _ ports.Scheduler = (*ClockScheduler)(nil)

type clockTime struct {
	hour   int
	minute int
}

// NewClockScheduler parses the configured fire times up front so
// misconfiguration fails at startup rather than at 20:00.
func NewClockScheduler(cfg config.SchedulerConfig, logger *slog.Logger) (*ClockScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	daily, err := parseClockTime(cfg.DailyAt)
	if err != nil {
		return nil, fmt.Errorf("parse dailyAt: %w", err)
	}
	weekly, err := parseClockTime(cfg.WeeklyAt)
	if err != nil {
		return nil, fmt.Errorf("parse weeklyAt: %w", err)
	}
	day, err := parseWeekday(cfg.WeeklyDay)
	if err != nil {
		return nil, err
	}

	return &ClockScheduler{
		dailyAt:   daily,
		weeklyAt:  weekly,
		weeklyDay: day,
		location:  cfg.Location(),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start launches the timer goroutines. Jobs run synchronously inside
// their goroutine so a long daily run delays only the next daily fire.
func (c *ClockScheduler) Start(ctx context.Context, daily, weekly func(time.Time)) error {
	if c.stop != nil {
		return nil
	}
	c.stop = make(chan struct{})

	if daily != nil {
		go c.loop(ctx, "daily", daily, c.nextDaily)
	}
	if weekly != nil {
		go c.loop(ctx, "weekly", weekly, c.nextWeekly)
	}

	return nil
}

// Stop halts the timer goroutines.
func (c *ClockScheduler) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}

func (c *ClockScheduler) loop(ctx context.Context, name string, job func(time.Time), next func(time.Time) time.Time) {
	for {
		fireAt := next(c.now().In(c.location))
		c.logger.Info("job scheduled", "job", name, "at", fireAt.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(fireAt))
		select {
		case t := <-timer.C:
			job(t.In(c.location))
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.stop:
			timer.Stop()
			return
		}
	}
}

func (c *ClockScheduler) nextDaily(now time.Time) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(),
		c.dailyAt.hour, c.dailyAt.minute, 0, 0, c.location)
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

func (c *ClockScheduler) nextWeekly(now time.Time) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(),
		c.weeklyAt.hour, c.weeklyAt.minute, 0, 0, c.location)

	offset := (int(c.weeklyDay) - int(now.Weekday()) + 7) % 7
	fire = fire.AddDate(0, 0, offset)
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 7)
	}
	return fire
}

func parseClockTime(raw string) (clockTime, error) {
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return clockTime{}, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	return clockTime{hour: parsed.Hour(), minute: parsed.Minute()}, nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.EqualFold(day.String(), raw) {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", raw)
}
