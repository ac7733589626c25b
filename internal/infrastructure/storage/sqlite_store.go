package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"maildigest/internal/domain"
	"maildigest/internal/ports"
)

// SQLiteStore persists classified newsletters. Records are written once
// and never updated or deleted; re-running a daily cycle over the same
// mail inserts duplicates.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ ports.NewsletterStore = (*SQLiteStore)(nil)

// Open initializes or connects to the newsletter database.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS newsletters (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            date TEXT NOT NULL,
            sender TEXT NOT NULL,
            subject TEXT NOT NULL,
            summary TEXT NOT NULL,
            genre TEXT NOT NULL,
            word_count INTEGER NOT NULL,
            created_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_newsletters_date ON newsletters(date)`,
		`CREATE INDEX IF NOT EXISTS idx_newsletters_genre ON newsletters(genre)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Store inserts the classified newsletters inside one transaction: all
// rows of a call land or none do. Dates are normalized to YYYY-MM-DD at
// write time.
func (s *SQLiteStore) Store(ctx context.Context, newsletters []domain.ClassifiedNewsletter) error {
	if len(newsletters) == 0 {
		return nil
	}

	builder := sq.Insert("newsletters").
		Columns("date", "sender", "subject", "summary", "genre", "word_count", "created_at")

	createdAt := s.now().UTC().Format(time.RFC3339)
	for _, n := range newsletters {
		builder = builder.Values(
			s.normalizeDate(n.Date),
			n.Sender,
			n.Subject,
			n.Summary,
			n.Genre,
			n.WordCount,
			createdAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert newsletters: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit newsletters: %w", err)
	}

	return nil
}

// QueryRange returns records with date in [startDate, endDate]
// inclusive, newest date first; same-date records keep insertion order.
func (s *SQLiteStore) QueryRange(ctx context.Context, startDate, endDate string) ([]domain.StoredNewsletter, error) {
	query, args, err := sq.Select("id", "date", "sender", "subject", "summary", "genre", "word_count", "created_at").
		From("newsletters").
		Where(sq.And{sq.GtOrEq{"date": startDate}, sq.LtOrEq{"date": endDate}}).
		OrderBy("date DESC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build range query: %w", err)
	}

	return s.queryRecords(ctx, query, args...)
}

// QueryGenre returns records of one genre from the last daysBack days.
// Diagnostics path; aggregation uses QueryRange plus in-memory grouping.
func (s *SQLiteStore) QueryGenre(ctx context.Context, genre string, daysBack int) ([]domain.StoredNewsletter, error) {
	cutoff := s.now().AddDate(0, 0, -daysBack).Format("2006-01-02")

	query, args, err := sq.Select("id", "date", "sender", "subject", "summary", "genre", "word_count", "created_at").
		From("newsletters").
		Where(sq.And{sq.Eq{"genre": genre}, sq.GtOrEq{"date": cutoff}}).
		OrderBy("date DESC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build genre query: %w", err)
	}

	return s.queryRecords(ctx, query, args...)
}

// Stats reports database totals for operator diagnostics.
type Stats struct {
	Total   int
	Recent  int
	ByGenre map[string]int
}

// Stats computes overall, per-genre, and trailing-week counts.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByGenre: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM newsletters`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("count newsletters: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -7).Format("2006-01-02")
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM newsletters WHERE date >= ?`, cutoff).Scan(&stats.Recent); err != nil {
		return stats, fmt.Errorf("count recent newsletters: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT genre, COUNT(*) FROM newsletters GROUP BY genre ORDER BY COUNT(*) DESC`)
	if err != nil {
		return stats, fmt.Errorf("count by genre: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var genre string
		var count int
		if err := rows.Scan(&genre, &count); err != nil {
			return stats, fmt.Errorf("scan genre count: %w", err)
		}
		stats.ByGenre[genre] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("genre rows iteration: %w", err)
	}

	return stats, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]domain.StoredNewsletter, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query newsletters: %w", err)
	}
	defer rows.Close()

	var records []domain.StoredNewsletter
	for rows.Next() {
		var record domain.StoredNewsletter
		var createdAt string
		if err := rows.Scan(&record.ID, &record.Date, &record.Sender, &record.Subject,
			&record.Summary, &record.Genre, &record.WordCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan newsletter: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			record.CreatedAt = parsed
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

// normalizeDate converts raw email Date headers (RFC 2822 style) to
// YYYY-MM-DD. Already-normalized input passes through; anything
// unparseable falls back to today.
func (s *SQLiteStore) normalizeDate(raw string) string {
	if raw == "" {
		return s.now().Format("2006-01-02")
	}
	if len(raw) == 10 {
		if _, err := time.Parse("2006-01-02", raw); err == nil {
			return raw
		}
	}
	if parsed, err := mail.ParseDate(raw); err == nil {
		return parsed.Format("2006-01-02")
	}
	return s.now().Format("2006-01-02")
}
