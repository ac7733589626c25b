package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"maildigest/internal/domain"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "MAILDIGEST_CONFIG"
	openRouterKeyEnv = "OPENROUTER_API_KEY"
	llmModelEnv      = "MAILDIGEST_MODEL"
	emailAddressEnv  = "EMAIL_ADDRESS"
	emailPasswordEnv = "EMAIL_PASSWORD"
	notionTokenEnv   = "NOTION_TOKEN"
	notionDBEnv      = "NOTION_DATABASE_ID"
	databasePathEnv  = "MAILDIGEST_DB"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Mailbox   MailboxConfig   `yaml:"mailbox"`
	LLM       LLMConfig       `yaml:"llm"`
	Batch     BatchConfig     `yaml:"batch"`
	Weekly    WeeklyConfig    `yaml:"weekly"`
	Genres    GenreConfig     `yaml:"genres"`
	Digest    DigestConfig    `yaml:"digest"`
	Notion    NotionConfig    `yaml:"notion"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MailboxConfig wires IMAP connection details.
type MailboxConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	MaxFetch int    `yaml:"maxFetch"`
}

// LLMConfig defines how to contact the completion API.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// BatchConfig carries the daily classifier pacing constants.
type BatchConfig struct {
	Size            int `yaml:"size"`
	IntervalSeconds int `yaml:"intervalSeconds"`
	RetryAttempts   int `yaml:"retryAttempts"`
	RetrySeconds    int `yaml:"retrySeconds"`
	MaxBodyLength   int `yaml:"maxBodyLength"`
}

// WeeklyConfig carries the weekly aggregation pacing constants plus the
// test-mode set swapped in verbatim when TestMode is enabled.
type WeeklyConfig struct {
	DaysBack             int  `yaml:"daysBack"`
	GenreIntervalSeconds int  `yaml:"genreIntervalSeconds"`
	RetryAttempts        int  `yaml:"retryAttempts"`
	RetrySeconds         int  `yaml:"retrySeconds"`
	TestMode             bool `yaml:"testMode"`
	TestGenreSeconds     int  `yaml:"testGenreSeconds"`
	TestRetrySeconds     int  `yaml:"testRetrySeconds"`
}

// GenreInterval resolves the between-genre pacing interval for the
// active mode. Test mode changes timing only, never behavior.
func (w WeeklyConfig) GenreInterval() time.Duration {
	if w.TestMode {
		return time.Duration(w.TestGenreSeconds) * time.Second
	}
	return time.Duration(w.GenreIntervalSeconds) * time.Second
}

// RetryInterval resolves the between-retry pacing interval for the
// active mode.
func (w WeeklyConfig) RetryInterval() time.Duration {
	if w.TestMode {
		return time.Duration(w.TestRetrySeconds) * time.Second
	}
	return time.Duration(w.RetrySeconds) * time.Second
}

// GenreConfig holds the approved taxonomy and coercion target.
type GenreConfig struct {
	Approved []string `yaml:"approved"`
	Default  string   `yaml:"default"`
}

// DigestConfig describes where digest documents land.
type DigestConfig struct {
	Dir string `yaml:"dir"`
}

// NotionConfig wires the optional digest publisher.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"databaseId"`
}

// SchedulerConfig defines when the daily and weekly jobs fire.
type SchedulerConfig struct {
	DailyAt   string         `yaml:"dailyAt"`
	WeeklyDay string         `yaml:"weeklyDay"`
	WeeklyAt  string         `yaml:"weeklyAt"`
	Timezone  string         `yaml:"timezone"`
	location  *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Genres.Approved) == 0 {
		cfg.Genres = defaultConfig().Genres
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(emailAddressEnv); v != "" {
		c.Mailbox.Address = v
	}

	if v := os.Getenv(emailPasswordEnv); v != "" {
		c.Mailbox.Password = v
	}

	if v := os.Getenv(openRouterKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(notionTokenEnv); v != "" {
		c.Notion.Token = v
	}

	if v := os.Getenv(notionDBEnv); v != "" {
		c.Notion.DatabaseID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Mailbox.Server != "" {
		base.Mailbox.Server = override.Mailbox.Server
	}
	if override.Mailbox.Port != 0 {
		base.Mailbox.Port = override.Mailbox.Port
	}
	if override.Mailbox.Address != "" {
		base.Mailbox.Address = override.Mailbox.Address
	}
	if override.Mailbox.Password != "" {
		base.Mailbox.Password = override.Mailbox.Password
	}
	if override.Mailbox.MaxFetch != 0 {
		base.Mailbox.MaxFetch = override.Mailbox.MaxFetch
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}

	if override.Batch.Size != 0 {
		base.Batch.Size = override.Batch.Size
	}
	if override.Batch.IntervalSeconds != 0 {
		base.Batch.IntervalSeconds = override.Batch.IntervalSeconds
	}
	if override.Batch.RetryAttempts != 0 {
		base.Batch.RetryAttempts = override.Batch.RetryAttempts
	}
	if override.Batch.RetrySeconds != 0 {
		base.Batch.RetrySeconds = override.Batch.RetrySeconds
	}
	if override.Batch.MaxBodyLength != 0 {
		base.Batch.MaxBodyLength = override.Batch.MaxBodyLength
	}

	if override.Weekly.DaysBack != 0 {
		base.Weekly.DaysBack = override.Weekly.DaysBack
	}
	if override.Weekly.GenreIntervalSeconds != 0 {
		base.Weekly.GenreIntervalSeconds = override.Weekly.GenreIntervalSeconds
	}
	if override.Weekly.RetryAttempts != 0 {
		base.Weekly.RetryAttempts = override.Weekly.RetryAttempts
	}
	if override.Weekly.RetrySeconds != 0 {
		base.Weekly.RetrySeconds = override.Weekly.RetrySeconds
	}
	if override.Weekly.TestMode {
		base.Weekly.TestMode = true
	}
	if override.Weekly.TestGenreSeconds != 0 {
		base.Weekly.TestGenreSeconds = override.Weekly.TestGenreSeconds
	}
	if override.Weekly.TestRetrySeconds != 0 {
		base.Weekly.TestRetrySeconds = override.Weekly.TestRetrySeconds
	}

	if len(override.Genres.Approved) > 0 {
		base.Genres.Approved = override.Genres.Approved
	}
	if override.Genres.Default != "" {
		base.Genres.Default = override.Genres.Default
	}

	if override.Digest.Dir != "" {
		base.Digest = override.Digest
	}

	if override.Notion.Token != "" {
		base.Notion.Token = override.Notion.Token
	}
	if override.Notion.DatabaseID != "" {
		base.Notion.DatabaseID = override.Notion.DatabaseID
	}

	if override.Scheduler.DailyAt != "" {
		base.Scheduler.DailyAt = override.Scheduler.DailyAt
	}
	if override.Scheduler.WeeklyDay != "" {
		base.Scheduler.WeeklyDay = override.Scheduler.WeeklyDay
	}
	if override.Scheduler.WeeklyAt != "" {
		base.Scheduler.WeeklyAt = override.Scheduler.WeeklyAt
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Path: "data/newsletters.db"},
		Mailbox: MailboxConfig{
			Server:   "imap.gmail.com",
			Port:     993,
			MaxFetch: 50,
		},
		LLM: LLMConfig{
			Endpoint: "https://openrouter.ai/api/v1/chat/completions",
			Model:    "google/gemini-2.0-flash-exp:free",
		},
		Batch: BatchConfig{
			Size:            10,
			IntervalSeconds: 3600,
			RetryAttempts:   3,
			RetrySeconds:    600,
			MaxBodyLength:   3000,
		},
		Weekly: WeeklyConfig{
			DaysBack:             7,
			GenreIntervalSeconds: 1800,
			RetryAttempts:        3,
			RetrySeconds:         600,
			TestGenreSeconds:     2,
			TestRetrySeconds:     1,
		},
		Genres: GenreConfig{
			Approved: domain.ApprovedGenres,
			Default:  domain.DefaultGenre,
		},
		Digest: DigestConfig{Dir: "data/digests"},
		Scheduler: SchedulerConfig{
			DailyAt:   "20:00",
			WeeklyDay: "Sunday",
			WeeklyAt:  "07:00",
			Timezone:  defaultTimezone,
			location:  tz,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
