// Package config loads MineWatch settings from the environment with an
// optional YAML overlay. Environment variables win over file values so
// deployments can patch single settings without editing the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the system. Zero values are filled with
// the defaults below before parsing.
type Config struct {
	// Source agent polling.
	NewsQuery        string        `env:"MINEWATCH_NEWS_QUERY" yaml:"news_query"`
	NewsInterval     time.Duration `env:"MINEWATCH_NEWS_INTERVAL" yaml:"news_interval"`
	NewsBatchSize    int           `env:"MINEWATCH_NEWS_BATCH" yaml:"news_batch"`
	MonitorInterval  time.Duration `env:"MINEWATCH_MONITOR_INTERVAL" yaml:"monitor_interval"`
	MonitorMaxLinks  int           `env:"MINEWATCH_MONITOR_MAX_LINKS" yaml:"monitor_max_links"`
	ListingURL       string        `env:"MINEWATCH_LISTING_URL" yaml:"listing_url"`
	UserAgent        string        `env:"MINEWATCH_USER_AGENT" yaml:"user_agent"`
	SeenArticleLimit int           `env:"MINEWATCH_SEEN_LIMIT" yaml:"seen_article_limit"`

	// Search backend.
	SearchEndpoint string `env:"MINEWATCH_SEARCH_ENDPOINT" yaml:"search_endpoint"`
	SearchAPIKey   string `env:"MINEWATCH_SEARCH_API_KEY" yaml:"search_api_key"`

	// Store of record.
	StoreDSN string `env:"MINEWATCH_STORE_DSN" yaml:"store_dsn"`
	DataDir  string `env:"MINEWATCH_DATA_DIR" yaml:"data_dir"`

	// Handshake and workflow tuning.
	ScanTimeout time.Duration `env:"MINEWATCH_SCAN_TIMEOUT" yaml:"scan_timeout"`

	// Periodic jobs, cron expressions evaluated each minute.
	AnalysisSchedule string `env:"MINEWATCH_ANALYSIS_SCHEDULE" yaml:"analysis_schedule"`
	AuditSchedule    string `env:"MINEWATCH_AUDIT_SCHEDULE" yaml:"audit_schedule"`
	AuditWindowDays  int    `env:"MINEWATCH_AUDIT_WINDOW_DAYS" yaml:"audit_window_days"`

	// Conversational path.
	ChatHistoryLimit int `env:"MINEWATCH_CHAT_HISTORY_LIMIT" yaml:"chat_history_limit"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		NewsQuery:        "recent coal mining accidents in India",
		NewsInterval:     5 * time.Minute,
		NewsBatchSize:    10,
		MonitorInterval:  5 * time.Minute,
		MonitorMaxLinks:  5,
		ListingURL:       "https://www.dgms.gov.in/UserView/index?mid=1362",
		UserAgent:        "MineWatch/1.0",
		SeenArticleLimit: 2048,
		StoreDSN:         "file:minewatch.db?_journal_mode=WAL",
		DataDir:          "data",
		ScanTimeout:      2 * time.Minute,
		AnalysisSchedule: "0 * * * *",  // hourly
		AuditSchedule:    "0 6 * * *",  // daily
		AuditWindowDays:  365,
		ChatHistoryLimit: 10,
	}
}

// Load builds a Config from defaults, an optional YAML file (path may be
// empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the agents cannot run with.
func (c Config) Validate() error {
	g := gronx.New()
	if !g.IsValid(c.AnalysisSchedule) {
		return fmt.Errorf("config: invalid analysis schedule %q", c.AnalysisSchedule)
	}
	if !g.IsValid(c.AuditSchedule) {
		return fmt.Errorf("config: invalid audit schedule %q", c.AuditSchedule)
	}
	if c.NewsInterval <= 0 || c.MonitorInterval <= 0 {
		return fmt.Errorf("config: polling intervals must be positive")
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("config: scan timeout must be positive")
	}
	if c.ChatHistoryLimit < 1 {
		return fmt.Errorf("config: chat history limit must be at least 1")
	}
	return nil
}
