package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/narradar/pkg/cluster"
	"github.com/elonfeng/narradar/pkg/saturation"
	"github.com/elonfeng/narradar/pkg/scoring"
	"github.com/elonfeng/narradar/pkg/source"
)

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Fixtures   FixturesConfig   `yaml:"fixtures"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Cluster    ClusterConfig    `yaml:"cluster"`
	Saturation SaturationConfig `yaml:"saturation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Sources    SourcesConfig    `yaml:"sources"`
	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Server     ServerConfig     `yaml:"server"`
	Filter     FilterConfig     `yaml:"filter"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the pipeline run interval.
type ScheduleConfig struct {
	RunInterval string `yaml:"run_interval"`
}

// ParseRunInterval returns the run interval as time.Duration.
func (s ScheduleConfig) ParseRunInterval() time.Duration {
	d, err := time.ParseDuration(s.RunInterval)
	if err != nil || d <= 0 {
		return 14 * 24 * time.Hour
	}
	return d
}

// FixturesConfig locates the input fixture files. Relative file names are
// resolved against Dir.
type FixturesConfig struct {
	Dir               string `yaml:"dir"`
	Signals           string `yaml:"signals"`
	Embeddings        string `yaml:"embeddings"`
	Projects          string `yaml:"projects"`
	ProjectEmbeddings string `yaml:"project_embeddings"`
}

// Path resolves a fixture file name against Dir.
func (f FixturesConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.Dir, name)
}

// ScoringConfig configures momentum, novelty and quality scoring.
type ScoringConfig struct {
	Weights scoring.Weights `yaml:"weights"`
	Clamp   float64         `yaml:"clamp"`
	Novelty NoveltyConfig   `yaml:"novelty"`
	Quality QualityConfig   `yaml:"quality"`
}

// NoveltyConfig configures the novelty bonus.
type NoveltyConfig struct {
	WindowDays int     `yaml:"window_days"`
	Multiplier float64 `yaml:"multiplier"`
}

// QualityConfig configures the spam heuristics.
type QualityConfig struct {
	WalletShareThreshold float64 `yaml:"wallet_share_threshold"`
	RetentionThreshold   float64 `yaml:"retention_threshold"`
	HypeRatio            float64 `yaml:"hype_ratio"`
	PenaltyMultiplier    float64 `yaml:"penalty_multiplier"`
}

// ClusterConfig configures narrative clustering.
type ClusterConfig struct {
	Algorithm        string  `yaml:"algorithm"` // "hdbscan" or "dbscan"
	MinClusterSize   int     `yaml:"min_cluster_size"`
	FallbackRadius   float64 `yaml:"fallback_radius"`
	HDBSCANMaxPoints int     `yaml:"hdbscan_max_points"`
}

// SaturationConfig configures idea saturation scoring.
type SaturationConfig struct {
	TopK            int     `yaml:"top_k"`
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
}

// PipelineConfig configures a single run.
type PipelineConfig struct {
	TopK              int    `yaml:"top_k"`
	MaxNarratives     int    `yaml:"max_narratives"`
	IdeasPerNarrative int    `yaml:"ideas_per_narrative"`
	PeriodDays        int    `yaml:"period_days"`
	ReportsDir        string `yaml:"reports_dir"`
	DemoMode          bool   `yaml:"demo_mode"`
}

// SourcesConfig holds configuration for signal enrichment and investigation.
type SourcesConfig struct {
	RSS        RSSConfig        `yaml:"rss"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	GitHub     GitHubConfig     `yaml:"github"`
}

// HackerNewsConfig for the Hacker News mention enricher.
type HackerNewsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	MaxHits int    `yaml:"max_hits"`
}

// RSSConfig for the RSS mention enricher.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// GitHubConfig for the repository inspector. Repos maps entity keys to
// owner/repo slugs for keys that are not slugs themselves.
type GitHubConfig struct {
	Token   string            `yaml:"token"`
	BaseURL string            `yaml:"base_url"`
	Repos   map[string]string `yaml:"repos"`
}

// LLMConfig configures the optional narrative writer.
type LLMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // custom endpoint (optional)
}

// EmbeddingsConfig configures on-demand embeddings for keys missing from the fixture store.
type EmbeddingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Webhook  WebhookConfig `yaml:"webhook"`
	MinScore float64       `yaml:"min_score"` // momentum + novelty
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // used for links in alerts
}

// FilterConfig extends the snippet classifier keyword lists.
type FilterConfig struct {
	HypeKeywords []string `yaml:"hype_keywords"`
	PainKeywords []string `yaml:"pain_keywords"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./narradar.db"},
		Schedule: ScheduleConfig{RunInterval: "336h"},
		Fixtures: FixturesConfig{
			Dir:               "./fixtures",
			Signals:           "signals.json",
			Embeddings:        "embeddings.json",
			Projects:          "projects.json",
			ProjectEmbeddings: "projects_embeddings.json",
		},
		Scoring: ScoringConfig{
			Weights: scoring.DefaultWeights(),
			Clamp:   scoring.DefaultClamp,
			Novelty: NoveltyConfig{
				WindowDays: scoring.DefaultNoveltyWindowDays,
				Multiplier: scoring.DefaultNoveltyMultiplier,
			},
			Quality: QualityConfig{
				WalletShareThreshold: scoring.DefaultWalletShareThreshold,
				RetentionThreshold:   scoring.DefaultRetentionThreshold,
				HypeRatio:            scoring.DefaultHypeRatio,
				PenaltyMultiplier:    scoring.DefaultPenaltyMultiplier,
			},
		},
		Cluster: ClusterConfig{
			Algorithm:        "hdbscan",
			MinClusterSize:   cluster.DefaultMinClusterSize,
			FallbackRadius:   cluster.DefaultEps,
			HDBSCANMaxPoints: 2000,
		},
		Saturation: SaturationConfig{
			TopK:            saturation.DefaultTopK,
			HighThreshold:   saturation.DefaultHighThreshold,
			MediumThreshold: saturation.DefaultMediumThreshold,
		},
		Pipeline: PipelineConfig{
			TopK:              20,
			MaxNarratives:     10,
			IdeasPerNarrative: 5,
			PeriodDays:        14,
			ReportsDir:        "./reports",
		},
		Sources: SourcesConfig{
			HackerNews: HackerNewsConfig{MaxHits: 20},
			GitHub:     GitHubConfig{BaseURL: "https://api.github.com"},
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
		},
		Alerts: AlertsConfig{MinScore: 1.0},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// LoadDotEnv loads variables from path (".env" when empty) into the process
// environment without overriding existing values. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from a YAML file, applies env var overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NARRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NARRADAR_FIXTURES_DIR"); v != "" {
		cfg.Fixtures.Dir = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Sources.GitHub.Token = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "openai"
		if cfg.Embeddings.APIKey == "" {
			cfg.Embeddings.APIKey = v
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "anthropic"
	}
	if v := os.Getenv("DEMO_MODE"); v != "" {
		if demo, err := strconv.ParseBool(v); err == nil {
			cfg.Pipeline.DemoMode = demo
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Cluster.Algorithm {
	case "", "hdbscan", "dbscan":
	default:
		errs = append(errs, fmt.Errorf("cluster.algorithm %q: want hdbscan or dbscan", c.Cluster.Algorithm))
	}
	if c.Cluster.FallbackRadius <= 0 {
		errs = append(errs, fmt.Errorf("cluster.fallback_radius must be positive, got %g", c.Cluster.FallbackRadius))
	}
	if c.Scoring.Novelty.Multiplier < 0 {
		errs = append(errs, fmt.Errorf("scoring.novelty.multiplier must not be negative, got %g", c.Scoring.Novelty.Multiplier))
	}
	if c.Scoring.Novelty.WindowDays <= 0 {
		errs = append(errs, fmt.Errorf("scoring.novelty.window_days must be positive, got %d", c.Scoring.Novelty.WindowDays))
	}
	if t := c.Saturation.HighThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("saturation.high_threshold must be in (0, 1], got %g", t))
	}
	if t := c.Saturation.MediumThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("saturation.medium_threshold must be in (0, 1], got %g", t))
	}
	if c.Saturation.MediumThreshold > c.Saturation.HighThreshold {
		errs = append(errs, fmt.Errorf("saturation.medium_threshold %g exceeds high_threshold %g",
			c.Saturation.MediumThreshold, c.Saturation.HighThreshold))
	}
	if p := c.Scoring.Quality.PenaltyMultiplier; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("scoring.quality.penalty_multiplier must be in [0, 1], got %g", p))
	}
	if c.Pipeline.TopK < 0 {
		errs = append(errs, fmt.Errorf("pipeline.top_k must not be negative, got %d", c.Pipeline.TopK))
	}
	if c.Pipeline.PeriodDays <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.period_days must be positive, got %d", c.Pipeline.PeriodDays))
	}
	if c.LLM.Enabled && c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		errs = append(errs, fmt.Errorf("llm.provider %q: want openai or anthropic", c.LLM.Provider))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ScoringConfig builds the scorer configuration.
func (c *Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		Weights:           c.Scoring.Weights,
		Clamp:             c.Scoring.Clamp,
		NoveltyWindowDays: c.Scoring.Novelty.WindowDays,
		NoveltyMultiplier: c.Scoring.Novelty.Multiplier,
		Quality: scoring.QualityFilter{
			WalletShareThreshold: c.Scoring.Quality.WalletShareThreshold,
			RetentionThreshold:   c.Scoring.Quality.RetentionThreshold,
			HypeRatio:            c.Scoring.Quality.HypeRatio,
			PenaltyMultiplier:    c.Scoring.Quality.PenaltyMultiplier,
		},
	}
}

// ClusterEngine builds the configured clustering engine.
func (c *Config) ClusterEngine() (*cluster.Engine, error) {
	return cluster.NewEngineFromName(c.Cluster.Algorithm, c.Cluster.FallbackRadius, c.Cluster.HDBSCANMaxPoints)
}

// SaturationScorer builds the saturation scorer.
func (c *Config) SaturationScorer() saturation.Scorer {
	return saturation.Scorer{
		TopK:   c.Saturation.TopK,
		High:   c.Saturation.HighThreshold,
		Medium: c.Saturation.MediumThreshold,
	}
}

// RSSFeeds converts the configured feeds for the enricher.
func (c *Config) RSSFeeds() []source.RSSFeed {
	feeds := make([]source.RSSFeed, len(c.Sources.RSS.Feeds))
	for i, f := range c.Sources.RSS.Feeds {
		feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
	}
	return feeds
}

// Period returns the lookback window of one run.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Pipeline.PeriodDays) * 24 * time.Hour
}
