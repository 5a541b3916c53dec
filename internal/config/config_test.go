package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/narradar/pkg/scoring"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NARRADAR_DB_PATH", "NARRADAR_FIXTURES_DIR", "GITHUB_TOKEN", "OPENAI_API_KEY",
		"ANTHROPIC_API_KEY", "SLACK_WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "DEMO_MODE",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 14*24*time.Hour, cfg.Schedule.ParseRunInterval())
	assert.Equal(t, 20, cfg.Pipeline.TopK)
	assert.Equal(t, 10, cfg.Pipeline.MaxNarratives)
	assert.Equal(t, 14*24*time.Hour, cfg.Period())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/narradar-test.db", cfg.Database.Path)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.ParseRunInterval())
	assert.Equal(t, "/data/fixtures/signals.json", cfg.Fixtures.Path(cfg.Fixtures.Signals))
	assert.Equal(t, "/abs/x.json", cfg.Fixtures.Path("/abs/x.json"))

	sc := cfg.ScoringConfig()
	assert.Equal(t, 0.5, sc.Weights[scoring.DomainSocial][scoring.ZMentionsDelta])
	assert.Equal(t, 0.25, sc.Weights[scoring.DomainOnchain][scoring.ZTxCount])
	assert.Equal(t, 30, sc.NoveltyWindowDays)
	assert.Equal(t, scoring.DefaultNoveltyMultiplier, sc.NoveltyMultiplier)
	assert.Equal(t, 0.25, sc.Quality.PenaltyMultiplier)
	assert.Equal(t, scoring.DefaultWalletShareThreshold, sc.Quality.WalletShareThreshold)

	engine, err := cfg.ClusterEngine()
	require.NoError(t, err)
	assert.Equal(t, []string{"dbscan"}, engine.Strategies())

	sat := cfg.SaturationScorer()
	assert.Equal(t, 5, sat.TopK)
	assert.Equal(t, 0.75, sat.High)

	assert.Equal(t, 8, cfg.Pipeline.TopK)
	assert.True(t, cfg.Pipeline.DemoMode)
	assert.Equal(t, "alpha-labs/bridge", cfg.Sources.GitHub.Repos["alpha-bridge"])
	assert.True(t, cfg.Sources.HackerNews.Enabled)
	assert.Equal(t, 20, cfg.Sources.HackerNews.MaxHits)
	require.Len(t, cfg.RSSFeeds(), 1)
	assert.Equal(t, "Protocol Blog", cfg.RSSFeeds()[0].Name)
	assert.Equal(t, 1.5, cfg.Alerts.MinScore)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./narradar.db", cfg.Database.Path)

	engine, err := cfg.ClusterEngine()
	require.NoError(t, err)
	assert.Equal(t, []string{"hdbscan", "dbscan"}, engine.Strategies())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)
	_, err := Load("testdata/invalid.yaml")
	require.Error(t, err)
	assert.ErrorContains(t, err, `cluster.algorithm "kmeans"`)
	assert.ErrorContains(t, err, "medium_threshold 0.6 exceeds high_threshold 0.3")
}

func TestValidateThresholds(t *testing.T) {
	cfg := Default()
	cfg.Scoring.Novelty.Multiplier = 0
	require.NoError(t, cfg.Validate(), "zero multiplier turns novelty off")
	assert.Equal(t, 0.0, cfg.ScoringConfig().NoveltyMultiplier)

	cfg.Scoring.Novelty.Multiplier = -0.5
	cfg.Scoring.Novelty.WindowDays = 0
	cfg.Saturation.MediumThreshold = 0
	cfg.Saturation.HighThreshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "scoring.novelty.multiplier must not be negative")
	assert.ErrorContains(t, err, "scoring.novelty.window_days must be positive")
	assert.ErrorContains(t, err, "saturation.medium_threshold must be in (0, 1], got 0")
	assert.ErrorContains(t, err, "saturation.high_threshold must be in (0, 1], got 1.5")
}

func TestParseRunIntervalFallback(t *testing.T) {
	assert.Equal(t, 14*24*time.Hour, ScheduleConfig{RunInterval: "fortnightly"}.ParseRunInterval())
	assert.Equal(t, 14*24*time.Hour, ScheduleConfig{RunInterval: "-1h"}.ParseRunInterval())
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NARRADAR_DB_PATH", "/var/lib/narradar.db")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.example/x")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("DEMO_MODE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/narradar.db", cfg.Database.Path)
	assert.Equal(t, "ghp_test", cfg.Sources.GitHub.Token)
	assert.True(t, cfg.Alerts.Slack.Enabled)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.True(t, cfg.Pipeline.DemoMode)
}

func TestOpenAIKeyFeedsEmbeddings(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-openai", cfg.Embeddings.APIKey)
	assert.False(t, cfg.Embeddings.Enabled)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is already set, even to "".
	require.NoError(t, os.Unsetenv("NARRADAR_FIXTURES_DIR"))
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NARRADAR_FIXTURES_DIR=/srv/fixtures\n"), 0o644))

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/fixtures", cfg.Fixtures.Dir)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
