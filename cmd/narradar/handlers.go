package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/narradar/internal/config"
	"github.com/elonfeng/narradar/internal/pipeline"
	"github.com/elonfeng/narradar/internal/scheduler"
	"github.com/elonfeng/narradar/internal/store"
	"github.com/elonfeng/narradar/pkg/alert"
	"github.com/elonfeng/narradar/pkg/scoring"
	"github.com/elonfeng/narradar/pkg/server"
)

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// setup loads config, builds the logger and opens the store.
func setup() (*config.Config, *slog.Logger, *store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, logger, db, nil
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers, cfg.Alerts.MinScore)
}

// parsePeriod resolves --start/--end against the default period.
func parsePeriod(p *pipeline.Pipeline, days int, start, end string) (time.Time, time.Time, error) {
	s, e := p.DefaultPeriod(days)
	if end != "" {
		t, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return s, e, fmt.Errorf("parse --end: %w", err)
		}
		e = t
		s = e.AddDate(0, 0, -days)
	}
	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return s, e, fmt.Errorf("parse --start: %w", err)
		}
		s = t
	}
	if e.Before(s) {
		return s, e, fmt.Errorf("period end %s is before start %s", e.Format(time.DateOnly), s.Format(time.DateOnly))
	}
	return s, e, nil
}

func runOnce(start, end string) error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := pipeline.FromConfig(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	s, e, err := parsePeriod(p, cfg.Pipeline.PeriodDays, start, end)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := p.Run(ctx, s, e)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	fmt.Println(res.Report.ID)
	if res.ExportPath != "" {
		fmt.Fprintf(os.Stderr, "report written to %s\n", res.ExportPath)
	}
	return nil
}

func runScore(jsonOutput bool, limit int) error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := pipeline.FromConfig(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	scored, skipped, err := p.Score(context.Background())
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", s.Key, s.Err)
	}
	scored = scoring.TopK(scored, limit)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scored)
	}

	if len(scored) == 0 {
		fmt.Println("no signals scored (check fixtures.dir and fixtures.signals)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tTOTAL\tNORM\tMOMENTUM\tNOVELTY\tQUALITY\tKEY")
	for i, s := range scored {
		fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.2f\t%s\n",
			i+1, s.TotalScore, s.NormalizedScore, s.Momentum, s.Novelty, s.Quality, s.Signal.Key)
	}
	return w.Flush()
}

func runReports(jsonOutput bool, limit int) error {
	_, _, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := db.ListReports(context.Background(), store.ReportListOpts{Limit: limit})
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	if len(reports) == 0 {
		fmt.Println("no reports found (try: narradar run)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPERIOD\tDEMO\tCREATED")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s..%s\t%t\t%s\n",
			r.ID, r.Status,
			r.PeriodStart.Format(time.DateOnly), r.PeriodEnd.Format(time.DateOnly),
			r.DemoMode, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if port == 0 {
		port = cfg.Server.Port
	}

	p, err := pipeline.FromConfig(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.New(db, p, cfg.Pipeline.PeriodDays, port, logger).ListenAndServe(ctx)
}

func runDaemon(port int) error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if port == 0 {
		port = cfg.Server.Port
	}

	p, err := pipeline.FromConfig(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(p, db, buildAlertManager(cfg),
		cfg.Schedule.ParseRunInterval(),
		cfg.Pipeline.PeriodDays,
		cfg.Server.BaseURL,
		logger,
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	err = server.New(db, p, cfg.Pipeline.PeriodDays, port, logger).ListenAndServe(ctx)
	logger.Info("shutting down")
	return err
}
