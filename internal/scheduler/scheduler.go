package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elonfeng/narradar/internal/pipeline"
	"github.com/elonfeng/narradar/internal/store"
	"github.com/elonfeng/narradar/pkg/alert"
)

// Runner runs one pipeline pass.
type Runner interface {
	Run(ctx context.Context, start, end time.Time) (*pipeline.Result, error)
	DefaultPeriod(days int) (start, end time.Time)
}

// Scheduler runs the pipeline periodically and alerts on new narratives.
type Scheduler struct {
	runner     Runner
	store      store.Store
	alertMgr   *alert.Manager
	interval   time.Duration
	periodDays int
	baseURL    string
	logger     *slog.Logger
}

// New creates a new scheduler. baseURL, when set, is used to link alerts to
// the HTTP API.
func New(
	r Runner,
	s store.Store,
	alertMgr *alert.Manager,
	interval time.Duration,
	periodDays int,
	baseURL string,
	logger *slog.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = 14 * 24 * time.Hour
	}
	if periodDays <= 0 {
		periodDays = 14
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:     r,
		store:      s,
		alertMgr:   alertMgr,
		interval:   interval,
		periodDays: periodDays,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	s.logger.Info("scheduler: initial run")
	s.RunOnce(ctx)

	s.logger.Info("scheduler: running", "interval", s.interval, "period_days", s.periodDays)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs the pipeline over the default period and alerts on its narratives.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start, end := s.runner.DefaultPeriod(s.periodDays)
	res, err := s.runner.Run(ctx, start, end)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		s.logger.Info("scheduler: run skipped, another run is in progress")
		return
	}
	if err != nil {
		s.logger.Error("scheduler: run failed", "error", err)
		return
	}
	s.alert(ctx, res.Report)
}

func (s *Scheduler) alert(ctx context.Context, report *store.Report) {
	if s.alertMgr == nil || !s.alertMgr.HasNotifiers() {
		return
	}

	narratives, err := s.store.ListNarratives(ctx, store.NarrativeListOpts{
		ReportID:  report.ID,
		Unalerted: true,
	})
	if err != nil {
		s.logger.Error("scheduler: list narratives", "report", report.ID, "error", err)
		return
	}

	for i := range narratives {
		n := s.notification(report, &narratives[i])
		if !s.alertMgr.Eligible(n) {
			continue
		}
		if err := s.alertMgr.Broadcast(ctx, n); err != nil {
			s.logger.Warn("scheduler: alert failed", "narrative", n.Title, "error", err)
			continue
		}
		if err := s.store.MarkAlerted(ctx, n.NarrativeID); err != nil {
			s.logger.Warn("scheduler: mark alerted", "narrative", n.NarrativeID, "error", err)
			continue
		}
		s.logger.Info("scheduler: alerted", "narrative", n.Title, "score", n.Score())
	}
}

func (s *Scheduler) notification(report *store.Report, n *store.Narrative) *alert.Notification {
	out := &alert.Notification{
		ReportID:    report.ID,
		NarrativeID: n.ID,
		Title:       n.Title,
		Summary:     n.Summary,
		Momentum:    n.Momentum,
		Novelty:     n.Novelty,
		Saturation:  n.Saturation,
		Members:     n.MemberLabels,
	}
	if s.baseURL != "" {
		out.URL = fmt.Sprintf("%s/api/v1/narratives/%s", s.baseURL, n.ID)
	}
	for _, idea := range n.Ideas {
		out.Ideas = append(out.Ideas, alert.IdeaSummary{
			Title:      idea.Title,
			Saturation: idea.SaturationLevel,
			Score:      idea.SaturationScore,
		})
	}
	return out
}
