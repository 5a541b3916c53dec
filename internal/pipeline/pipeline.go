// Package pipeline runs one end-to-end narrative detection pass: ingest,
// score, investigate, cluster, write narratives and ideas, persist and export.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elonfeng/narradar/internal/store"
	"github.com/elonfeng/narradar/pkg/cluster"
	"github.com/elonfeng/narradar/pkg/embed"
	"github.com/elonfeng/narradar/pkg/investigate"
	"github.com/elonfeng/narradar/pkg/narrative"
	"github.com/elonfeng/narradar/pkg/scoring"
	"github.com/elonfeng/narradar/pkg/source"
)

// ErrRunInProgress is returned by Run while another run holds the pipeline.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Options wires the pipeline's collaborators.
type Options struct {
	Store        store.Store
	Source       source.Source
	Enrichers    []source.Enricher
	Scorer       *scoring.Scorer
	Investigator *investigate.Investigator
	Resolver     *embed.Resolver
	Engine       *cluster.Engine
	Generator    *narrative.Generator
	Competitors  *investigate.CompetitorSearch

	TopK           int
	MaxNarratives  int
	MinClusterSize int
	ReportsDir     string // empty disables JSON export
	DemoMode       bool
	ConfigJSON     []byte // hashed into the report hash

	Logger *slog.Logger
	Now    func() time.Time
}

// Pipeline runs detection passes. Only one pass runs at a time.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// Result summarises a finished run.
type Result struct {
	Report     *store.Report
	Narratives []store.Narrative
	Signals    int
	Skipped    []scoring.SkippedSignal
	ExportPath string
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.NewScorer(scoring.DefaultConfig())
	}
	if opts.Investigator == nil {
		opts.Investigator = investigate.NewInvestigator()
	}
	if opts.Resolver == nil {
		opts.Resolver = embed.NewResolver(nil, nil, logger)
	}
	if opts.Generator == nil {
		opts.Generator = narrative.NewGenerator(nil, 0, logger)
	}
	if opts.MinClusterSize <= 0 {
		opts.MinClusterSize = cluster.DefaultMinClusterSize
	}
	return &Pipeline{opts: opts, logger: logger, now: now}
}

// DefaultPeriod returns the days-long window ending today (UTC midnight).
func (p *Pipeline) DefaultPeriod(days int) (start, end time.Time) {
	end = p.now().UTC().Truncate(24 * time.Hour)
	return end.AddDate(0, 0, -days), end
}

// Hash is the first 16 hex characters of sha256(start + end + config).
func Hash(start, end time.Time, configJSON []byte) string {
	h := sha256.New()
	h.Write([]byte(start.Format(time.DateOnly)))
	h.Write([]byte(end.Format(time.DateOnly)))
	h.Write(configJSON)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Run executes one pass over [start, end]. The report is created as
// processing and ends complete or failed; a failed report is returned
// alongside the error.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	report := &store.Report{
		ID:          uuid.NewString(),
		PeriodStart: start,
		PeriodEnd:   end,
		Hash:        Hash(start, end, p.opts.ConfigJSON),
		Status:      store.StatusProcessing,
		DemoMode:    p.opts.DemoMode,
		CreatedAt:   p.now(),
	}
	if err := p.opts.Store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	log := p.logger.With("report", report.ID)
	log.Info("pipeline started", "period_start", start.Format(time.DateOnly), "period_end", end.Format(time.DateOnly))

	res, err := p.execute(ctx, log, report, end)
	if err != nil {
		report.Status, report.Error = store.StatusFailed, err.Error()
		// The run's own context may be what failed; record the outcome regardless.
		if uerr := p.opts.Store.UpdateReportStatus(context.WithoutCancel(ctx), report.ID, store.StatusFailed, err.Error()); uerr != nil {
			log.Error("mark report failed", "error", uerr)
		}
		log.Error("pipeline failed", "error", err)
		return &Result{Report: report}, err
	}

	if err := p.opts.Store.UpdateReportStatus(ctx, report.ID, store.StatusComplete, ""); err != nil {
		return res, fmt.Errorf("complete report: %w", err)
	}
	report.Status = store.StatusComplete
	log.Info("pipeline complete", "narratives", len(res.Narratives), "signals", res.Signals, "skipped", len(res.Skipped))
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, log *slog.Logger, report *store.Report, end time.Time) (*Result, error) {
	signals, err := p.opts.Source.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect signals: %w", err)
	}
	for _, e := range p.opts.Enrichers {
		if err := e.Enrich(ctx, signals); err != nil {
			log.Warn("enricher failed", "enricher", e.Name(), "error", err)
		}
	}

	scored, skipped := p.opts.Scorer.WithClock(func() time.Time { return end }).ScoreAll(signals)
	for _, s := range skipped {
		log.Warn("signal skipped", "key", s.Key, "error", s.Err)
	}
	top := scoring.TopK(scored, p.opts.TopK)
	log.Info("signals scored", "scored", len(scored), "candidates", len(top))

	members, err := p.investigate(ctx, log, report.ID, top)
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float64, len(members))
	labels := make([]string, len(members))
	for i := range members {
		embeddings[i] = members[i].Embedding
		labels[i] = members[i].Scored.Signal.Label
	}
	clusters, err := p.opts.Engine.Cluster(embeddings, labels, p.opts.MinClusterSize)
	if err != nil {
		return nil, fmt.Errorf("cluster candidates: %w", err)
	}
	log.Info("candidates clustered", "clusters", len(clusters))

	groups := narrative.BuildGroups(clusters, members, p.opts.MaxNarratives)
	narratives := make([]store.Narrative, 0, len(groups))
	for i := range groups {
		n, err := p.writeNarrative(ctx, report.ID, &groups[i])
		if err != nil {
			return nil, err
		}
		narratives = append(narratives, *n)
	}

	res := &Result{Report: report, Narratives: narratives, Signals: len(signals), Skipped: skipped}
	if p.opts.ReportsDir != "" {
		path, err := Export(p.opts.ReportsDir, report, groups, p.now())
		if err != nil {
			return nil, err
		}
		res.ExportPath = path
	}
	return res, nil
}

// investigate records each candidate with its tool findings and resolves its embedding.
func (p *Pipeline) investigate(ctx context.Context, log *slog.Logger, reportID string, top []scoring.ScoredSignal) ([]narrative.Member, error) {
	members := make([]narrative.Member, len(top))
	for i, sc := range top {
		sig := sc.Signal
		if err := p.opts.Store.UpsertEntity(ctx, &store.Entity{
			Key: sig.Key, Label: sig.Label, Kind: sig.Kind, FirstSeen: sig.FirstSeen, LastSeen: p.now(),
		}); err != nil {
			return nil, fmt.Errorf("record entity: %w", err)
		}

		findings := p.opts.Investigator.Run(ctx, investigate.SubjectFromSignal(sig))
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("investigate %s: %w", sig.Key, err)
		}

		cand := &store.Candidate{
			ID:              uuid.NewString(),
			ReportID:        reportID,
			EntityKey:       sig.Key,
			Rank:            i + 1,
			Momentum:        sc.Momentum,
			Novelty:         sc.Novelty,
			Quality:         sc.Quality,
			TotalScore:      sc.TotalScore,
			NormalizedScore: sc.NormalizedScore,
			Features:        featureMap(sc.Features),
			Steps:           steps(findings),
		}
		if err := p.opts.Store.AddCandidate(ctx, cand); err != nil {
			return nil, fmt.Errorf("record candidate: %w", err)
		}

		vec, found := p.opts.Resolver.Resolve(ctx, sig.Key, embeddingText(sig))
		members[i] = narrative.Member{
			Scored:      sc,
			Findings:    findings,
			Embedding:   vec,
			Placeholder: !found,
		}
		log.Debug("candidate investigated", "key", sig.Key, "rank", i+1, "tools", len(findings))
	}
	return members, nil
}

func (p *Pipeline) writeNarrative(ctx context.Context, reportID string, grp *narrative.Group) (*store.Narrative, error) {
	p.opts.Generator.Describe(ctx, grp)
	p.opts.Generator.GenerateIdeas(ctx, grp)
	if p.opts.Competitors != nil {
		narrative.Assess(grp, p.opts.Competitors)
	}

	n := &store.Narrative{
		ID:           uuid.NewString(),
		ReportID:     reportID,
		ClusterID:    grp.ClusterID,
		Title:        grp.Title,
		Summary:      grp.Summary,
		Momentum:     grp.Momentum(),
		Novelty:      grp.Novelty(),
		Saturation:   grp.Saturation(),
		MemberLabels: grp.MemberLabels,
		Evidence:     grp.Evidence(),
	}
	for _, idea := range grp.Ideas {
		n.Ideas = append(n.Ideas, store.Idea{
			ID:              uuid.NewString(),
			Title:           idea.Title,
			Pitch:           idea.Pitch,
			TargetUser:      idea.TargetUser,
			MVPScope:        idea.MVPScope,
			WhyNow:          idea.WhyNow,
			Validation:      idea.Validation,
			SaturationLevel: string(idea.Saturation.Level),
			SaturationScore: idea.Saturation.Score,
			Neighbors:       idea.Saturation.Neighbors,
			Competition:     idea.Competition,
			Pivot:           idea.Pivot,
		})
	}
	if err := p.opts.Store.AddNarrative(ctx, n); err != nil {
		return nil, fmt.Errorf("record narrative: %w", err)
	}
	return n, nil
}

// Score ingests and scores signals without investigating or persisting anything.
func (p *Pipeline) Score(ctx context.Context) ([]scoring.ScoredSignal, []scoring.SkippedSignal, error) {
	signals, err := p.opts.Source.Collect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("collect signals: %w", err)
	}
	for _, e := range p.opts.Enrichers {
		if err := e.Enrich(ctx, signals); err != nil {
			p.logger.Warn("enricher failed", "enricher", e.Name(), "error", err)
		}
	}
	scored, skipped := p.opts.Scorer.WithClock(p.now).ScoreAll(signals)
	return scored, skipped, nil
}

func featureMap(fv scoring.FeatureVector) map[string]float64 {
	out := make(map[string]float64, len(fv))
	for k, v := range fv {
		out[string(k)] = v
	}
	return out
}

func steps(findings []investigate.Result) []store.Step {
	out := make([]store.Step, len(findings))
	for i, f := range findings {
		out[i] = store.Step{Tool: f.Tool, Input: f.Input, Summary: f.Summary, Links: f.Links, Evidence: f.Evidence}
	}
	return out
}

// embeddingText is what gets embedded for a signal without a stored vector.
func embeddingText(sig source.Signal) string {
	parts := []string{sig.Label}
	if sig.Kind != "" {
		parts = append(parts, sig.Kind)
	}
	for _, s := range sig.Social.Snippets[:min(3, len(sig.Social.Snippets))] {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, ". ")
}
