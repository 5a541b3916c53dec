package scoring

import (
	"sort"
	"time"

	"github.com/elonfeng/narradar/pkg/source"
)

// Config groups every scoring parameter.
type Config struct {
	Weights           Weights
	Clamp             float64
	NoveltyWindowDays int
	NoveltyMultiplier float64
	Quality           QualityFilter
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		Clamp:             DefaultClamp,
		NoveltyWindowDays: DefaultNoveltyWindowDays,
		NoveltyMultiplier: DefaultNoveltyMultiplier,
		Quality:           DefaultQualityFilter(),
	}
}

// ScoredSignal is one signal's scores for a single scoring pass.
type ScoredSignal struct {
	Signal          source.Signal `json:"signal"`
	Features        FeatureVector `json:"features"`
	Momentum        float64       `json:"momentum"`
	Novelty         float64       `json:"novelty"`
	Quality         float64       `json:"quality"`
	TotalScore      float64       `json:"total_score"`
	NormalizedScore float64       `json:"normalized_score"`
}

// SkippedSignal is a signal ScoreAll could not score.
type SkippedSignal struct {
	Key string
	Err error
}

// Scorer runs the feature, momentum, novelty and quality models over signals.
type Scorer struct {
	momentum MomentumModel
	novelty  NoveltyModel
	quality  QualityFilter
}

// NewScorer creates a scorer from cfg. A zero QualityFilter selects the defaults.
func NewScorer(cfg Config) *Scorer {
	quality := cfg.Quality
	if quality == (QualityFilter{}) {
		quality = DefaultQualityFilter()
	}
	return &Scorer{
		momentum: NewMomentumModel(cfg.Weights, cfg.Clamp),
		novelty:  NewNoveltyModel(cfg.NoveltyWindowDays, cfg.NoveltyMultiplier),
		quality:  quality,
	}
}

// WithClock returns a copy of s whose novelty clock is now. s is unchanged.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.novelty.Now = now
	return &c
}

// Score computes every score for sig. NormalizedScore is left at zero; it only
// has meaning across a batch. A missing metric pair returns a MissingFieldError.
func (s *Scorer) Score(sig source.Signal) (ScoredSignal, error) {
	onchain, err := ComputeOnchain(BundleFromFlat(sig.Onchain))
	if err != nil {
		return ScoredSignal{}, err
	}
	dev, err := ComputeDev(BundleFromFlat(sig.Dev))
	if err != nil {
		return ScoredSignal{}, err
	}
	social, err := ComputeSocial(BundleFromFlat(sig.Social.Metrics))
	if err != nil {
		return ScoredSignal{}, err
	}

	features := Merge(onchain.Vector(), dev.Vector(), social.Vector())
	momentum := s.momentum.Compute(features)

	// An absent or unreadable first_seen counts as seen today.
	novelty, err := s.novelty.ComputeString(sig.FirstSeen)
	if err != nil {
		novelty = s.novelty.Compute(s.now())
	}

	quality := s.quality.Penalty(features, sig.Social.Snippets)

	return ScoredSignal{
		Signal:     sig,
		Features:   features,
		Momentum:   momentum,
		Novelty:    novelty,
		Quality:    quality,
		TotalScore: TotalScore(momentum, novelty, quality),
	}, nil
}

// ScoreAll scores a batch. Signals that fail are returned as skipped and do not
// affect the rest. Survivors get NormalizedScore over the batch and are sorted
// by descending TotalScore, ties keeping input order.
func (s *Scorer) ScoreAll(signals []source.Signal) ([]ScoredSignal, []SkippedSignal) {
	scored := make([]ScoredSignal, 0, len(signals))
	var skipped []SkippedSignal

	for _, sig := range signals {
		ss, err := s.Score(sig)
		if err != nil {
			skipped = append(skipped, SkippedSignal{Key: sig.Key, Err: err})
			continue
		}
		scored = append(scored, ss)
	}

	totals := make([]float64, len(scored))
	for i := range scored {
		totals[i] = scored[i].TotalScore
	}
	for i, n := range Normalize(totals) {
		scored[i].NormalizedScore = n
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TotalScore > scored[j].TotalScore
	})
	return scored, skipped
}

// TopK returns the first k entries of a ranked batch (all when k <= 0 or k exceeds it).
func TopK(scored []ScoredSignal, k int) []ScoredSignal {
	if k <= 0 || k >= len(scored) {
		return scored
	}
	return scored[:k]
}

func (s *Scorer) now() time.Time {
	if s.novelty.Now != nil {
		return s.novelty.Now()
	}
	return time.Now()
}
