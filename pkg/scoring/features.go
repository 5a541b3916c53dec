// Package scoring turns raw signal metrics into momentum, novelty and quality
// scores and ranks a batch of signals by their combined total.
package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultEpsilon guards ZScore against near-zero baselines.
const DefaultEpsilon = 1e-6

// zScoreCap bounds the ratio when the baseline is effectively zero.
const zScoreCap = 10.0

// ErrMissingFeatureField is matched by every MissingFieldError.
var ErrMissingFeatureField = errors.New("missing feature field")

// MissingFieldError reports a metric pair absent from a bundle. It aborts the
// signal being scored, not the batch.
type MissingFieldError struct {
	Domain string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing feature field %s.%s", e.Domain, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingFeatureField
}

// FeatureName is the closed set of feature keys the models understand.
type FeatureName string

const (
	ZTxCount         FeatureName = "z_tx_count"
	ZUniqueWallets   FeatureName = "z_unique_wallets"
	ZNewWalletShare  FeatureName = "z_new_wallet_share"
	ZRetention       FeatureName = "z_retention"
	ZCommits         FeatureName = "z_commits"
	ZStarsDelta      FeatureName = "z_stars_delta"
	ZNewContributors FeatureName = "z_new_contributors"
	ZReleases        FeatureName = "z_releases"
	ZMentionsDelta   FeatureName = "z_mentions_delta"
	ZUniqueAuthors   FeatureName = "z_unique_authors"
	ZEngagementDelta FeatureName = "z_engagement_delta"
)

// FeatureVector maps feature names to scores.
type FeatureVector map[FeatureName]float64

// Merge returns a new vector holding the union of vs; later vectors win on conflicts.
func Merge(vs ...FeatureVector) FeatureVector {
	out := make(FeatureVector)
	for _, v := range vs {
		for k, val := range v {
			out[k] = val
		}
	}
	return out
}

// MetricPair is a current value and its historical baseline.
type MetricPair struct {
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
}

// MetricBundle is a named set of metric pairs for one domain.
type MetricBundle map[string]MetricPair

// BundleFromFlat pairs "name" with "name_baseline". A pair is present only when
// both keys are.
func BundleFromFlat(flat map[string]float64) MetricBundle {
	b := make(MetricBundle)
	for key, cur := range flat {
		if strings.HasSuffix(key, "_baseline") {
			continue
		}
		base, ok := flat[key+"_baseline"]
		if !ok {
			continue
		}
		b[key] = MetricPair{Current: cur, Baseline: base}
	}
	return b
}

// ZScore is a z-like ratio: (current - baseline) / baseline, capped at 10 when
// the baseline is below DefaultEpsilon.
func ZScore(current, baseline float64) float64 {
	return ZScoreEpsilon(current, baseline, DefaultEpsilon)
}

// ZScoreEpsilon is ZScore with an explicit epsilon.
func ZScoreEpsilon(current, baseline, epsilon float64) float64 {
	if baseline < epsilon {
		return min(current/epsilon, zScoreCap)
	}
	return (current - baseline) / baseline
}

const (
	DomainOnchain = "onchain"
	DomainDev     = "dev"
	DomainSocial  = "social"
)

// OnchainFeatures are the z-scores of on-chain activity.
type OnchainFeatures struct {
	TxCount        float64
	UniqueWallets  float64
	NewWalletShare float64
	Retention      float64
}

// Vector returns the features keyed by name.
func (f OnchainFeatures) Vector() FeatureVector {
	return FeatureVector{
		ZTxCount:        f.TxCount,
		ZUniqueWallets:  f.UniqueWallets,
		ZNewWalletShare: f.NewWalletShare,
		ZRetention:      f.Retention,
	}
}

// DevFeatures are the z-scores of developer activity.
type DevFeatures struct {
	Commits         float64
	StarsDelta      float64
	NewContributors float64
	Releases        float64
}

// Vector returns the features keyed by name.
func (f DevFeatures) Vector() FeatureVector {
	return FeatureVector{
		ZCommits:         f.Commits,
		ZStarsDelta:      f.StarsDelta,
		ZNewContributors: f.NewContributors,
		ZReleases:        f.Releases,
	}
}

// SocialFeatures are the z-scores of social activity.
type SocialFeatures struct {
	MentionsDelta   float64
	UniqueAuthors   float64
	EngagementDelta float64
}

// Vector returns the features keyed by name.
func (f SocialFeatures) Vector() FeatureVector {
	return FeatureVector{
		ZMentionsDelta:   f.MentionsDelta,
		ZUniqueAuthors:   f.UniqueAuthors,
		ZEngagementDelta: f.EngagementDelta,
	}
}

// ComputeOnchain scores tx_count, unique_wallets, new_wallet_share and retention_7d.
func ComputeOnchain(b MetricBundle) (OnchainFeatures, error) {
	z, err := zScores(b, DomainOnchain, "tx_count", "unique_wallets", "new_wallet_share", "retention_7d")
	if err != nil {
		return OnchainFeatures{}, err
	}
	return OnchainFeatures{TxCount: z[0], UniqueWallets: z[1], NewWalletShare: z[2], Retention: z[3]}, nil
}

// ComputeDev scores commits, stars_delta, new_contributors and releases.
func ComputeDev(b MetricBundle) (DevFeatures, error) {
	z, err := zScores(b, DomainDev, "commits", "stars_delta", "new_contributors", "releases")
	if err != nil {
		return DevFeatures{}, err
	}
	return DevFeatures{Commits: z[0], StarsDelta: z[1], NewContributors: z[2], Releases: z[3]}, nil
}

// ComputeSocial scores mentions_count, unique_authors and engagement_score.
func ComputeSocial(b MetricBundle) (SocialFeatures, error) {
	z, err := zScores(b, DomainSocial, "mentions_count", "unique_authors", "engagement_score")
	if err != nil {
		return SocialFeatures{}, err
	}
	return SocialFeatures{MentionsDelta: z[0], UniqueAuthors: z[1], EngagementDelta: z[2]}, nil
}

func zScores(b MetricBundle, domain string, fields ...string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, field := range fields {
		pair, ok := b[field]
		if !ok {
			return nil, &MissingFieldError{Domain: domain, Field: field}
		}
		out[i] = ZScore(pair.Current, pair.Baseline)
	}
	return out, nil
}
