package scoring

import "github.com/elonfeng/narradar/pkg/source"

const (
	DefaultWalletShareThreshold = 2.0
	DefaultRetentionThreshold   = 0.0
	DefaultHypeRatio            = 0.8
	DefaultPenaltyMultiplier    = 0.5
)

// QualityFilter detects spam patterns and yields a multiplicative penalty in [0, 1].
// The thresholds are policy knobs, not tuned constants.
type QualityFilter struct {
	// WalletShareThreshold and RetentionThreshold define airdrop farming:
	// z_new_wallet_share above the first while z_retention is below the second.
	WalletShareThreshold float64
	RetentionThreshold   float64

	// HypeRatio is the share of hype snippets above which the hype penalty applies.
	HypeRatio float64

	// PenaltyMultiplier is applied once per triggered heuristic.
	PenaltyMultiplier float64
}

// DefaultQualityFilter returns the reference thresholds.
func DefaultQualityFilter() QualityFilter {
	return QualityFilter{
		WalletShareThreshold: DefaultWalletShareThreshold,
		RetentionThreshold:   DefaultRetentionThreshold,
		HypeRatio:            DefaultHypeRatio,
		PenaltyMultiplier:    DefaultPenaltyMultiplier,
	}
}

// Penalty returns 1.0 when nothing fires; each triggered heuristic multiplies
// it by PenaltyMultiplier. Missing features read as 0.
func (q QualityFilter) Penalty(fv FeatureVector, snippets []source.Snippet) float64 {
	penalty := 1.0

	if q.AirdropFarming(fv) {
		penalty *= q.PenaltyMultiplier
	}
	if q.Hype(snippets) {
		penalty *= q.PenaltyMultiplier
	}
	return penalty
}

// AirdropFarming reports a new-wallet influx paired with falling retention.
func (q QualityFilter) AirdropFarming(fv FeatureVector) bool {
	return fv[ZNewWalletShare] > q.WalletShareThreshold && fv[ZRetention] < q.RetentionThreshold
}

// Hype reports whether the hype share of snippets exceeds HypeRatio. An empty
// list never triggers.
func (q QualityFilter) Hype(snippets []source.Snippet) bool {
	return HypeShare(snippets) > q.HypeRatio
}

// HypeShare is the fraction of snippets classified as hype, 0 for none.
func HypeShare(snippets []source.Snippet) float64 {
	if len(snippets) == 0 {
		return 0
	}
	hype := 0
	for _, s := range snippets {
		if s.Class == source.ClassHype {
			hype++
		}
	}
	return float64(hype) / float64(len(snippets))
}
