package scoring

import "sort"

// DefaultClamp bounds each feature before weighting.
const DefaultClamp = 5.0

// Weights maps category -> feature -> weight.
type Weights map[string]map[FeatureName]float64

// DefaultWeights is the reference table: on-chain sums to 0.70, dev to 0.50,
// social to 0.35.
func DefaultWeights() Weights {
	return Weights{
		DomainOnchain: {
			ZTxCount:        0.25,
			ZUniqueWallets:  0.20,
			ZNewWalletShare: 0.15,
			ZRetention:      0.10,
		},
		DomainDev: {
			ZCommits:         0.20,
			ZStarsDelta:      0.15,
			ZNewContributors: 0.10,
			ZReleases:        0.05,
		},
		DomainSocial: {
			ZMentionsDelta:   0.15,
			ZUniqueAuthors:   0.10,
			ZEngagementDelta: 0.10,
		},
	}
}

// MomentumModel is a clamped weighted sum over a feature vector.
type MomentumModel struct {
	Weights Weights
	Clamp   float64
}

// NewMomentumModel creates a model; nil weights select DefaultWeights and a
// non-positive clamp selects DefaultClamp.
func NewMomentumModel(w Weights, clamp float64) MomentumModel {
	if w == nil {
		w = DefaultWeights()
	}
	if clamp <= 0 {
		clamp = DefaultClamp
	}
	return MomentumModel{Weights: w, Clamp: clamp}
}

// Compute sums clamp(feature) * weight for every weighted feature present in
// fv. Weighted features missing from fv are skipped; unweighted ones ignored.
// Categories and features are visited in sorted order so the sum is reproducible.
func (m MomentumModel) Compute(fv FeatureVector) float64 {
	clamp := m.Clamp
	if clamp <= 0 {
		clamp = DefaultClamp
	}

	categories := make([]string, 0, len(m.Weights))
	for c := range m.Weights {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	score := 0.0
	for _, c := range categories {
		weights := m.Weights[c]
		names := make([]FeatureName, 0, len(weights))
		for name := range weights {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

		for _, name := range names {
			val, ok := fv[name]
			if !ok {
				continue
			}
			score += max(-clamp, min(clamp, val)) * weights[name]
		}
	}
	return score
}
