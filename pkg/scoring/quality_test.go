package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/narradar/pkg/source"
)

func snippets(classes ...source.SnippetClass) []source.Snippet {
	out := make([]source.Snippet, len(classes))
	for i, c := range classes {
		out[i] = source.Snippet{Text: string(c), Class: c}
	}
	return out
}

func TestQualityPenalty(t *testing.T) {
	q := DefaultQualityFilter()
	farming := FeatureVector{ZNewWalletShare: 2.5, ZRetention: -0.1}
	allHype := snippets(source.ClassHype, source.ClassHype, source.ClassHype, source.ClassHype, source.ClassHype)

	tests := []struct {
		name     string
		fv       FeatureVector
		snippets []source.Snippet
		want     float64
	}{
		{"neither", FeatureVector{ZNewWalletShare: 1, ZRetention: 0.2}, nil, 1.0},
		{"airdrop farming", farming, nil, 0.5},
		{"hype", nil, allHype, 0.5},
		{"both compound", farming, allHype, 0.25},
		{"missing keys read as zero", FeatureVector{}, nil, 1.0},
		{"share exactly at threshold does not fire", FeatureVector{ZNewWalletShare: 2.0, ZRetention: -1}, nil, 1.0},
		{"retention exactly zero does not fire", FeatureVector{ZNewWalletShare: 3, ZRetention: 0}, nil, 1.0},
		{"empty snippets", nil, []source.Snippet{}, 1.0},
		{
			"hype share exactly 0.8 does not fire",
			nil,
			snippets(source.ClassHype, source.ClassHype, source.ClassHype, source.ClassHype, source.ClassQuestion),
			1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.Penalty(tt.fv, tt.snippets))
		})
	}
}

func TestQualityPenalty_FloatBoundary(t *testing.T) {
	// 0.6 over a 0.2 baseline lands just below 2.0 in float64.
	on, err := ComputeOnchain(MetricBundle{
		"tx_count":         {Current: 100, Baseline: 100},
		"unique_wallets":   {Current: 10, Baseline: 10},
		"new_wallet_share": {Current: 0.6, Baseline: 0.2},
		"retention_7d":     {Current: 0.1, Baseline: 0.2},
	})
	assert.NoError(t, err)
	assert.Less(t, on.NewWalletShare, 2.0)
	assert.Equal(t, 1.0, DefaultQualityFilter().Penalty(on.Vector(), nil))
}

func TestQualityPenalty_CustomFactors(t *testing.T) {
	q := QualityFilter{WalletShareThreshold: 1, RetentionThreshold: 0.5, HypeRatio: 0.4, PenaltyMultiplier: 0.8}
	fv := FeatureVector{ZNewWalletShare: 1.5, ZRetention: 0.2}
	half := snippets(source.ClassHype, source.ClassPainPoint)

	assert.InDelta(t, 0.64, q.Penalty(fv, half), 1e-12)
}

func TestHypeShare(t *testing.T) {
	assert.Equal(t, 0.0, HypeShare(nil))
	assert.Equal(t, 0.5, HypeShare(snippets(source.ClassHype, source.ClassAnnouncement)))
}
