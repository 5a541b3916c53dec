package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/elonfeng/narradar/internal/config"
	"github.com/elonfeng/narradar/internal/store"
	"github.com/elonfeng/narradar/pkg/embed"
	"github.com/elonfeng/narradar/pkg/investigate"
	"github.com/elonfeng/narradar/pkg/narrative"
	"github.com/elonfeng/narradar/pkg/scoring"
	"github.com/elonfeng/narradar/pkg/source"
)

// FromConfig wires a pipeline from configuration. Optional collaborators
// (RSS, LLM, embeddings, GitHub) are only enabled when configured.
func FromConfig(cfg *config.Config, st store.Store, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fx := cfg.Fixtures
	demo := cfg.Pipeline.DemoMode

	classifier := source.NewClassifier(cfg.Filter.HypeKeywords, cfg.Filter.PainKeywords)
	var enrichers []source.Enricher
	if cfg.Sources.RSS.Enabled && len(cfg.Sources.RSS.Feeds) > 0 && !demo {
		enrichers = append(enrichers, source.NewRSS(cfg.RSSFeeds(), classifier, cfg.Period()))
	}
	if hn := cfg.Sources.HackerNews; hn.Enabled && !demo {
		enrichers = append(enrichers, source.NewHackerNews(hn.BaseURL, hn.MaxHits, classifier, cfg.Period()))
	}

	vectors, err := embed.LoadStore(fx.Path(fx.Embeddings))
	if err != nil {
		return nil, fmt.Errorf("load signal embeddings: %w", err)
	}
	var embedder embed.Embedder
	if cfg.Embeddings.Enabled && cfg.Embeddings.APIKey != "" && !demo {
		embedder = embed.NewOpenAI(cfg.Embeddings.BaseURL, cfg.Embeddings.Model, cfg.Embeddings.APIKey)
	}

	corpus, err := embed.LoadCorpus(fx.Path(fx.ProjectEmbeddings), fx.Path(fx.Projects))
	if err != nil {
		return nil, fmt.Errorf("load project corpus: %w", err)
	}
	competitors := investigate.NewCompetitorSearch(cfg.SaturationScorer(), corpus)

	gh := cfg.Sources.GitHub
	repoDemo := demo || gh.Token == ""
	investigator := investigate.NewInvestigator(
		investigate.NewRepoInspector(gh.Token, gh.BaseURL, gh.Repos, repoDemo),
		investigate.SocialPainFinder{},
	)

	var llm narrative.Completer
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" && !demo {
		llm = narrative.NewLLM(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	}

	engine, err := cfg.ClusterEngine()
	if err != nil {
		return nil, err
	}

	// Only the sections that shape the analysis feed the report hash.
	configJSON, err := json.Marshal(struct {
		Scoring    config.ScoringConfig    `json:"scoring"`
		Cluster    config.ClusterConfig    `json:"cluster"`
		Saturation config.SaturationConfig `json:"saturation"`
		Pipeline   config.PipelineConfig   `json:"pipeline"`
	}{cfg.Scoring, cfg.Cluster, cfg.Saturation, cfg.Pipeline})
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	logger.Debug("pipeline wired",
		"enrichers", len(enrichers), "embedder", embedder != nil, "llm", llm != nil,
		"repo_demo", repoDemo, "corpus", corpus.Len(), "cluster", engine.Strategies())

	return New(Options{
		Store:          st,
		Source:         source.NewFixture(fx.Path(fx.Signals)),
		Enrichers:      enrichers,
		Scorer:         scoring.NewScorer(cfg.ScoringConfig()),
		Investigator:   investigator,
		Resolver:       embed.NewResolver(vectors, embedder, logger),
		Engine:         engine,
		Generator:      narrative.NewGenerator(llm, cfg.Pipeline.IdeasPerNarrative, logger),
		Competitors:    competitors,
		TopK:           cfg.Pipeline.TopK,
		MaxNarratives:  cfg.Pipeline.MaxNarratives,
		MinClusterSize: cfg.Cluster.MinClusterSize,
		ReportsDir:     cfg.Pipeline.ReportsDir,
		DemoMode:       demo,
		ConfigJSON:     configJSON,
		Logger:         logger,
	}), nil
}
