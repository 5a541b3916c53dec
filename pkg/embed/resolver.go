package embed

import (
	"context"
	"log/slog"
)

// Resolver finds a vector for a signal key: the store first, then the
// embedder (caching its answer), then a zero vector of the store's dimension.
type Resolver struct {
	store    *Store
	embedder Embedder
	logger   *slog.Logger
}

// NewResolver creates a resolver. embedder may be nil.
func NewResolver(store *Store, embedder Embedder, logger *slog.Logger) *Resolver {
	if store == nil {
		store = NewStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, embedder: embedder, logger: logger}
}

// Vector returns the embedding for key. text is what gets embedded when the
// store has no entry.
func (r *Resolver) Vector(ctx context.Context, key, text string) []float64 {
	v, _ := r.Resolve(ctx, key, text)
	return v
}

// Resolve is Vector that also reports whether a real embedding was found.
// found is false when v is the zero stand-in.
func (r *Resolver) Resolve(ctx context.Context, key, text string) (v []float64, found bool) {
	if v, ok := r.store.Get(key); ok {
		return v, true
	}
	if r.embedder != nil {
		v, err := r.embedder.Embed(ctx, text)
		if err == nil {
			r.store.Put(key, v)
			return v, true
		}
		r.logger.Warn("embedding failed, using zero vector", "key", key, "error", err)
	}
	return make([]float64, r.store.Dim()), false
}

// Vectors resolves keys[i] with texts[i] for every i.
func (r *Resolver) Vectors(ctx context.Context, keys, texts []string) [][]float64 {
	out := make([][]float64, len(keys))
	for i, k := range keys {
		out[i] = r.Vector(ctx, k, texts[i])
	}
	return out
}
