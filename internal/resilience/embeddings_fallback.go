package resilience

import (
	"context"
	"log/slog"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings"
)

// EmbeddingsFallback implements [embeddings.Provider] with automatic failover
// across multiple embedding backends, typically a hosted model backed by a
// local Ollama model. Fallback entries must produce vectors of the same width
// as the primary; mixing widths would corrupt the semantic index.
type EmbeddingsFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an [EmbeddingsFallback] with primary as the
// preferred backend.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional embeddings provider as a fallback. A
// width mismatch against the primary is logged; such a fallback will produce
// vectors the index cannot use.
func (f *EmbeddingsFallback) AddFallback(name string, provider embeddings.Provider) {
	if want := f.group.entries[0].value.Dimensions(); provider.Dimensions() != want {
		slog.Warn("embeddings fallback has a different vector width than the primary",
			"fallback", name,
			"fallback_dimensions", provider.Dimensions(),
			"primary_dimensions", want,
		)
	}
	f.group.AddFallback(name, provider)
}

// Embed computes the embedding for text using the first healthy provider.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch computes embeddings for texts using the first healthy provider.
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the primary's vector width. Static metadata does not
// participate in failover.
func (f *EmbeddingsFallback) Dimensions() int {
	return f.group.entries[0].value.Dimensions()
}

// ModelID returns the primary's model identifier.
func (f *EmbeddingsFallback) ModelID() string {
	return f.group.entries[0].value.ModelID()
}
