package resilience

import (
	"context"
	"errors"
	"testing"

	embmock "github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings/mock"
)

func TestEmbeddingsFallback_Embed_PrimarySuccess(t *testing.T) {
	primary := &embmock.Provider{
		EmbedResult:     []float32{0.1, 0.2, 0.3},
		DimensionsValue: 3,
	}
	secondary := &embmock.Provider{
		EmbedResult:     []float32{0.9, 0.9, 0.9},
		DimensionsValue: 3,
	}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "budget discussion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("vec = %v, want primary's vector", vec)
	}
	if len(primary.EmbedCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.EmbedCalls))
	}
	if len(secondary.EmbedCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.EmbedCalls))
	}
}

func TestEmbeddingsFallback_Embed_Failover(t *testing.T) {
	primary := &embmock.Provider{
		EmbedErr:        errors.New("primary down"),
		DimensionsValue: 3,
	}
	secondary := &embmock.Provider{
		EmbedResult:     []float32{0.4, 0.5, 0.6},
		DimensionsValue: 3,
	}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "budget discussion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.4 {
		t.Fatalf("vec = %v, want secondary's vector", vec)
	}
}

func TestEmbeddingsFallback_EmbedBatch_AllFail(t *testing.T) {
	primary := &embmock.Provider{EmbedBatchErr: errors.New("primary down"), DimensionsValue: 3}
	secondary := &embmock.Provider{EmbedBatchErr: errors.New("secondary down"), DimensionsValue: 3}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestEmbeddingsFallback_StaticMetadataFromPrimary(t *testing.T) {
	primary := &embmock.Provider{DimensionsValue: 1536, ModelIDValue: "text-embedding-3-small"}
	secondary := &embmock.Provider{DimensionsValue: 768, ModelIDValue: "nomic-embed-text"}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	// Mismatched width is allowed (with a warning) but metadata still comes
	// from the primary.
	fb.AddFallback("secondary", secondary)

	if got := fb.Dimensions(); got != 1536 {
		t.Fatalf("Dimensions = %d, want 1536", got)
	}
	if got := fb.ModelID(); got != "text-embedding-3-small" {
		t.Fatalf("ModelID = %q, want text-embedding-3-small", got)
	}
}
