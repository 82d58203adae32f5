// Package embedding converts text into fixed-length vectors usable for
// similarity comparison. It owns dimension normalization, input
// truncation, and batch rate-limit policy; the underlying model is an
// injected llm.EmbeddingProvider.
package embedding

import (
	"context"
	"sort"
	"time"

	"github.com/kart-io/logger"

	"github.com/finsight-io/finsight/internal/pkg/knowledge/textutil"
	"github.com/finsight-io/finsight/pkg/llm"
)

// Config tunes the embedding service.
type Config struct {
	// TargetDimensions is the fixed output dimensionality. Provider
	// vectors are truncated or zero-padded to this length.
	TargetDimensions int

	// TokenBudget bounds input size. Longer texts are truncated at a
	// sentence boundary where possible.
	TokenBudget int

	// BatchSize is the number of texts per provider request.
	BatchSize int

	// InterBatchDelay is the pause between sequential batches.
	InterBatchDelay time.Duration

	// ItemDelay is the pause between per-item fallback requests.
	ItemDelay time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TargetDimensions: 1536,
		TokenBudget:      8000,
		BatchSize:        10,
		InterBatchDelay:  time.Second,
		ItemDelay:        200 * time.Millisecond,
	}
}

// Service generates normalized embeddings.
type Service struct {
	provider llm.EmbeddingProvider
	cfg      Config
}

// NewService creates an embedding service backed by the given provider.
// Zero config fields fall back to defaults.
func NewService(provider llm.EmbeddingProvider, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.TargetDimensions <= 0 {
		cfg.TargetDimensions = def.TargetDimensions
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.InterBatchDelay <= 0 {
		cfg.InterBatchDelay = def.InterBatchDelay
	}
	if cfg.ItemDelay <= 0 {
		cfg.ItemDelay = def.ItemDelay
	}
	return &Service{provider: provider, cfg: cfg}
}

// Dimensions returns the fixed output dimensionality.
func (s *Service) Dimensions() int {
	return s.cfg.TargetDimensions
}

// Embed generates a normalized embedding for one text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.provider.EmbedSingle(ctx, s.truncate(text))
	if err != nil {
		return nil, err
	}
	return s.Normalize(vec), nil
}

// EmbedBatch generates normalized embeddings for texts in fixed-size
// sequential batches. A failing batch falls back to per-item requests;
// an item that still fails is assigned a zero vector rather than
// aborting the whole batch. The returned slice always matches the
// input length.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := make([]string, end-start)
		for i, t := range texts[start:end] {
			batch[i] = s.truncate(t)
		}

		vectors, err := s.provider.Embed(ctx, batch)
		if err != nil || len(vectors) != len(batch) {
			if err != nil {
				logger.Warnw("batch embedding failed, falling back to per-item",
					"batch_start", start, "batch_size", len(batch), "error", err)
			}
			vectors = s.embedItems(ctx, batch, start)
		}

		for i, vec := range vectors {
			results[start+i] = s.Normalize(vec)
		}

		if end < len(texts) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.InterBatchDelay):
			}
		}
	}

	return results, nil
}

// embedItems embeds texts one at a time. A failed item yields a nil
// vector, which Normalize turns into a zero vector.
func (s *Service) embedItems(ctx context.Context, texts []string, offset int) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.provider.EmbedSingle(ctx, text)
		if err != nil {
			logger.Warnw("item embedding failed, assigning zero vector",
				"index", offset+i, "error", err)
			vectors[i] = nil
		} else {
			vectors[i] = vec
		}

		if i < len(texts)-1 {
			select {
			case <-ctx.Done():
				return vectors
			case <-time.After(s.cfg.ItemDelay):
			}
		}
	}
	return vectors
}

// Normalize adapts a vector to the target dimensionality: longer
// vectors keep their leading dimensions, shorter ones are zero-padded.
// This is the only place provider dimensionality meets index
// dimensionality.
func (s *Service) Normalize(vec []float32) []float32 {
	out := make([]float32, s.cfg.TargetDimensions)
	copy(out, vec)
	return out
}

// truncate bounds input text to the provider token budget, preferring a
// sentence-boundary cut.
func (s *Service) truncate(text string) string {
	maxChars := s.cfg.TokenBudget * 4
	return textutil.TruncateAtSentence(text, maxChars)
}

// CosineSimilarity computes cosine similarity of two vectors. It panics
// on length mismatch.
func CosineSimilarity(a, b []float32) float64 {
	return textutil.CosineSimilarity(a, b)
}

// RankedMatch is one candidate ranked by similarity to a query.
type RankedMatch struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// TopK ranks candidates by normalized cosine similarity to the query
// and returns the k best, highest first.
func TopK(query []float32, candidates [][]float32, k int) []RankedMatch {
	matches := make([]RankedMatch, 0, len(candidates))
	for i, c := range candidates {
		score := textutil.NormalizeCosineSimilarity(textutil.CosineSimilarity(query, c))
		matches = append(matches, RankedMatch{Index: i, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
