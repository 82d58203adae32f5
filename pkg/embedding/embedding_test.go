package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbeddingProvider returns canned vectors and can be told to fail
// batch calls, single calls, or specific texts.
type mockEmbeddingProvider struct {
	dimensions int
	batchErr   error
	singleErr  error
	failTexts  map[string]bool
	batchCalls int
	itemCalls  int
}

func (m *mockEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vectorFor(texts[i])
	}
	return out, nil
}

func (m *mockEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	m.itemCalls++
	if m.singleErr != nil {
		return nil, m.singleErr
	}
	if m.failTexts[text] {
		return nil, errors.New("embedding unavailable")
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbeddingProvider) Name() string { return "mock" }

func (m *mockEmbeddingProvider) vectorFor(text string) []float32 {
	vec := make([]float32, m.dimensions)
	for i := range vec {
		vec[i] = float32(len(text)%7) + 1
	}
	return vec
}

func fastConfig(dims int) Config {
	return Config{
		TargetDimensions: dims,
		TokenBudget:      100,
		BatchSize:        2,
		InterBatchDelay:  time.Millisecond,
		ItemDelay:        time.Millisecond,
	}
}

func TestEmbed_NormalizesDimensions(t *testing.T) {
	tests := []struct {
		name         string
		providerDims int
	}{
		{"provider shorter than target", 4},
		{"provider matches target", 8},
		{"provider longer than target", 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockEmbeddingProvider{dimensions: tt.providerDims}, fastConfig(8))
			vec, err := svc.Embed(context.Background(), "net present value")
			require.NoError(t, err)
			assert.Len(t, vec, 8)
		})
	}
}

func TestEmbedBatch_ReturnsVectorPerInput(t *testing.T) {
	svc := NewService(&mockEmbeddingProvider{dimensions: 8}, fastConfig(8))

	texts := []string{"one", "two", "three", "four", "five"}
	vectors, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for _, vec := range vectors {
		assert.Len(t, vec, 8)
	}
}

func TestEmbedBatch_FallsBackPerItem(t *testing.T) {
	provider := &mockEmbeddingProvider{
		dimensions: 8,
		batchErr:   errors.New("batch endpoint down"),
	}
	svc := NewService(provider, fastConfig(8))

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, 3, provider.itemCalls)
}

func TestEmbedBatch_FailedItemGetsZeroVector(t *testing.T) {
	provider := &mockEmbeddingProvider{
		dimensions: 8,
		batchErr:   errors.New("batch endpoint down"),
		failTexts:  map[string]bool{"poison": true},
	}
	svc := NewService(provider, fastConfig(8))

	vectors, err := svc.EmbedBatch(context.Background(), []string{"fine", "poison"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	assert.NotEqual(t, make([]float32, 8), vectors[0])
	assert.Equal(t, make([]float32, 8), vectors[1])
}

func TestEmbedBatch_ContextCancelled(t *testing.T) {
	provider := &mockEmbeddingProvider{dimensions: 8}
	cfg := fastConfig(8)
	cfg.InterBatchDelay = time.Second
	svc := NewService(provider, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EmbedBatch(ctx, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	svc := NewService(&mockEmbeddingProvider{dimensions: 4}, fastConfig(4))

	t.Run("pads short vectors", func(t *testing.T) {
		out := svc.Normalize([]float32{1, 2})
		assert.Equal(t, []float32{1, 2, 0, 0}, out)
	})

	t.Run("truncates long vectors", func(t *testing.T) {
		out := svc.Normalize([]float32{1, 2, 3, 4, 5, 6})
		assert.Equal(t, []float32{1, 2, 3, 4}, out)
	})

	t.Run("nil becomes zero vector", func(t *testing.T) {
		out := svc.Normalize(nil)
		assert.Equal(t, make([]float32, 4), out)
	})
}

func TestTopK(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},  // orthogonal
		{1, 0},  // identical
		{-1, 0}, // opposite
		{1, 1},  // partial
	}

	matches := TopK(query, candidates, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Index)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, 3, matches[1].Index)
}

func TestTopK_KLargerThanCandidates(t *testing.T) {
	matches := TopK([]float32{1}, [][]float32{{1}, {-1}}, 10)
	assert.Len(t, matches, 2)
}

func TestEmbedBatch_DeterministicForIdenticalInput(t *testing.T) {
	provider := &mockEmbeddingProvider{dimensions: 8}
	svc := NewService(provider, fastConfig(8))

	texts := []string{"duration measures rate sensitivity", "free cash flow to the firm"}

	first, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	second, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for _, vec := range second {
		assert.Len(t, vec, 8)
	}
}
