package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-io/finsight/internal/model"
)

func TestSearchCache_DisabledIsNoOp(t *testing.T) {
	cache := NewSearchCache(nil, nil)
	ctx := context.Background()
	q := &SearchQuery{Symbol: "AAPL"}

	results, err := cache.Get(ctx, q)
	require.NoError(t, err)
	assert.Nil(t, results)

	assert.NoError(t, cache.Set(ctx, q, []*model.KnowledgeResult{{Score: 0.9}}))
	assert.NoError(t, cache.Clear(ctx))

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, stats["enabled"])
}

func TestSearchCache_KeyCoversEveryQueryField(t *testing.T) {
	cache := NewSearchCache(nil, &SearchCacheConfig{
		Enabled:   true,
		TTL:       time.Hour,
		KeyPrefix: "finsight:search:",
	})

	base := &SearchQuery{Symbol: "AAPL", InstrumentType: model.InstrumentStock}
	sameKey := cache.cacheKey(&SearchQuery{Symbol: "AAPL", InstrumentType: model.InstrumentStock})
	assert.Equal(t, cache.cacheKey(base), sameKey)

	minScore := 0.3
	variants := []*SearchQuery{
		{Symbol: "MSFT", InstrumentType: model.InstrumentStock},
		{Symbol: "AAPL", InstrumentType: model.InstrumentBond},
		{Symbol: "AAPL", InstrumentType: model.InstrumentStock, TopK: 10},
		{Symbol: "AAPL", InstrumentType: model.InstrumentStock, MinScore: &minScore},
		{Symbol: "AAPL", InstrumentType: model.InstrumentStock, Concepts: []string{"dcf"}},
	}
	for _, v := range variants {
		assert.NotEqual(t, cache.cacheKey(base), cache.cacheKey(v))
	}

	assert.True(t, strings.HasPrefix(cache.cacheKey(base), "finsight:search:"))
}
