package biz

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-io/finsight/internal/knowledge/store"
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/pkg/embedding"
	"github.com/finsight-io/finsight/pkg/utils/errors"
)

// fakeVectorStore records calls and replays canned search results.
type fakeVectorStore struct {
	upserts       [][]*store.ChunkRecord
	searchResults []*store.SearchResult
	searchFilter  string
	searchTopK    int
	upsertErr     error
	searchErr     error
	created       []*store.CollectionConfig
	deleted       []string
}

func (f *fakeVectorStore) CreateCollection(ctx context.Context, config *store.CollectionConfig) error {
	f.created = append(f.created, config)
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, records []*store.ChunkRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, embedding []float32, topK int, filter string) ([]*store.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.searchFilter = filter
	f.searchTopK = topK
	return f.searchResults, nil
}

func (f *fakeVectorStore) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeVectorStore) GetStats(ctx context.Context, collection string) (map[string]any, error) {
	return map[string]any{"collection": collection, "row_count": int64(42)}, nil
}

func newTestRetriever(vs store.VectorStore, config *RetrieverConfig) *Retriever {
	embedder := embedding.NewService(&stubEmbeddingProvider{dimensions: 8}, embedding.Config{
		TargetDimensions: 8,
		TokenBudget:      1000,
		BatchSize:        10,
		InterBatchDelay:  time.Millisecond,
		ItemDelay:        time.Millisecond,
	})
	return NewRetriever(vs, embedder, config)
}

func testChunk(id string, embedding []float32) *model.DocumentChunk {
	return &model.DocumentChunk{
		ID:         id,
		DocumentID: "doc1",
		Content:    "Discounted cash flow valuation content.",
		Embedding:  embedding,
		Metadata:   model.ChunkMetadata{SectionTitle: "Valuation", Topics: []string{"Discounted Cash Flow"}},
		Concepts: []model.FinancialConcept{
			{Name: "Discounted Cash Flow", Category: model.CategoryValuation},
		},
	}
}

func TestStoreChunks_SkipsUnusableEmbeddings(t *testing.T) {
	vs := &fakeVectorStore{}
	retriever := newTestRetriever(vs, nil)

	doc := &model.FinancialDocument{ID: "doc1", Title: "Doc One"}
	chunks := []*model.DocumentChunk{
		testChunk("doc1-s0-c0", []float32{1, 2, 3}),
		testChunk("doc1-s0-c1", nil),
		testChunk("doc1-s0-c2", make([]float32, 3)), // zero vector
	}

	require.NoError(t, retriever.StoreChunks(context.Background(), doc, chunks))
	require.Len(t, vs.upserts, 1)
	require.Len(t, vs.upserts[0], 1)
	assert.Equal(t, "doc1-s0-c0", vs.upserts[0][0].ID)
}

func TestStoreChunks_Batches(t *testing.T) {
	vs := &fakeVectorStore{}
	config := DefaultRetrieverConfig()
	config.UpsertBatchSize = 2
	retriever := newTestRetriever(vs, config)

	doc := &model.FinancialDocument{ID: "doc1", Title: "Doc One"}
	var chunks []*model.DocumentChunk
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		chunks = append(chunks, testChunk(id, []float32{1, 1}))
	}

	require.NoError(t, retriever.StoreChunks(context.Background(), doc, chunks))
	require.Len(t, vs.upserts, 3)
	assert.Len(t, vs.upserts[0], 2)
	assert.Len(t, vs.upserts[2], 1)
}

func TestStoreChunks_RecordFields(t *testing.T) {
	vs := &fakeVectorStore{}
	retriever := newTestRetriever(vs, nil)

	doc := &model.FinancialDocument{ID: "doc1", Title: "Doc One"}
	chunk := testChunk("doc1-s0-c0", []float32{1, 2})
	chunk.Concepts = append(chunk.Concepts, model.FinancialConcept{
		Name: "Sharpe Ratio", Category: model.CategoryRiskMetrics,
	})
	chunk.Metadata.Formulas = []string{"EV = FCF / (WACC - g)", "Sharpe = (Rp - Rf) / sigma"}

	require.NoError(t, retriever.StoreChunks(context.Background(), doc, []*model.DocumentChunk{chunk}))

	record := vs.upserts[0][0]
	assert.Equal(t, "Doc One", record.DocumentTitle)
	assert.Equal(t, "Valuation", record.Section)
	assert.Equal(t, "discountedcashflow sharperatio", record.Concepts)
	assert.Equal(t, "valuation risk_metrics", record.Categories)
	assert.Equal(t, "EV = FCF / (WACC - g)\nSharpe = (Rp - Rf) / sigma", record.Formulas)
}

func TestSearchKnowledge_PopulatesFormulas(t *testing.T) {
	vs := &fakeVectorStore{
		searchResults: []*store.SearchResult{
			{
				ID:       "hit",
				Content:  "Terminal value derivation.",
				Score:    0.9,
				Formulas: "TV = FCF * (1 + g) / (WACC - g)\nEV = sum(FCF_t / (1 + WACC)^t)",
			},
		},
	}
	retriever := newTestRetriever(vs, nil)

	results, err := retriever.SearchKnowledge(context.Background(), &SearchQuery{
		Symbol:         "AAPL",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.FundamentalAnalysis,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	want := []string{"TV = FCF * (1 + g) / (WACC - g)", "EV = sum(FCF_t / (1 + WACC)^t)"}
	assert.Equal(t, want, results[0].Formulas)
	assert.Equal(t, want, results[0].Chunk.Metadata.Formulas)
}

func TestStoreChunks_UpsertError(t *testing.T) {
	vs := &fakeVectorStore{upsertErr: stderrors.New("milvus down")}
	retriever := newTestRetriever(vs, nil)

	doc := &model.FinancialDocument{ID: "doc1"}
	err := retriever.StoreChunks(context.Background(), doc, []*model.DocumentChunk{
		testChunk("id", []float32{1}),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrVectorStore.Code, errors.GetCode(err))
}

func TestSearchKnowledge_FiltersByMinScore(t *testing.T) {
	vs := &fakeVectorStore{
		searchResults: []*store.SearchResult{
			{ID: "high", DocumentTitle: "CFA Notes", Content: "relevant", Score: 0.95, Topics: "Discounted Cash Flow"},
			{ID: "low", DocumentTitle: "CFA Notes", Content: "barely related", Score: 0.5},
		},
	}
	retriever := newTestRetriever(vs, nil)

	results, err := retriever.SearchKnowledge(context.Background(), &SearchQuery{
		Symbol:         "AAPL",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.FundamentalAnalysis,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high", results[0].Chunk.ID)
	assert.InDelta(t, 0.95, results[0].Score, 1e-6)
	assert.Contains(t, results[0].Explanation, "95% relevance match")
	assert.Contains(t, results[0].Explanation, "CFA Notes")
}

func TestSearchKnowledge_MinScoreOverride(t *testing.T) {
	vs := &fakeVectorStore{
		searchResults: []*store.SearchResult{
			{ID: "low", Content: "weak match", Score: 0.5},
		},
	}
	retriever := newTestRetriever(vs, nil)

	minScore := 0.3
	results, err := retriever.SearchKnowledge(context.Background(), &SearchQuery{
		Symbol:         "AAPL",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.FundamentalAnalysis,
		MinScore:       &minScore,
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchKnowledge_CategoryFilter(t *testing.T) {
	vs := &fakeVectorStore{}
	retriever := newTestRetriever(vs, nil)

	_, err := retriever.SearchKnowledge(context.Background(), &SearchQuery{
		Symbol:         "AAPL",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.RiskAssessment,
		TopK:           3,
	})
	require.NoError(t, err)
	assert.Contains(t, vs.searchFilter, "risk_metrics")
	assert.Contains(t, vs.searchFilter, "statistics")
	assert.Equal(t, 3, vs.searchTopK)
}

func TestSearchKnowledge_NoFilterForUnknownAnalysisType(t *testing.T) {
	vs := &fakeVectorStore{}
	retriever := newTestRetriever(vs, nil)

	_, err := retriever.SearchKnowledge(context.Background(), &SearchQuery{
		Symbol:       "AAPL",
		AnalysisType: model.AnalysisType("UNKNOWN"),
	})
	require.NoError(t, err)
	assert.Empty(t, vs.searchFilter)
}

func TestSearchKnowledge_EmptyQuery(t *testing.T) {
	retriever := newTestRetriever(&fakeVectorStore{}, nil)

	_, err := retriever.SearchKnowledge(context.Background(), &SearchQuery{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrKnowledgeInvalidRequest.Code, errors.GetCode(err))

	_, err = retriever.SearchKnowledge(context.Background(), nil)
	require.Error(t, err)
}

func TestSearchKnowledge_StoreError(t *testing.T) {
	vs := &fakeVectorStore{searchErr: stderrors.New("collection missing")}
	retriever := newTestRetriever(vs, nil)

	_, err := retriever.SearchKnowledge(context.Background(), &SearchQuery{Symbol: "AAPL"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrKnowledgeSearchFailed.Code, errors.GetCode(err))
}

func TestEnsureCollection(t *testing.T) {
	vs := &fakeVectorStore{}
	retriever := newTestRetriever(vs, &RetrieverConfig{
		Collection: "test_chunks",
		Dimension:  8,
	})

	require.NoError(t, retriever.EnsureCollection(context.Background()))
	require.Len(t, vs.created, 1)
	assert.Equal(t, "test_chunks", vs.created[0].Name)
	assert.Equal(t, 8, vs.created[0].Dimension)
}

func TestBuildQueryText(t *testing.T) {
	text := buildQueryText(&SearchQuery{
		Symbol:         "MSFT",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.FundamentalAnalysis,
		Concepts:       []string{"free cash flow"},
	})
	assert.Contains(t, text, "MSFT")
	assert.Contains(t, text, "equity")
	assert.Contains(t, text, "fundamental analysis")
	assert.Contains(t, text, "free cash flow")
}
