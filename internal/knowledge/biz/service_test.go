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
	"github.com/finsight-io/finsight/pkg/llm"
	"github.com/finsight-io/finsight/pkg/utils/errors"
)

func newTestService(t *testing.T, vs store.VectorStore, chat *mockChatProvider) *KnowledgeService {
	t.Helper()

	embedProvider := &stubEmbeddingProvider{dimensions: 8}
	embedder := embedding.NewService(embedProvider, embedding.Config{
		TargetDimensions: 8,
		TokenBudget:      1000,
		BatchSize:        10,
		InterBatchDelay:  time.Millisecond,
		ItemDelay:        time.Millisecond,
	})

	var chatProvider llm.ChatProvider
	if chat != nil {
		chatProvider = chat
	}

	svc, err := NewKnowledgeService(vs, embedProvider, chatProvider, embedder, nil, &ServiceConfig{
		ProcessorConfig: &ProcessorConfig{ChunkTokenBudget: 50, MinSectionLen: 20, PoolSize: 2},
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestService_UploadAndFetchJob(t *testing.T) {
	svc := newTestService(t, &fakeVectorStore{}, nil)

	job, err := svc.UploadDocument(context.Background(), sampleDocument(), UploadMeta{
		Title:  "Upload Test",
		Source: model.SourceInternal,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)

	fetched, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, fetched.ID)
}

func TestService_UploadValidation(t *testing.T) {
	svc := newTestService(t, &fakeVectorStore{}, nil)

	_, err := svc.UploadDocument(context.Background(), nil, UploadMeta{Title: "x"}, false)
	require.Error(t, err)
	assert.Equal(t, errors.ErrKnowledgeInvalidRequest.Code, errors.GetCode(err))

	_, err = svc.UploadDocument(context.Background(), []byte("content"), UploadMeta{}, false)
	require.Error(t, err)
}

func TestService_GetJobNotFound(t *testing.T) {
	svc := newTestService(t, &fakeVectorStore{}, nil)

	_, err := svc.GetJob("missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrKnowledgeJobNotFound.Code, errors.GetCode(err))
}

func TestService_SearchWithoutCache(t *testing.T) {
	vs := &fakeVectorStore{
		searchResults: []*store.SearchResult{
			{ID: "hit", Content: "relevant text", Score: 0.9},
		},
	}
	svc := newTestService(t, vs, nil)

	results, err := svc.Search(context.Background(), &SearchQuery{
		Symbol:         "AAPL",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.FundamentalAnalysis,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].Chunk.ID)
}

func TestService_EnhancedAnalysisComposesRetrievalAndFrameworks(t *testing.T) {
	vs := &fakeVectorStore{
		searchResults: []*store.SearchResult{
			{ID: "hit", Content: "DCF background material", Score: 0.88},
		},
	}
	chat := &mockChatProvider{
		response: `{"summary": "Fairly valued.", "recommendation": {"action": "HOLD", "confidence": 0.6}}`,
	}
	svc := newTestService(t, vs, chat)

	result, err := svc.EnhancedAnalysis(context.Background(), &AnalysisRequest{
		Symbol:         "AAPL",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.FundamentalAnalysis,
	})
	require.NoError(t, err)

	assert.Equal(t, model.ActionHold, result.Recommendation.Action)
	assert.Equal(t, 1, result.KnowledgeUsed)
	assert.Contains(t, result.AppliedFrameworks, "Discounted Cash Flow")
}

func TestService_EnhancedAnalysisSurvivesRetrievalFailure(t *testing.T) {
	vs := &fakeVectorStore{searchErr: stderrors.New("index down")}
	chat := &mockChatProvider{
		response: `{"summary": "Analysis without references.", "recommendation": {"action": "HOLD", "confidence": 0.4}}`,
	}
	svc := newTestService(t, vs, chat)

	result, err := svc.EnhancedAnalysis(context.Background(), &AnalysisRequest{
		Symbol:         "AAPL",
		InstrumentType: model.InstrumentStock,
		AnalysisType:   model.FundamentalAnalysis,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.KnowledgeUsed)
}

func TestService_EnhancedAnalysisRequiresSymbol(t *testing.T) {
	svc := newTestService(t, &fakeVectorStore{}, &mockChatProvider{})

	_, err := svc.EnhancedAnalysis(context.Background(), &AnalysisRequest{})
	require.Error(t, err)
}

func TestService_GetStats(t *testing.T) {
	svc := newTestService(t, &fakeVectorStore{}, nil)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stub", stats["embed_provider"])
	assert.Contains(t, stats, "metrics")
	assert.NotContains(t, stats, "chat_provider")
}

func TestService_Init(t *testing.T) {
	vs := &fakeVectorStore{}
	svc := newTestService(t, vs, nil)

	require.NoError(t, svc.Init(context.Background()))
	assert.Len(t, vs.created, 1)
}
