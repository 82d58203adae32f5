package biz

import (
	"context"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/finsight-io/finsight/internal/knowledge/metrics"
	"github.com/finsight-io/finsight/internal/knowledge/store"
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/pkg/embedding"
	"github.com/finsight-io/finsight/pkg/llm"
	"github.com/finsight-io/finsight/pkg/utils/errors"
)

// Service is the knowledge service interface.
type Service interface {
	// Init prepares backing storage.
	Init(ctx context.Context) error
	// UploadDocument ingests a document. When async is true the
	// pipeline runs in the background and the pending job is returned.
	UploadDocument(ctx context.Context, data []byte, meta UploadMeta, async bool) (*model.ProcessingJob, error)
	// GetJob returns an ingestion job by id.
	GetJob(id string) (*model.ProcessingJob, error)
	// Search retrieves relevant knowledge for a query.
	Search(ctx context.Context, q *SearchQuery) ([]*model.KnowledgeResult, error)
	// EnhancedAnalysis retrieves knowledge and frameworks, then
	// generates a structured analysis.
	EnhancedAnalysis(ctx context.Context, req *AnalysisRequest) (*model.AnalysisResult, error)
	// Frameworks returns valuation frameworks for an instrument type,
	// optionally annotated with sector and region context.
	Frameworks(instrumentType model.InstrumentType, sector, region string) ([]*model.ValuationFramework, error)
	// GetStats returns knowledge base statistics.
	GetStats(ctx context.Context) (map[string]any, error)
	// Close releases background resources.
	Close()
}

// ServiceConfig bundles the per-component configurations.
type ServiceConfig struct {
	ProcessorConfig   *ProcessorConfig
	ExtractorConfig   *ExtractorConfig
	RetrieverConfig   *RetrieverConfig
	AnalyzerConfig    *AnalyzerConfig
	SearchCacheConfig *SearchCacheConfig
}

// KnowledgeService composes the processor, retriever and analyzer into
// the full ingestion and retrieval pipeline.
type KnowledgeService struct {
	processor *DocumentProcessor
	extractor *ConceptExtractor
	retriever *Retriever
	analyzer  *Analyzer
	cache     *SearchCache
	embedder  *embedding.Service
	store     store.VectorStore

	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	metrics       *metrics.KnowledgeMetrics
}

// NewKnowledgeService wires up the knowledge service. chatProvider may
// be nil; concept extraction then runs pattern-only and enhanced
// analysis is unavailable. redisClient may be nil to disable caching.
func NewKnowledgeService(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	embedder *embedding.Service,
	redisClient *goredis.Client,
	config *ServiceConfig,
) (*KnowledgeService, error) {
	if config == nil {
		config = &ServiceConfig{}
	}

	extractor := NewConceptExtractor(chatProvider, config.ExtractorConfig)
	retriever := NewRetriever(vectorStore, embedder, config.RetrieverConfig)
	analyzer := NewAnalyzer(chatProvider, config.AnalyzerConfig)
	cache := NewSearchCache(redisClient, config.SearchCacheConfig)

	processor, err := NewDocumentProcessor(extractor, embedder, retriever, config.ProcessorConfig)
	if err != nil {
		return nil, err
	}

	return &KnowledgeService{
		processor:     processor,
		extractor:     extractor,
		retriever:     retriever,
		analyzer:      analyzer,
		cache:         cache,
		embedder:      embedder,
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		metrics:       metrics.GetKnowledgeMetrics(),
	}, nil
}

// Init creates the chunk collection if missing.
func (s *KnowledgeService) Init(ctx context.Context) error {
	return s.retriever.EnsureCollection(ctx)
}

// Close releases the processor worker pool.
func (s *KnowledgeService) Close() {
	s.processor.Close()
}

// UploadDocument runs the ingestion pipeline, synchronously or on the
// background pool.
func (s *KnowledgeService) UploadDocument(ctx context.Context, data []byte, meta UploadMeta, async bool) (*model.ProcessingJob, error) {
	if len(data) == 0 {
		return nil, errors.ErrKnowledgeInvalidRequest.WithMessage("document is empty")
	}
	if meta.Title == "" {
		return nil, errors.ErrKnowledgeInvalidRequest.WithMessage("title is required")
	}

	if async {
		return s.processor.SubmitDocument(data, meta)
	}
	return s.processor.ProcessDocument(ctx, data, meta), nil
}

// GetJob returns an ingestion job by id.
func (s *KnowledgeService) GetJob(id string) (*model.ProcessingJob, error) {
	job, ok := s.processor.GetJob(id)
	if !ok {
		return nil, errors.ErrKnowledgeJobNotFound.WithMessagef("job %s not found", id)
	}
	return job, nil
}

// Search retrieves relevant knowledge, consulting the result cache
// first. Cache failures fall through to a live search.
func (s *KnowledgeService) Search(ctx context.Context, q *SearchQuery) ([]*model.KnowledgeResult, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, q)
		if err == nil && cached != nil {
			s.metrics.RecordSearch(true, nil)
			return cached, nil
		}
	}

	results, err := s.retriever.SearchKnowledge(ctx, q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(results) > 0 {
		// Write failures are logged in cache.Set and never surface.
		_ = s.cache.Set(ctx, q, results)
	}
	return results, nil
}

// EnhancedAnalysis retrieves knowledge and frameworks for the
// instrument, then generates a structured analysis. Retrieval failures
// degrade to an analysis without reference material rather than
// failing the request.
func (s *KnowledgeService) EnhancedAnalysis(ctx context.Context, req *AnalysisRequest) (*model.AnalysisResult, error) {
	if req == nil || req.Symbol == "" {
		return nil, errors.ErrKnowledgeInvalidRequest.WithMessage("symbol is required")
	}

	if len(req.Knowledge) == 0 {
		knowledge, err := s.Search(ctx, &SearchQuery{
			Symbol:         req.Symbol,
			InstrumentType: req.InstrumentType,
			AnalysisType:   req.AnalysisType,
		})
		if err != nil {
			logger.Warnw("knowledge retrieval failed, analyzing without references",
				"symbol", req.Symbol,
				"error", err.Error(),
			)
		} else {
			req.Knowledge = knowledge
		}
	}

	if len(req.Frameworks) == 0 {
		frameworks, err := FrameworksForInstrument(req.InstrumentType)
		if err == nil {
			req.Frameworks = ScopeFrameworks(frameworks, req.Sector, req.Region)
		}
	}

	return s.analyzer.GenerateAnalysis(ctx, req)
}

// Frameworks returns valuation frameworks for an instrument type,
// optionally annotated with sector and region context.
func (s *KnowledgeService) Frameworks(instrumentType model.InstrumentType, sector, region string) ([]*model.ValuationFramework, error) {
	frameworks, err := FrameworksForInstrument(instrumentType)
	if err != nil {
		return nil, err
	}
	return ScopeFrameworks(frameworks, sector, region), nil
}

// GetStats returns knowledge base statistics.
func (s *KnowledgeService) GetStats(ctx context.Context) (map[string]any, error) {
	stats, err := s.retriever.Stats(ctx)
	if err != nil {
		return nil, err
	}

	stats["embed_provider"] = s.embedProvider.Name()
	if s.chatProvider != nil {
		stats["chat_provider"] = s.chatProvider.Name()
	}

	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(ctx)
		if err == nil {
			stats["cache"] = cacheStats
		}
	}

	stats["metrics"] = s.metrics.Stats()
	return stats, nil
}

var _ Service = (*KnowledgeService)(nil)
