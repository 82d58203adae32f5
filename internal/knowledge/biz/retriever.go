package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/finsight-io/finsight/internal/knowledge/metrics"
	"github.com/finsight-io/finsight/internal/knowledge/store"
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/internal/pkg/knowledge/textutil"
	"github.com/finsight-io/finsight/pkg/embedding"
	"github.com/finsight-io/finsight/pkg/utils/errors"
)

// RetrieverConfig tunes chunk storage and similarity search.
type RetrieverConfig struct {
	// Collection is the chunk collection name.
	Collection string
	// Dimension is the embedding dimensionality.
	Dimension int
	// UpsertBatchSize bounds rows per upsert call.
	UpsertBatchSize int
	// IndexContentLimit truncates chunk content stored in the index.
	IndexContentLimit int
	// TopK is the default result count.
	TopK int
	// MinScore is the default relevance floor in [0, 1]. Callers may
	// override it per request, including lowering it.
	MinScore float64
}

// DefaultRetrieverConfig returns the default retriever configuration.
func DefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		Collection:        "financial_knowledge",
		Dimension:         1536,
		UpsertBatchSize:   100,
		IndexContentLimit: 2000,
		TopK:              5,
		MinScore:          0.7,
	}
}

// SearchQuery describes a knowledge retrieval request.
type SearchQuery struct {
	Symbol         string               `json:"symbol"`
	InstrumentType model.InstrumentType `json:"instrumentType"`
	AnalysisType   model.AnalysisType   `json:"analysisType"`
	Concepts       []string             `json:"concepts,omitempty"`
	TopK           int                  `json:"topK,omitempty"`
	MinScore       *float64             `json:"minScore,omitempty"`
}

// Retriever persists processed chunks and answers similarity queries
// against the vector store.
type Retriever struct {
	store    store.VectorStore
	embedder *embedding.Service
	config   *RetrieverConfig
	metrics  *metrics.KnowledgeMetrics
}

// NewRetriever creates a retriever.
func NewRetriever(vs store.VectorStore, embedder *embedding.Service, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = DefaultRetrieverConfig()
	}
	return &Retriever{
		store:    vs,
		embedder: embedder,
		config:   config,
		metrics:  metrics.GetKnowledgeMetrics(),
	}
}

// EnsureCollection creates the chunk collection if missing.
func (r *Retriever) EnsureCollection(ctx context.Context) error {
	return r.store.CreateCollection(ctx, &store.CollectionConfig{
		Name:        r.config.Collection,
		Description: "Financial knowledge chunks with concept metadata",
		Dimension:   r.config.Dimension,
	})
}

// StoreChunks writes processed chunks to the vector store in batches.
// Chunks without a usable embedding are skipped; zero vectors carry no
// signal for cosine ranking.
func (r *Retriever) StoreChunks(ctx context.Context, doc *model.FinancialDocument, chunks []*model.DocumentChunk) error {
	records := make([]*store.ChunkRecord, 0, len(chunks))
	skipped := 0
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 || isZeroVector(chunk.Embedding) {
			skipped++
			continue
		}
		records = append(records, r.toRecord(doc, chunk))
	}
	if skipped > 0 {
		logger.Warnw("skipping chunks without usable embeddings",
			"document_id", doc.ID,
			"skipped", skipped,
		)
	}
	if len(records) == 0 {
		return nil
	}

	for start := 0; start < len(records); start += r.config.UpsertBatchSize {
		end := start + r.config.UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := r.store.Upsert(ctx, r.config.Collection, records[start:end]); err != nil {
			return errors.ErrVectorStore.WithCause(err)
		}
	}

	logger.Infow("chunks stored",
		"document_id", doc.ID,
		"records", len(records),
		"collection", r.config.Collection,
	)
	return nil
}

func (r *Retriever) toRecord(doc *model.FinancialDocument, chunk *model.DocumentChunk) *store.ChunkRecord {
	conceptNames := make([]string, 0, len(chunk.Concepts))
	categorySet := make(map[string]struct{})
	var categories []string
	for _, c := range chunk.Concepts {
		conceptNames = append(conceptNames, textutil.NormalizeConceptName(c.Name))
		cat := string(c.Category)
		if _, ok := categorySet[cat]; !ok {
			categorySet[cat] = struct{}{}
			categories = append(categories, cat)
		}
	}

	return &store.ChunkRecord{
		ID:            chunk.ID,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		ChunkIndex:    int64(chunk.ChunkIndex),
		Section:       chunk.Metadata.SectionTitle,
		Content:       textutil.TruncateAtSentence(chunk.Content, r.config.IndexContentLimit),
		Topics:        strings.Join(chunk.Metadata.Topics, " "),
		Concepts:      strings.Join(conceptNames, " "),
		Categories:    strings.Join(categories, " "),
		Formulas:      strings.Join(chunk.Metadata.Formulas, "\n"),
		Embedding:     chunk.Embedding,
	}
}

// analysisCategories maps each analysis discipline to the concept
// categories worth filtering on.
var analysisCategories = map[model.AnalysisType][]model.ConceptCategory{
	model.FundamentalAnalysis: {model.CategoryValuation, model.CategoryRatioAnalysis, model.CategoryEquityAnalysis},
	model.TechnicalAnalysis:   {model.CategoryMarketStructure, model.CategoryStatistics},
	model.RiskAssessment:      {model.CategoryRiskMetrics, model.CategoryStatistics},
	model.PortfolioReview:     {model.CategoryPortfolioTheory, model.CategoryRiskMetrics},
}

// analysisLabels expands analysis types into query phrasing.
var analysisLabels = map[model.AnalysisType]string{
	model.FundamentalAnalysis: "fundamental analysis valuation financial statements",
	model.TechnicalAnalysis:   "technical analysis price trends indicators",
	model.RiskAssessment:      "risk assessment volatility downside exposure",
	model.PortfolioReview:     "portfolio review allocation diversification",
}

var instrumentLabels = map[model.InstrumentType]string{
	model.InstrumentStock:      "common stock equity",
	model.InstrumentBond:       "bond fixed income debt security",
	model.InstrumentETF:        "exchange traded fund",
	model.InstrumentMutualFund: "mutual fund pooled investment",
}

// buildQueryText composes the embedding query from the request parts.
func buildQueryText(q *SearchQuery) string {
	var parts []string
	if q.Symbol != "" {
		parts = append(parts, fmt.Sprintf("analysis of %s", q.Symbol))
	}
	if label, ok := instrumentLabels[q.InstrumentType]; ok {
		parts = append(parts, label)
	}
	if label, ok := analysisLabels[q.AnalysisType]; ok {
		parts = append(parts, label)
	}
	parts = append(parts, q.Concepts...)
	return strings.Join(parts, ". ")
}

// buildFilter derives a category filter expression for the vector
// store, or "" when the analysis type has no category mapping.
func (r *Retriever) buildFilter(analysisType model.AnalysisType) string {
	cats, ok := analysisCategories[analysisType]
	if !ok || len(cats) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(cats))
	for _, cat := range cats {
		clauses = append(clauses, fmt.Sprintf(`categories like "%%%s%%"`, cat))
	}
	return strings.Join(clauses, " or ")
}

// SearchKnowledge embeds the query, searches the vector store with a
// category filter and drops results below the relevance floor.
func (r *Retriever) SearchKnowledge(ctx context.Context, q *SearchQuery) ([]*model.KnowledgeResult, error) {
	if q == nil {
		return nil, errors.ErrKnowledgeInvalidRequest.WithMessage("query is required")
	}

	topK := q.TopK
	if topK <= 0 {
		topK = r.config.TopK
	}
	minScore := r.config.MinScore
	if q.MinScore != nil {
		minScore = *q.MinScore
	}

	queryText := buildQueryText(q)
	if strings.TrimSpace(queryText) == "" {
		return nil, errors.ErrKnowledgeInvalidRequest.WithMessage("query has no searchable content")
	}

	vector, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		r.metrics.RecordSearch(false, err)
		return nil, errors.ErrKnowledgeEmbedFailed.WithCause(err)
	}

	filter := r.buildFilter(q.AnalysisType)
	raw, err := r.store.Search(ctx, r.config.Collection, vector, topK, filter)
	if err != nil {
		r.metrics.RecordSearch(false, err)
		return nil, errors.ErrKnowledgeSearchFailed.WithCause(err)
	}

	results := make([]*model.KnowledgeResult, 0, len(raw))
	for _, hit := range raw {
		score := float64(hit.Score)
		if score < minScore {
			continue
		}
		results = append(results, toKnowledgeResult(hit, score))
	}

	r.metrics.RecordSearch(false, nil)
	logger.Infow("knowledge search completed",
		"symbol", q.Symbol,
		"analysis_type", q.AnalysisType,
		"hits", len(raw),
		"kept", len(results),
		"min_score", minScore,
	)
	return results, nil
}

func toKnowledgeResult(hit *store.SearchResult, score float64) *model.KnowledgeResult {
	concepts := strings.Fields(hit.Concepts)
	topics := strings.Fields(hit.Topics)
	formulas := splitStoredFormulas(hit.Formulas)

	return &model.KnowledgeResult{
		Chunk: model.DocumentChunk{
			ID:         hit.ID,
			DocumentID: hit.DocumentID,
			ChunkIndex: int(hit.ChunkIndex),
			Content:    hit.Content,
			TokenCount: textutil.EstimateTokens(hit.Content),
			Metadata: model.ChunkMetadata{
				SectionTitle: hit.Section,
				Topics:       topics,
				Formulas:     formulas,
			},
		},
		Score:       score,
		Explanation: explainResult(hit, score, topics, concepts),
		Concepts:    concepts,
		Formulas:    formulas,
	}
}

// splitStoredFormulas undoes the newline join used in the index payload.
func splitStoredFormulas(joined string) []string {
	if joined == "" {
		return nil
	}
	var formulas []string
	for _, line := range strings.Split(joined, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			formulas = append(formulas, line)
		}
	}
	return formulas
}

// explainResult produces a short human-readable relevance note.
func explainResult(hit *store.SearchResult, score float64, topics, concepts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%.0f%% relevance match", score*100)
	if hit.DocumentTitle != "" {
		fmt.Fprintf(&b, " from %q", hit.DocumentTitle)
	}
	if len(topics) > 0 {
		fmt.Fprintf(&b, "; covers %s", strings.Join(firstN(topics, 3), ", "))
	} else if len(concepts) > 0 {
		fmt.Fprintf(&b, "; mentions %s", strings.Join(firstN(concepts, 3), ", "))
	}
	return b.String()
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// DeleteDocumentChunks removes the given chunk ids.
func (r *Retriever) DeleteDocumentChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.store.DeleteByIDs(ctx, r.config.Collection, ids); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// Stats returns vector store statistics for the chunk collection.
func (r *Retriever) Stats(ctx context.Context) (map[string]any, error) {
	stats, err := r.store.GetStats(ctx, r.config.Collection)
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}
	return stats, nil
}
