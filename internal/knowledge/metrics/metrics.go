// Package metrics collects business metrics for the knowledge service.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// KnowledgeMetrics holds atomic counters for the knowledge pipeline.
type KnowledgeMetrics struct {
	searchesTotal       uint64
	searchesCacheHits   uint64
	searchesCacheMisses uint64
	searchesErrors      uint64

	documentsProcessed  uint64
	documentsFailed     uint64
	chunksIndexed       uint64
	conceptsExtracted   uint64
	embeddingsGenerated uint64
	embeddingsDegraded  uint64

	analysesTotal    uint64
	analysesDegraded uint64
	analysesErrors   uint64

	llmCallsTotal       uint64
	llmCallsErrors      uint64
	llmTokensPrompt     uint64
	llmTokensCompletion uint64

	startTime time.Time
}

var (
	globalMetrics *KnowledgeMetrics
	metricsOnce   sync.Once
)

// GetKnowledgeMetrics returns the global metrics instance.
func GetKnowledgeMetrics() *KnowledgeMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &KnowledgeMetrics{
			startTime: time.Now(),
		}
	})
	return globalMetrics
}

// RecordSearch records one knowledge search.
func (m *KnowledgeMetrics) RecordSearch(cacheHit bool, err error) {
	atomic.AddUint64(&m.searchesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.searchesErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.searchesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.searchesCacheMisses, 1)
	}
}

// RecordDocument records one finished ingestion job.
func (m *KnowledgeMetrics) RecordDocument(chunks, concepts, embeddings int, failed bool) {
	if failed {
		atomic.AddUint64(&m.documentsFailed, 1)
		return
	}
	atomic.AddUint64(&m.documentsProcessed, 1)
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
	atomic.AddUint64(&m.conceptsExtracted, uint64(concepts))
	atomic.AddUint64(&m.embeddingsGenerated, uint64(embeddings))
}

// RecordEmbeddingDegraded records one zero-vector fallback.
func (m *KnowledgeMetrics) RecordEmbeddingDegraded() {
	atomic.AddUint64(&m.embeddingsDegraded, 1)
}

// RecordAnalysis records one analysis generation.
func (m *KnowledgeMetrics) RecordAnalysis(degraded bool, err error) {
	atomic.AddUint64(&m.analysesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.analysesErrors, 1)
		return
	}
	if degraded {
		atomic.AddUint64(&m.analysesDegraded, 1)
	}
}

// RecordLLMCall records one chat provider call.
func (m *KnowledgeMetrics) RecordLLMCall(promptTokens, completionTokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}
	if promptTokens > 0 {
		atomic.AddUint64(&m.llmTokensPrompt, uint64(promptTokens))
	}
	if completionTokens > 0 {
		atomic.AddUint64(&m.llmTokensCompletion, uint64(completionTokens))
	}
}

// Export renders metrics in Prometheus exposition format.
func (m *KnowledgeMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}

	counter("searches_total", "Total number of knowledge searches.", atomic.LoadUint64(&m.searchesTotal))
	counter("searches_cache_hits_total", "Number of search cache hits.", atomic.LoadUint64(&m.searchesCacheHits))
	counter("searches_cache_misses_total", "Number of search cache misses.", atomic.LoadUint64(&m.searchesCacheMisses))
	counter("searches_errors_total", "Number of search errors.", atomic.LoadUint64(&m.searchesErrors))
	counter("documents_processed_total", "Total documents processed.", atomic.LoadUint64(&m.documentsProcessed))
	counter("documents_failed_total", "Total failed ingestion jobs.", atomic.LoadUint64(&m.documentsFailed))
	counter("chunks_indexed_total", "Total chunks indexed.", atomic.LoadUint64(&m.chunksIndexed))
	counter("concepts_extracted_total", "Total concepts extracted.", atomic.LoadUint64(&m.conceptsExtracted))
	counter("embeddings_generated_total", "Total embeddings generated.", atomic.LoadUint64(&m.embeddingsGenerated))
	counter("embeddings_degraded_total", "Embeddings degraded to zero vectors.", atomic.LoadUint64(&m.embeddingsDegraded))
	counter("analyses_total", "Total analyses generated.", atomic.LoadUint64(&m.analysesTotal))
	counter("analyses_degraded_total", "Analyses degraded to fallback shape.", atomic.LoadUint64(&m.analysesDegraded))
	counter("analyses_errors_total", "Number of analysis errors.", atomic.LoadUint64(&m.analysesErrors))
	counter("llm_calls_total", "Total chat provider calls.", atomic.LoadUint64(&m.llmCallsTotal))
	counter("llm_calls_errors_total", "Number of chat provider errors.", atomic.LoadUint64(&m.llmCallsErrors))
	counter("llm_tokens_prompt_total", "Total prompt tokens.", atomic.LoadUint64(&m.llmTokensPrompt))
	counter("llm_tokens_completion_total", "Total completion tokens.", atomic.LoadUint64(&m.llmTokensCompletion))

	uptime := time.Since(m.startTime).Seconds()
	sb.WriteString(fmt.Sprintf("# HELP %s_uptime_seconds Service uptime in seconds.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_uptime_seconds gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_uptime_seconds %.2f\n", prefix, uptime))

	return sb.String()
}

// Stats returns current statistics for the stats API.
func (m *KnowledgeMetrics) Stats() map[string]interface{} {
	cacheHits := atomic.LoadUint64(&m.searchesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.searchesCacheMisses)
	cacheTotal := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if cacheTotal > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheTotal)
	}

	return map[string]interface{}{
		"searches": map[string]interface{}{
			"total":          atomic.LoadUint64(&m.searchesTotal),
			"cache_hits":     cacheHits,
			"cache_misses":   cacheMisses,
			"cache_hit_rate": cacheHitRate,
			"errors":         atomic.LoadUint64(&m.searchesErrors),
		},
		"ingestion": map[string]interface{}{
			"documents_processed":  atomic.LoadUint64(&m.documentsProcessed),
			"documents_failed":     atomic.LoadUint64(&m.documentsFailed),
			"chunks_indexed":       atomic.LoadUint64(&m.chunksIndexed),
			"concepts_extracted":   atomic.LoadUint64(&m.conceptsExtracted),
			"embeddings_generated": atomic.LoadUint64(&m.embeddingsGenerated),
			"embeddings_degraded":  atomic.LoadUint64(&m.embeddingsDegraded),
		},
		"analysis": map[string]interface{}{
			"total":    atomic.LoadUint64(&m.analysesTotal),
			"degraded": atomic.LoadUint64(&m.analysesDegraded),
			"errors":   atomic.LoadUint64(&m.analysesErrors),
		},
		"llm": map[string]interface{}{
			"calls_total":       atomic.LoadUint64(&m.llmCallsTotal),
			"errors":            atomic.LoadUint64(&m.llmCallsErrors),
			"tokens_prompt":     atomic.LoadUint64(&m.llmTokensPrompt),
			"tokens_completion": atomic.LoadUint64(&m.llmTokensCompletion),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset clears all counters. Test helper.
func (m *KnowledgeMetrics) Reset() {
	atomic.StoreUint64(&m.searchesTotal, 0)
	atomic.StoreUint64(&m.searchesCacheHits, 0)
	atomic.StoreUint64(&m.searchesCacheMisses, 0)
	atomic.StoreUint64(&m.searchesErrors, 0)
	atomic.StoreUint64(&m.documentsProcessed, 0)
	atomic.StoreUint64(&m.documentsFailed, 0)
	atomic.StoreUint64(&m.chunksIndexed, 0)
	atomic.StoreUint64(&m.conceptsExtracted, 0)
	atomic.StoreUint64(&m.embeddingsGenerated, 0)
	atomic.StoreUint64(&m.embeddingsDegraded, 0)
	atomic.StoreUint64(&m.analysesTotal, 0)
	atomic.StoreUint64(&m.analysesDegraded, 0)
	atomic.StoreUint64(&m.analysesErrors, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.llmTokensPrompt, 0)
	atomic.StoreUint64(&m.llmTokensCompletion, 0)
	m.startTime = time.Now()
}
