package metrics

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshMetrics(t *testing.T) *KnowledgeMetrics {
	t.Helper()
	m := GetKnowledgeMetrics()
	m.Reset()
	t.Cleanup(m.Reset)
	return m
}

func TestGetKnowledgeMetrics_Singleton(t *testing.T) {
	assert.Same(t, GetKnowledgeMetrics(), GetKnowledgeMetrics())
}

func TestRecordSearch(t *testing.T) {
	m := freshMetrics(t)

	m.RecordSearch(false, nil)
	m.RecordSearch(true, nil)
	m.RecordSearch(false, stderrors.New("boom"))

	stats := m.Stats()
	searches, ok := stats["searches"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, searches["total"])
	assert.EqualValues(t, 1, searches["cache_hits"])
	assert.EqualValues(t, 1, searches["cache_misses"])
	assert.EqualValues(t, 1, searches["errors"])
	assert.InDelta(t, 0.5, searches["cache_hit_rate"], 1e-9)
}

func TestRecordDocument(t *testing.T) {
	m := freshMetrics(t)

	m.RecordDocument(10, 4, 10, false)
	m.RecordDocument(0, 0, 0, true)

	ingestion := m.Stats()["ingestion"].(map[string]interface{})
	assert.EqualValues(t, 1, ingestion["documents_processed"])
	assert.EqualValues(t, 1, ingestion["documents_failed"])
	assert.EqualValues(t, 10, ingestion["chunks_indexed"])
	assert.EqualValues(t, 4, ingestion["concepts_extracted"])
}

func TestRecordAnalysisAndLLM(t *testing.T) {
	m := freshMetrics(t)

	m.RecordAnalysis(false, nil)
	m.RecordAnalysis(true, nil)
	m.RecordAnalysis(false, stderrors.New("provider down"))
	m.RecordLLMCall(120, 80, nil)
	m.RecordLLMCall(0, 0, stderrors.New("timeout"))

	stats := m.Stats()
	analysis := stats["analysis"].(map[string]interface{})
	assert.EqualValues(t, 3, analysis["total"])
	assert.EqualValues(t, 1, analysis["degraded"])
	assert.EqualValues(t, 1, analysis["errors"])

	llm := stats["llm"].(map[string]interface{})
	assert.EqualValues(t, 2, llm["calls_total"])
	assert.EqualValues(t, 1, llm["errors"])
	assert.EqualValues(t, 120, llm["tokens_prompt"])
	assert.EqualValues(t, 80, llm["tokens_completion"])
}

func TestExport_PrometheusFormat(t *testing.T) {
	m := freshMetrics(t)
	m.RecordSearch(false, nil)
	m.RecordEmbeddingDegraded()

	out := m.Export("finsight", "knowledge")

	assert.Contains(t, out, "# TYPE finsight_knowledge_searches_total counter")
	assert.Contains(t, out, "finsight_knowledge_searches_total 1")
	assert.Contains(t, out, "finsight_knowledge_embeddings_degraded_total 1")
	assert.Contains(t, out, "# TYPE finsight_knowledge_uptime_seconds gauge")

	// Every HELP line has a matching TYPE line.
	assert.Equal(t,
		strings.Count(out, "# HELP "),
		strings.Count(out, "# TYPE "),
	)
}

func TestExport_NoSubsystem(t *testing.T) {
	m := freshMetrics(t)
	out := m.Export("finsight", "")
	assert.Contains(t, out, "finsight_searches_total 0")
}
