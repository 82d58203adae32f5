package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/pkg/llm"
)

// mockChatProvider returns a canned reply or error.
type mockChatProvider struct {
	response string
	usage    *llm.TokenUsage
	err      error
	calls    int
}

func (m *mockChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &llm.GenerateResponse{Content: m.response, TokenUsage: m.usage}, nil
}

func (m *mockChatProvider) Name() string { return "mock" }

func TestExtractByPattern(t *testing.T) {
	extractor := NewConceptExtractor(nil, nil)

	text := "The DCF approach discounts cash flows at the WACC. " +
		"Compare the result with the P/E ratio of peers."
	concepts := extractor.ExtractConcepts(context.Background(), text, nil)

	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "Discounted Cash Flow")
	assert.Contains(t, names, "WACC")
	assert.Contains(t, names, "P/E Ratio")

	for _, c := range concepts {
		assert.NotEmpty(t, c.Definition, c.Name)
		assert.NotEmpty(t, c.Applications, c.Name)
	}
}

func TestExtractByPattern_RelatedConcepts(t *testing.T) {
	extractor := NewConceptExtractor(nil, nil)

	concepts := extractor.ExtractConcepts(context.Background(),
		"Sharpe ratio and maximum drawdown summarize portfolio risk.", nil)
	require.Len(t, concepts, 2)

	assert.Contains(t, concepts[0].RelatedConcepts, concepts[1].Name)
	assert.Contains(t, concepts[1].RelatedConcepts, concepts[0].Name)
}

func TestExtractConcepts_NoMatches(t *testing.T) {
	extractor := NewConceptExtractor(nil, nil)
	concepts := extractor.ExtractConcepts(context.Background(), "The weather is sunny today.", nil)
	assert.Empty(t, concepts)
}

func TestExtractConcepts_SkipsGenerativeForShortText(t *testing.T) {
	chat := &mockChatProvider{response: "[]"}
	extractor := NewConceptExtractor(chat, &ExtractorConfig{MinGenerativeLen: 300})

	extractor.ExtractConcepts(context.Background(), "Short text about EBITDA.", nil)
	assert.Equal(t, 0, chat.calls)
}

func TestExtractConcepts_GenerativeMerge(t *testing.T) {
	chat := &mockChatProvider{
		response: `Here are the concepts:
[
  {"name": "EBITDA", "category": "ratio_analysis", "definition": "Model-refined EBITDA definition.", "related_concepts": ["Operating Margin"], "formulas": [], "applications": ["credit analysis"]},
  {"name": "Economic Moat", "category": "equity_analysis", "definition": "A durable competitive advantage.", "related_concepts": [], "formulas": [], "applications": []}
]`,
	}
	extractor := NewConceptExtractor(chat, &ExtractorConfig{MinGenerativeLen: 10})

	text := "EBITDA margins expanded this quarter. " + strings.Repeat("Additional context. ", 5)
	concepts := extractor.ExtractConcepts(context.Background(), text, nil)
	require.Equal(t, 1, chat.calls)

	byName := make(map[string]model.FinancialConcept)
	for _, c := range concepts {
		byName[c.Name] = c
	}

	// Generative definition replaces the glossary one; list fields union.
	ebitda, ok := byName["EBITDA"]
	require.True(t, ok)
	assert.Equal(t, "Model-refined EBITDA definition.", ebitda.Definition)
	assert.Contains(t, ebitda.RelatedConcepts, "Operating Margin")
	assert.Contains(t, ebitda.Applications, "credit analysis")

	// A concept only the model found is kept.
	moat, ok := byName["Economic Moat"]
	require.True(t, ok)
	assert.Equal(t, model.CategoryEquityAnalysis, moat.Category)
}

func TestExtractConcepts_GenerativeFailureKeepsPatternResults(t *testing.T) {
	chat := &mockChatProvider{err: errors.New("provider down")}
	extractor := NewConceptExtractor(chat, &ExtractorConfig{MinGenerativeLen: 10})

	concepts := extractor.ExtractConcepts(context.Background(),
		"Value at risk quantifies downside exposure over a fixed horizon.", nil)
	require.NotEmpty(t, concepts)
	assert.Equal(t, "Value at Risk", concepts[0].Name)
}

func TestExtractConcepts_GenerativeDropsInvalidItems(t *testing.T) {
	chat := &mockChatProvider{
		response: `[
  {"name": "", "category": "valuation", "definition": "missing name"},
  {"name": "Mystery", "category": "astrology", "definition": "unknown category"},
  {"name": "No Definition", "category": "valuation", "definition": ""},
  {"name": "Residual Income", "category": "valuation", "definition": "Income above the equity charge."}
]`,
	}
	extractor := NewConceptExtractor(chat, &ExtractorConfig{MinGenerativeLen: 10})

	concepts := extractor.ExtractConcepts(context.Background(),
		strings.Repeat("Valuation discussion without pattern keywords here. ", 3), nil)

	require.Len(t, concepts, 1)
	assert.Equal(t, "Residual Income", concepts[0].Name)
}

func TestMergeConcepts_DedupByNormalizedName(t *testing.T) {
	a := []model.FinancialConcept{
		{Name: "P/E Ratio", Category: model.CategoryRatioAnalysis, Definition: "base def", Formulas: []string{"P/E = P / EPS"}},
	}
	b := []model.FinancialConcept{
		{Name: "PE ratio", Category: model.CategoryRatioAnalysis, Definition: "overlay def", RelatedConcepts: []string{"EPS"}},
	}

	merged := MergeConcepts(a, b)
	require.Len(t, merged, 1)
	assert.Equal(t, "P/E Ratio", merged[0].Name)
	assert.Equal(t, "overlay def", merged[0].Definition)
	assert.Equal(t, []string{"EPS"}, merged[0].RelatedConcepts)
	// Overlay has no formulas, so the base formula survives.
	assert.Equal(t, []string{"P/E = P / EPS"}, merged[0].Formulas)
}

func TestMergeConcepts_SelfMergeIsNoOp(t *testing.T) {
	concepts := []model.FinancialConcept{
		{Name: "Beta", Category: model.CategoryRiskMetrics, Definition: "def", RelatedConcepts: []string{"CAPM"}},
		{Name: "CAPM", Category: model.CategoryPortfolioTheory, Definition: "def2"},
	}

	merged := MergeConcepts(concepts, concepts)
	assert.Equal(t, concepts, merged)
}

func TestMergeConcepts_EmptyOverlayDefinitionDoesNotErase(t *testing.T) {
	a := []model.FinancialConcept{{Name: "GDP", Category: model.CategoryEconomics, Definition: "kept"}}
	b := []model.FinancialConcept{{Name: "GDP", Category: model.CategoryEconomics, Definition: ""}}

	merged := MergeConcepts(a, b)
	require.Len(t, merged, 1)
	assert.Equal(t, "kept", merged[0].Definition)
}

func TestExtractFormulas(t *testing.T) {
	text := "The relation P/E = Price / EPS holds. Also ROE = Net Income / Equity."
	formulas := extractFormulas(text)
	require.NotEmpty(t, formulas)
	assert.LessOrEqual(t, len(formulas), 5)
}
