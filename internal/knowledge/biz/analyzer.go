package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/finsight-io/finsight/internal/knowledge/metrics"
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/internal/pkg/knowledge/textutil"
	"github.com/finsight-io/finsight/pkg/llm"
	"github.com/finsight-io/finsight/pkg/utils/errors"
	"github.com/finsight-io/finsight/pkg/utils/json"
)

// AnalyzerConfig tunes analysis generation.
type AnalyzerConfig struct {
	// MaxSummaryLen bounds the degraded-mode summary taken from the
	// raw reply.
	MaxSummaryLen int
}

// DefaultAnalyzerConfig returns analyzer defaults.
func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{MaxSummaryLen: 1200}
}

// AnalysisRequest carries everything the analyzer needs: the
// instrument, current figures and the retrieved knowledge context.
type AnalysisRequest struct {
	Symbol         string                      `json:"symbol"`
	InstrumentType model.InstrumentType        `json:"instrumentType"`
	AnalysisType   model.AnalysisType          `json:"analysisType"`
	Sector         string                      `json:"sector,omitempty"`
	Region         string                      `json:"region,omitempty"`
	Market         *model.MarketSnapshot       `json:"market,omitempty"`
	Fundamentals   *model.FundamentalData      `json:"fundamentals,omitempty"`
	Knowledge      []*model.KnowledgeResult    `json:"-"`
	Frameworks     []*model.ValuationFramework `json:"-"`
}

// Analyzer turns retrieved knowledge and market figures into a
// structured analysis via the chat backend. Unparseable replies
// degrade to a HOLD verdict instead of failing.
type Analyzer struct {
	chat    llm.ChatProvider
	config  *AnalyzerConfig
	metrics *metrics.KnowledgeMetrics
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(chat llm.ChatProvider, config *AnalyzerConfig) *Analyzer {
	if config == nil {
		config = DefaultAnalyzerConfig()
	}
	return &Analyzer{
		chat:    chat,
		config:  config,
		metrics: metrics.GetKnowledgeMetrics(),
	}
}

const analysisSystemPrompt = `You are a CFA charterholder producing investment analysis grounded in the supplied reference material.
Respond with a single JSON object and nothing else, using this shape:
{
  "summary": "two to four sentence assessment",
  "recommendation": {"action": "BUY|SELL|HOLD", "confidence": 0.0, "reasoning": "one sentence"},
  "key_factors": ["..."],
  "risks": ["..."],
  "price_targets": {"low": 0, "base": 0, "high": 0}
}
Base every claim on the reference excerpts and figures provided. Omit price_targets when the data does not support them.`

// llmAnalysis is the reply shape expected from the chat backend.
type llmAnalysis struct {
	Summary        string                `json:"summary"`
	Recommendation *model.Recommendation `json:"recommendation"`
	KeyFactors     []string              `json:"key_factors"`
	Risks          []string              `json:"risks"`
	PriceTargets   *model.PriceTargets   `json:"price_targets"`
}

// GenerateAnalysis assembles the prompt, queries the chat backend and
// parses the structured reply.
func (a *Analyzer) GenerateAnalysis(ctx context.Context, req *AnalysisRequest) (*model.AnalysisResult, error) {
	if req == nil || req.Symbol == "" {
		return nil, errors.ErrKnowledgeInvalidRequest.WithMessage("symbol is required")
	}
	if a.chat == nil {
		return nil, errors.ErrAnalysisFailed.WithMessage("no chat backend configured")
	}

	prompt := a.buildPrompt(req)

	resp, err := a.chat.Generate(ctx, prompt, analysisSystemPrompt)
	if err != nil {
		a.metrics.RecordLLMCall(0, 0, err)
		a.metrics.RecordAnalysis(false, err)
		return nil, errors.ErrAnalysisFailed.WithCause(err)
	}
	if resp.TokenUsage != nil {
		a.metrics.RecordLLMCall(resp.TokenUsage.PromptTokens, resp.TokenUsage.CompletionTokens, nil)
	} else {
		a.metrics.RecordLLMCall(0, 0, nil)
	}

	result := a.parseReply(req, resp.Content)
	a.metrics.RecordAnalysis(result.Degraded, nil)

	logger.Infow("analysis generated",
		"symbol", req.Symbol,
		"analysis_type", req.AnalysisType,
		"action", result.Recommendation.Action,
		"degraded", result.Degraded,
		"knowledge_used", result.KnowledgeUsed,
	)
	return result, nil
}

// parseReply extracts the JSON object from the reply. A reply without
// a parseable object degrades to HOLD with the raw text preserved.
func (a *Analyzer) parseReply(req *AnalysisRequest, content string) *model.AnalysisResult {
	result := &model.AnalysisResult{
		Symbol:        req.Symbol,
		KnowledgeUsed: len(req.Knowledge),
	}
	for _, f := range req.Frameworks {
		result.AppliedFrameworks = append(result.AppliedFrameworks, f.Name)
	}

	raw, extractErr := textutil.ExtractJSONObject(content)
	if extractErr == nil {
		var parsed llmAnalysis
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Summary != "" && parsed.Recommendation != nil {
			result.Summary = parsed.Summary
			result.Recommendation = *parsed.Recommendation
			result.KeyFactors = parsed.KeyFactors
			result.Risks = parsed.Risks
			result.PriceTargets = parsed.PriceTargets
			if !validAction(result.Recommendation.Action) {
				result.Recommendation.Action = model.ActionHold
			}
			return result
		}
	}

	logger.Warnw("analysis reply not parseable, degrading", "symbol", req.Symbol)
	summary := strings.TrimSpace(textutil.TruncateAtSentence(content, a.config.MaxSummaryLen))
	if summary == "" {
		summary = fmt.Sprintf("Analysis for %s could not be structured from the generative reply.", req.Symbol)
	}
	result.Summary = summary
	result.Recommendation = model.Recommendation{
		Action:     model.ActionHold,
		Confidence: 0,
		Reasoning:  "Reply could not be parsed into a structured verdict.",
	}
	result.Degraded = true
	result.RawResponse = content
	return result
}

func validAction(action model.RecommendationAction) bool {
	switch action {
	case model.ActionBuy, model.ActionSell, model.ActionHold:
		return true
	}
	return false
}

// buildPrompt lays out instrument, figures, reference excerpts and
// applicable frameworks as labelled sections.
func (a *Analyzer) buildPrompt(req *AnalysisRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Instrument: %s (%s)\n", req.Symbol, req.InstrumentType)
	if req.Sector != "" {
		fmt.Fprintf(&b, "Sector: %s\n", req.Sector)
	}
	if req.Region != "" {
		fmt.Fprintf(&b, "Region: %s\n", req.Region)
	}
	fmt.Fprintf(&b, "Requested analysis: %s\n", req.AnalysisType)

	if m := req.Market; m != nil {
		b.WriteString("\nMarket snapshot:\n")
		fmt.Fprintf(&b, "- Price: %.2f (change %+.2f, %+.2f%%)\n", m.Price, m.Change, m.ChangePercent)
		fmt.Fprintf(&b, "- Range: %.2f to %.2f, open %.2f, previous close %.2f\n", m.Low, m.High, m.Open, m.PreviousClose)
		fmt.Fprintf(&b, "- Volume: %d\n", m.Volume)
		if m.MarketCap > 0 {
			fmt.Fprintf(&b, "- Market cap: %.0f\n", m.MarketCap)
		}
	}

	if f := req.Fundamentals; f != nil {
		b.WriteString("\nFundamentals:\n")
		writeRatio(&b, "P/E", f.PERatio)
		writeRatio(&b, "P/B", f.PBRatio)
		writeRatio(&b, "ROE", f.ROE)
		writeRatio(&b, "Debt/Equity", f.DebtToEquity)
		writeRatio(&b, "Profit margin", f.ProfitMargin)
		writeRatio(&b, "Revenue growth", f.RevenueGrowth)
		writeRatio(&b, "EPS", f.EPS)
		writeRatio(&b, "Dividend yield", f.DividendYield)
	}

	if len(req.Knowledge) > 0 {
		b.WriteString("\nReference material (with relevance scores):\n")
		for i, k := range req.Knowledge {
			fmt.Fprintf(&b, "[%d] (%.2f) %s\n", i+1, k.Score, k.Chunk.Content)
		}
	}

	if len(req.Frameworks) > 0 {
		b.WriteString("\nApplicable valuation frameworks:\n")
		for _, f := range req.Frameworks {
			fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Description)
			for _, formula := range f.Formulas {
				fmt.Fprintf(&b, "  %s: %s\n", formula.Name, formula.Expression)
			}
		}
	}

	return b.String()
}

func writeRatio(b *strings.Builder, label string, value float64) {
	if value != 0 {
		fmt.Fprintf(b, "- %s: %.2f\n", label, value)
	}
}
