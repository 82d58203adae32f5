package biz

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kart-io/logger"

	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/internal/pkg/knowledge/textutil"
	"github.com/finsight-io/finsight/pkg/llm"
	"github.com/finsight-io/finsight/pkg/utils/json"
)

// ExtractorConfig tunes the concept extractor.
type ExtractorConfig struct {
	// MinGenerativeLen is the minimum text length for the generative
	// pass. Shorter texts use pattern extraction only.
	MinGenerativeLen int
}

// DefaultExtractorConfig returns the default extractor configuration.
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{
		MinGenerativeLen: 300,
	}
}

// ConceptExtractor identifies financial concepts in text. A pattern
// pass always runs; a generative pass runs when a chat provider is
// configured and the text is long enough. Extraction never fails: on
// any error the result degrades to whatever was found.
type ConceptExtractor struct {
	chatProvider llm.ChatProvider
	config       *ExtractorConfig
}

// NewConceptExtractor creates a concept extractor. chatProvider may be
// nil to disable the generative pass.
func NewConceptExtractor(chatProvider llm.ChatProvider, config *ExtractorConfig) *ConceptExtractor {
	if config == nil {
		config = DefaultExtractorConfig()
	}
	if config.MinGenerativeLen <= 0 {
		config.MinGenerativeLen = DefaultExtractorConfig().MinGenerativeLen
	}
	return &ConceptExtractor{
		chatProvider: chatProvider,
		config:       config,
	}
}

// conceptPattern maps one canonical concept to its recognizer.
type conceptPattern struct {
	name     string
	category model.ConceptCategory
	regex    *regexp.Regexp
}

var conceptPatterns = []conceptPattern{
	{"Discounted Cash Flow", model.CategoryValuation, regexp.MustCompile(`(?i)\b(dcf|discounted cash flow)\b`)},
	{"Intrinsic Value", model.CategoryValuation, regexp.MustCompile(`(?i)\bintrinsic value\b`)},
	{"Terminal Value", model.CategoryValuation, regexp.MustCompile(`(?i)\bterminal value\b`)},
	{"WACC", model.CategoryValuation, regexp.MustCompile(`(?i)\b(wacc|weighted average cost of capital)\b`)},
	{"Net Present Value", model.CategoryValuation, regexp.MustCompile(`(?i)\b(npv|net present value)\b`)},
	{"Dividend Discount Model", model.CategoryValuation, regexp.MustCompile(`(?i)\b(ddm|dividend discount model|gordon growth)\b`)},

	{"P/E Ratio", model.CategoryRatioAnalysis, regexp.MustCompile(`(?i)\b(p/e|price.to.earnings)\b`)},
	{"P/B Ratio", model.CategoryRatioAnalysis, regexp.MustCompile(`(?i)\b(p/b|price.to.book)\b`)},
	{"Return on Equity", model.CategoryRatioAnalysis, regexp.MustCompile(`(?i)\b(roe|return on equity)\b`)},
	{"Current Ratio", model.CategoryRatioAnalysis, regexp.MustCompile(`(?i)\bcurrent ratio\b`)},
	{"Debt-to-Equity", model.CategoryRatioAnalysis, regexp.MustCompile(`(?i)\bdebt.to.equity\b`)},
	{"EBITDA", model.CategoryRatioAnalysis, regexp.MustCompile(`(?i)\bebitda\b`)},

	{"Value at Risk", model.CategoryRiskMetrics, regexp.MustCompile(`(?i)\b(var|value at risk)\b`)},
	{"Beta", model.CategoryRiskMetrics, regexp.MustCompile(`(?i)\bbeta coefficient\b|\bbeta\b`)},
	{"Volatility", model.CategoryRiskMetrics, regexp.MustCompile(`(?i)\b(volatility|standard deviation of returns)\b`)},
	{"Sharpe Ratio", model.CategoryRiskMetrics, regexp.MustCompile(`(?i)\bsharpe ratio\b`)},
	{"Maximum Drawdown", model.CategoryRiskMetrics, regexp.MustCompile(`(?i)\b(maximum drawdown|max drawdown)\b`)},

	{"Diversification", model.CategoryPortfolioTheory, regexp.MustCompile(`(?i)\bdiversification\b`)},
	{"Efficient Frontier", model.CategoryPortfolioTheory, regexp.MustCompile(`(?i)\befficient frontier\b`)},
	{"CAPM", model.CategoryPortfolioTheory, regexp.MustCompile(`(?i)\b(capm|capital asset pricing model)\b`)},
	{"Asset Allocation", model.CategoryPortfolioTheory, regexp.MustCompile(`(?i)\basset allocation\b`)},

	{"Yield to Maturity", model.CategoryFixedIncome, regexp.MustCompile(`(?i)\b(ytm|yield to maturity)\b`)},
	{"Duration", model.CategoryFixedIncome, regexp.MustCompile(`(?i)\b(macaulay duration|modified duration|bond duration)\b`)},
	{"Convexity", model.CategoryFixedIncome, regexp.MustCompile(`(?i)\bconvexity\b`)},
	{"Credit Spread", model.CategoryFixedIncome, regexp.MustCompile(`(?i)\bcredit spread\b`)},

	{"Option Pricing", model.CategoryDerivatives, regexp.MustCompile(`(?i)\b(black.scholes|option pricing|option premium)\b`)},
	{"Futures Contract", model.CategoryDerivatives, regexp.MustCompile(`(?i)\bfutures contract\b`)},
	{"Hedging", model.CategoryDerivatives, regexp.MustCompile(`(?i)\bhedg(e|ing)\b`)},
	{"Interest Rate Swap", model.CategoryDerivatives, regexp.MustCompile(`(?i)\binterest rate swap\b`)},

	{"GDP", model.CategoryEconomics, regexp.MustCompile(`(?i)\b(gdp|gross domestic product)\b`)},
	{"Inflation", model.CategoryEconomics, regexp.MustCompile(`(?i)\binflation\b`)},
	{"Monetary Policy", model.CategoryEconomics, regexp.MustCompile(`(?i)\bmonetary policy\b`)},

	{"Regression Analysis", model.CategoryStatistics, regexp.MustCompile(`(?i)\bregression\b`)},
	{"Correlation", model.CategoryStatistics, regexp.MustCompile(`(?i)\bcorrelation\b`)},
	{"Hypothesis Testing", model.CategoryStatistics, regexp.MustCompile(`(?i)\bhypothesis test(ing)?\b`)},

	{"Earnings Per Share", model.CategoryEquityAnalysis, regexp.MustCompile(`(?i)\b(eps|earnings per share)\b`)},
	{"Dividend Yield", model.CategoryEquityAnalysis, regexp.MustCompile(`(?i)\bdividend yield\b`)},
	{"Book Value", model.CategoryEquityAnalysis, regexp.MustCompile(`(?i)\bbook value\b`)},

	{"Market Liquidity", model.CategoryMarketStructure, regexp.MustCompile(`(?i)\b(market liquidity|liquidity risk)\b`)},
	{"Bid-Ask Spread", model.CategoryMarketStructure, regexp.MustCompile(`(?i)\bbid.ask spread\b`)},
	{"Market Maker", model.CategoryMarketStructure, regexp.MustCompile(`(?i)\bmarket maker\b`)},
}

// glossary provides definitions for well-known concepts, keyed by
// normalized name.
var glossary = map[string]string{
	"discountedcashflow":   "Valuation method estimating intrinsic value as the present value of expected future cash flows.",
	"intrinsicvalue":       "The fundamental value of an asset based on its expected cash flows rather than its market price.",
	"terminalvalue":        "The value of a business beyond the explicit forecast period in a DCF model.",
	"wacc":                 "Weighted average cost of capital, the blended required return across a firm's capital sources.",
	"netpresentvalue":      "The sum of discounted future cash flows minus the initial investment.",
	"dividenddiscountmodel": "Valuation model pricing equity as the present value of expected future dividends.",
	"peratio":              "Price-to-earnings ratio, market price per share divided by earnings per share.",
	"pbratio":              "Price-to-book ratio, market price per share divided by book value per share.",
	"returnonequity":       "Net income divided by shareholders' equity, measuring profitability of equity capital.",
	"currentratio":         "Current assets divided by current liabilities, measuring short-term liquidity.",
	"debttoequity":         "Total debt divided by shareholders' equity, measuring financial leverage.",
	"ebitda":               "Earnings before interest, taxes, depreciation and amortization.",
	"valueatrisk":          "An estimate of the maximum loss over a horizon at a given confidence level.",
	"beta":                 "Sensitivity of an asset's returns to market returns.",
	"volatility":           "Dispersion of returns, commonly measured as standard deviation.",
	"sharperatio":          "Excess return per unit of total risk.",
	"maximumdrawdown":      "Largest peak-to-trough decline of a portfolio value.",
	"diversification":      "Reducing portfolio risk by combining imperfectly correlated assets.",
	"efficientfrontier":    "The set of portfolios offering maximum expected return for each level of risk.",
	"capm":                 "Model relating expected return to systematic risk via beta.",
	"assetallocation":      "Distribution of portfolio capital across asset classes.",
	"yieldtomaturity":      "The discount rate equating a bond's price to the present value of its cash flows.",
	"duration":             "Price sensitivity of a bond to interest rate changes.",
	"convexity":            "Second-order price sensitivity of a bond to yield changes.",
	"creditspread":         "Yield difference between a credit-risky bond and a risk-free benchmark.",
	"optionpricing":        "Determining the fair value of option contracts, e.g. via Black-Scholes.",
	"futurescontract":      "Standardized agreement to buy or sell an asset at a future date and set price.",
	"hedging":              "Taking offsetting positions to reduce exposure to price risk.",
	"interestrateswap":     "Agreement to exchange fixed for floating interest payments.",
	"gdp":                  "Gross domestic product, the total value of goods and services produced.",
	"inflation":            "A sustained increase in the general price level.",
	"monetarypolicy":       "Central bank management of money supply and interest rates.",
	"regressionanalysis":   "Statistical technique estimating relationships between variables.",
	"correlation":          "Degree to which two variables move together.",
	"hypothesistesting":    "Statistical procedure for accepting or rejecting claims about data.",
	"earningspershare":     "Net income attributable to each outstanding common share.",
	"dividendyield":        "Annual dividends per share divided by price per share.",
	"bookvalue":            "Net asset value of a company per its balance sheet.",
	"marketliquidity":      "Ease of trading an asset without moving its price.",
	"bidaskspread":         "Difference between best quoted buy and sell prices.",
	"marketmaker":          "Participant quoting both sides of a market to provide liquidity.",
}

// categoryApplications maps categories to their typical applications.
var categoryApplications = map[model.ConceptCategory][]string{
	model.CategoryValuation:       {"equity valuation", "investment appraisal"},
	model.CategoryRatioAnalysis:   {"financial statement analysis", "peer comparison"},
	model.CategoryRiskMetrics:     {"risk management", "position sizing"},
	model.CategoryPortfolioTheory: {"portfolio construction", "asset allocation"},
	model.CategoryFixedIncome:     {"bond pricing", "interest rate risk management"},
	model.CategoryDerivatives:     {"hedging", "structured products"},
	model.CategoryEconomics:       {"macro analysis", "sector rotation"},
	model.CategoryStatistics:      {"quantitative research", "backtesting"},
	model.CategoryEquityAnalysis:  {"stock selection", "fundamental analysis"},
	model.CategoryMarketStructure: {"trade execution", "liquidity analysis"},
}

var formulaRegex = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_/\s]{0,30}=\s*[^=\n.]{3,80}`)

// ExtractConcepts runs the pattern pass and, when possible, the
// generative pass, merging both with deduplication by normalized name.
func (e *ConceptExtractor) ExtractConcepts(ctx context.Context, text string, suggestedTopics []string) []model.FinancialConcept {
	patternConcepts := e.extractByPattern(text)

	if e.chatProvider == nil || len(text) < e.config.MinGenerativeLen {
		return patternConcepts
	}

	generative, err := e.extractGenerative(ctx, text, suggestedTopics)
	if err != nil {
		logger.Warnw("generative concept extraction failed, keeping pattern results", "error", err)
		return patternConcepts
	}

	return MergeConcepts(patternConcepts, generative)
}

// extractByPattern matches the fixed recognizer table against the text.
func (e *ConceptExtractor) extractByPattern(text string) []model.FinancialConcept {
	var matched []conceptPattern
	for _, p := range conceptPatterns {
		if p.regex.MatchString(text) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	formulas := extractFormulas(text)

	concepts := make([]model.FinancialConcept, 0, len(matched))
	for _, p := range matched {
		var related []string
		for _, other := range matched {
			if other.name != p.name {
				related = append(related, other.name)
			}
		}

		concepts = append(concepts, model.FinancialConcept{
			Name:            p.name,
			Category:        p.category,
			Definition:      lookupDefinition(p.name, p.category),
			RelatedConcepts: related,
			Formulas:        formulas,
			Applications:    categoryApplications[p.category],
		})
	}
	return concepts
}

// lookupDefinition returns the glossary definition or a
// category-generic fallback.
func lookupDefinition(name string, category model.ConceptCategory) string {
	if def, ok := glossary[textutil.NormalizeConceptName(name)]; ok {
		return def
	}
	return fmt.Sprintf("Financial concept in the %s domain.", strings.ReplaceAll(string(category), "_", " "))
}

// extractFormulas pulls formula-like substrings from the text.
func extractFormulas(text string) []string {
	matches := formulaRegex.FindAllString(text, 5)
	formulas := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if len(m) >= 5 {
			formulas = append(formulas, m)
		}
	}
	return formulas
}

// generativeConcept is the expected shape of one item in the model
// reply.
type generativeConcept struct {
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Definition      string   `json:"definition"`
	RelatedConcepts []string `json:"related_concepts"`
	Formulas        []string `json:"formulas"`
	Applications    []string `json:"applications"`
}

const extractionSystemPrompt = `You are a financial domain expert. Extract financial concepts from the provided text. Reply with a JSON array only, no prose. Each item: {"name": string, "category": one of [valuation, ratio_analysis, risk_metrics, portfolio_theory, fixed_income, derivatives, economics, statistics, equity_analysis, market_structure], "definition": string, "related_concepts": [string], "formulas": [string], "applications": [string]}.`

// extractGenerative asks the chat provider for structured concepts.
// Invalid items are dropped silently.
func (e *ConceptExtractor) extractGenerative(ctx context.Context, text string, suggestedTopics []string) ([]model.FinancialConcept, error) {
	prompt := "Text:\n" + text
	if len(suggestedTopics) > 0 {
		prompt += "\n\nLikely topics: " + strings.Join(suggestedTopics, ", ")
	}

	resp, err := e.chatProvider.Generate(ctx, prompt, extractionSystemPrompt)
	if err != nil {
		return nil, err
	}

	arrayRegex := regexp.MustCompile(`\[[\s\S]*\]`)
	raw := arrayRegex.FindString(resp.Content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var items []generativeConcept
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to parse concept list: %w", err)
	}

	concepts := make([]model.FinancialConcept, 0, len(items))
	for _, item := range items {
		category := model.ConceptCategory(strings.ToLower(strings.TrimSpace(item.Category)))
		if item.Name == "" || item.Definition == "" || !model.IsKnownConceptCategory(category) {
			continue
		}
		concepts = append(concepts, model.FinancialConcept{
			Name:            item.Name,
			Category:        category,
			Definition:      item.Definition,
			RelatedConcepts: item.RelatedConcepts,
			Formulas:        item.Formulas,
			Applications:    item.Applications,
		})
	}
	return concepts, nil
}

// MergeConcepts merges two concept lists keyed by normalized name.
// Later items refine earlier ones: a non-empty later definition wins,
// list fields are unioned, and earlier formulas survive when the later
// side has none. Merging a list with itself is a no-op.
func MergeConcepts(base, overlay []model.FinancialConcept) []model.FinancialConcept {
	merged := make(map[string]*model.FinancialConcept)
	var order []string

	absorb := func(c model.FinancialConcept) {
		key := textutil.NormalizeConceptName(c.Name)
		if key == "" {
			return
		}
		existing, ok := merged[key]
		if !ok {
			clone := c
			merged[key] = &clone
			order = append(order, key)
			return
		}
		if c.Definition != "" {
			existing.Definition = c.Definition
		}
		existing.RelatedConcepts = unionStrings(existing.RelatedConcepts, c.RelatedConcepts)
		if len(c.Formulas) > 0 {
			existing.Formulas = unionStrings(existing.Formulas, c.Formulas)
		}
		existing.Applications = unionStrings(existing.Applications, c.Applications)
	}

	for _, c := range base {
		absorb(c)
	}
	for _, c := range overlay {
		absorb(c)
	}

	result := make([]model.FinancialConcept, 0, len(order))
	for _, key := range order {
		result = append(result, *merged[key])
	}
	return result
}

// unionStrings merges two string slices preserving order and dropping
// duplicates.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
