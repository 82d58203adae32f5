package model

// InstrumentType classifies a tradable instrument.
type InstrumentType string

const (
	InstrumentStock      InstrumentType = "STOCK"
	InstrumentBond       InstrumentType = "BOND"
	InstrumentETF        InstrumentType = "ETF"
	InstrumentMutualFund InstrumentType = "MUTUAL_FUND"
)

// AnalysisType selects which analysis discipline a query targets.
type AnalysisType string

const (
	FundamentalAnalysis AnalysisType = "FUNDAMENTAL_ANALYSIS"
	TechnicalAnalysis   AnalysisType = "TECHNICAL_ANALYSIS"
	RiskAssessment      AnalysisType = "RISK_ASSESSMENT"
	PortfolioReview     AnalysisType = "PORTFOLIO_REVIEW"
)

// RecommendationAction is the analysis verdict.
type RecommendationAction string

const (
	ActionBuy  RecommendationAction = "BUY"
	ActionSell RecommendationAction = "SELL"
	ActionHold RecommendationAction = "HOLD"
)

// KnowledgeResult is one ranked retrieval match. Results are ephemeral
// and never persisted.
type KnowledgeResult struct {
	Chunk       DocumentChunk `json:"chunk"`
	Score       float64       `json:"score"`
	Explanation string        `json:"explanation"`
	Concepts    []string      `json:"concepts,omitempty"`
	Formulas    []string      `json:"formulas,omitempty"`
}

// FormulaVariable describes one symbol in a formula.
type FormulaVariable struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Formula is a named valuation expression.
type Formula struct {
	Name       string            `json:"name"`
	Expression string            `json:"expression"`
	Variables  []FormulaVariable `json:"variables,omitempty"`
}

// ValuationFramework is one valuation methodology applicable to an
// instrument type.
type ValuationFramework struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Applicability []string  `json:"applicability"`
	KeyMetrics    []string  `json:"key_metrics"`
	Formulas      []Formula `json:"formulas"`
	Limitations   []string  `json:"limitations"`
	Source        string    `json:"source"`
}

// MarketSnapshot is a point-in-time quote, passed by value into
// analysis calls.
type MarketSnapshot struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previous_close"`
	MarketCap     float64 `json:"market_cap,omitempty"`
}

// FundamentalData carries the fundamental ratios used in analysis.
type FundamentalData struct {
	PERatio       float64 `json:"pe_ratio,omitempty"`
	PBRatio       float64 `json:"pb_ratio,omitempty"`
	ROE           float64 `json:"roe,omitempty"`
	DebtToEquity  float64 `json:"debt_to_equity,omitempty"`
	ProfitMargin  float64 `json:"profit_margin,omitempty"`
	RevenueGrowth float64 `json:"revenue_growth,omitempty"`
	EPS           float64 `json:"eps,omitempty"`
	DividendYield float64 `json:"dividend_yield,omitempty"`
}

// Recommendation is the structured verdict of an analysis.
type Recommendation struct {
	Action     RecommendationAction `json:"action"`
	Confidence float64              `json:"confidence"`
	Reasoning  string               `json:"reasoning,omitempty"`
}

// PriceTargets carries model price scenarios.
type PriceTargets struct {
	Low  float64 `json:"low,omitempty"`
	Base float64 `json:"base,omitempty"`
	High float64 `json:"high,omitempty"`
}

// AnalysisResult is the parsed reply of the generative backend. When
// the reply cannot be parsed, Degraded is set and RawResponse keeps the
// original text.
type AnalysisResult struct {
	Symbol            string         `json:"symbol"`
	Summary           string         `json:"summary"`
	Recommendation    Recommendation `json:"recommendation"`
	KeyFactors        []string       `json:"key_factors,omitempty"`
	Risks             []string       `json:"risks,omitempty"`
	PriceTargets      *PriceTargets  `json:"price_targets,omitempty"`
	AppliedFrameworks []string       `json:"applied_frameworks,omitempty"`
	KnowledgeUsed     int            `json:"knowledge_used"`
	Degraded          bool           `json:"degraded,omitempty"`
	RawResponse       string         `json:"raw_response,omitempty"`
}
