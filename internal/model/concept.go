package model

// ConceptCategory classifies a financial concept.
type ConceptCategory string

const (
	CategoryValuation       ConceptCategory = "valuation"
	CategoryRatioAnalysis   ConceptCategory = "ratio_analysis"
	CategoryRiskMetrics     ConceptCategory = "risk_metrics"
	CategoryPortfolioTheory ConceptCategory = "portfolio_theory"
	CategoryFixedIncome     ConceptCategory = "fixed_income"
	CategoryDerivatives     ConceptCategory = "derivatives"
	CategoryEconomics       ConceptCategory = "economics"
	CategoryStatistics      ConceptCategory = "statistics"
	CategoryEquityAnalysis  ConceptCategory = "equity_analysis"
	CategoryMarketStructure ConceptCategory = "market_structure"
)

// KnownConceptCategories lists every valid category.
var KnownConceptCategories = []ConceptCategory{
	CategoryValuation,
	CategoryRatioAnalysis,
	CategoryRiskMetrics,
	CategoryPortfolioTheory,
	CategoryFixedIncome,
	CategoryDerivatives,
	CategoryEconomics,
	CategoryStatistics,
	CategoryEquityAnalysis,
	CategoryMarketStructure,
}

// IsKnownConceptCategory reports whether c is a valid category.
func IsKnownConceptCategory(c ConceptCategory) bool {
	for _, k := range KnownConceptCategories {
		if c == k {
			return true
		}
	}
	return false
}

// FinancialConcept is a named, categorized financial term. Concepts are
// value objects: two concepts with the same normalized name are the
// same concept.
type FinancialConcept struct {
	Name            string          `json:"name"`
	Category        ConceptCategory `json:"category"`
	Definition      string          `json:"definition"`
	RelatedConcepts []string        `json:"related_concepts,omitempty"`
	Formulas        []string        `json:"formulas,omitempty"`
	Applications    []string        `json:"applications,omitempty"`
}
