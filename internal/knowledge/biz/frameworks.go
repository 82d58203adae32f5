package biz

import (
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/pkg/utils/errors"
)

// FrameworksForInstrument returns the valuation frameworks applicable
// to an instrument type. Every supported type maps to at least one
// framework.
func FrameworksForInstrument(instrumentType model.InstrumentType) ([]*model.ValuationFramework, error) {
	frameworks, ok := frameworkCatalogue[instrumentType]
	if !ok {
		return nil, errors.ErrKnowledgeInvalidRequest.WithMessagef("unsupported instrument type: %s", instrumentType)
	}
	out := make([]*model.ValuationFramework, len(frameworks))
	for i := range frameworks {
		f := frameworks[i]
		out[i] = &f
	}
	return out, nil
}

// ScopeFrameworks annotates applicability with the caller's sector and
// region context. The catalogue itself is sector-agnostic; the
// annotations carry the request context through to the analysis prompt.
func ScopeFrameworks(frameworks []*model.ValuationFramework, sector, region string) []*model.ValuationFramework {
	if sector == "" && region == "" {
		return frameworks
	}
	for _, f := range frameworks {
		if sector != "" {
			f.Applicability = append(f.Applicability, "Sector context: "+sector)
		}
		if region != "" {
			f.Applicability = append(f.Applicability, "Region context: "+region)
		}
	}
	return frameworks
}

// SupportedInstrumentTypes lists instrument types with framework
// coverage.
func SupportedInstrumentTypes() []model.InstrumentType {
	return []model.InstrumentType{
		model.InstrumentStock,
		model.InstrumentBond,
		model.InstrumentETF,
		model.InstrumentMutualFund,
	}
}

var frameworkCatalogue = map[model.InstrumentType][]model.ValuationFramework{
	model.InstrumentStock: {
		{
			Name:          "Discounted Cash Flow",
			Description:   "Values equity as the present value of projected free cash flows plus a discounted terminal value.",
			Applicability: []string{"Companies with forecastable cash flows and a stable capital structure."},
			KeyMetrics:    []string{"Free cash flow", "WACC", "Terminal growth rate"},
			Formulas: []model.Formula{
				{
					Name:       "Enterprise value",
					Expression: "EV = sum(FCF_t / (1 + WACC)^t) + TV / (1 + WACC)^n",
					Variables: []model.FormulaVariable{
						{Symbol: "FCF_t", Name: "Free cash flow", Description: "Projected free cash flow in year t"},
						{Symbol: "WACC", Name: "Weighted average cost of capital", Description: "Blended required return on debt and equity"},
						{Symbol: "TV", Name: "Terminal value", Description: "Value of cash flows beyond the forecast horizon"},
						{Symbol: "n", Name: "Forecast horizon", Description: "Number of explicitly projected years"},
					},
				},
				{
					Name:       "Terminal value",
					Expression: "TV = FCF_n * (1 + g) / (WACC - g)",
					Variables: []model.FormulaVariable{
						{Symbol: "FCF_n", Name: "Final-year free cash flow", Description: "Free cash flow in the last forecast year"},
						{Symbol: "g", Name: "Terminal growth rate", Description: "Perpetual growth assumption, below WACC"},
					},
				},
			},
			Limitations: []string{
				"Highly sensitive to terminal growth and discount rate assumptions",
				"Unreliable for firms with negative or erratic cash flows",
			},
			Source: "CFA_INSTITUTE",
		},
		{
			Name:          "Dividend Discount Model",
			Description:   "Values a share as the present value of expected future dividends.",
			Applicability: []string{"Mature dividend-paying companies with a stable payout policy."},
			KeyMetrics:    []string{"Dividend per share", "Required return", "Dividend growth rate"},
			Formulas: []model.Formula{
				{
					Name:       "Gordon growth",
					Expression: "P0 = D1 / (r - g)",
					Variables: []model.FormulaVariable{
						{Symbol: "P0", Name: "Intrinsic price", Description: "Fair value of one share today"},
						{Symbol: "D1", Name: "Next dividend", Description: "Expected dividend per share one year out"},
						{Symbol: "r", Name: "Required return", Description: "Cost of equity"},
						{Symbol: "g", Name: "Growth rate", Description: "Constant dividend growth rate, below r"},
					},
				},
			},
			Limitations: []string{
				"Inapplicable to non-dividend payers",
				"Breaks down when growth approaches the required return",
			},
			Source: "CFA_INSTITUTE",
		},
		{
			Name:          "Relative Valuation",
			Description:   "Benchmarks price multiples against comparable companies and sector medians.",
			Applicability: []string{"Companies with a liquid peer group reporting comparable earnings and book figures."},
			KeyMetrics:    []string{"P/E", "P/B", "EV/EBITDA"},
			Formulas: []model.Formula{
				{
					Name:       "Price to earnings",
					Expression: "P/E = Price per share / EPS",
					Variables: []model.FormulaVariable{
						{Symbol: "EPS", Name: "Earnings per share", Description: "Trailing or forward net income per share"},
					},
				},
				{
					Name:       "Enterprise multiple",
					Expression: "EV/EBITDA = Enterprise value / EBITDA",
					Variables: []model.FormulaVariable{
						{Symbol: "EBITDA", Name: "EBITDA", Description: "Earnings before interest, taxes, depreciation and amortization"},
					},
				},
			},
			Limitations: []string{
				"Assumes the peer group itself is fairly priced",
				"Distorted by accounting differences across comparables",
			},
			Source: "CFA_INSTITUTE",
		},
	},
	model.InstrumentBond: {
		{
			Name:          "Yield to Maturity",
			Description:   "Prices a bond as the discounted value of its coupons and principal at a single internal rate of return.",
			Applicability: []string{"Fixed-coupon bonds held to maturity without embedded options."},
			KeyMetrics:    []string{"Coupon rate", "Yield to maturity", "Time to maturity"},
			Formulas: []model.Formula{
				{
					Name:       "Bond price",
					Expression: "P = sum(C / (1 + y)^t) + F / (1 + y)^n",
					Variables: []model.FormulaVariable{
						{Symbol: "C", Name: "Coupon payment", Description: "Periodic coupon cash flow"},
						{Symbol: "y", Name: "Yield to maturity", Description: "Per-period discount rate equating price to cash flows"},
						{Symbol: "F", Name: "Face value", Description: "Principal repaid at maturity"},
						{Symbol: "n", Name: "Periods", Description: "Number of coupon periods to maturity"},
					},
				},
			},
			Limitations: []string{
				"Assumes coupons are reinvested at the same yield",
				"Ignores call and put features",
			},
			Source: "CFA_INSTITUTE",
		},
		{
			Name:          "Duration and Convexity",
			Description:   "Estimates price sensitivity to yield changes with a first and second order approximation.",
			Applicability: []string{"Interest rate risk assessment for bonds and bond portfolios."},
			KeyMetrics:    []string{"Modified duration", "Convexity", "Yield change"},
			Formulas: []model.Formula{
				{
					Name:       "Price change approximation",
					Expression: "dP/P = -D_mod * dy + 0.5 * Cx * dy^2",
					Variables: []model.FormulaVariable{
						{Symbol: "D_mod", Name: "Modified duration", Description: "Percentage price change per unit yield change"},
						{Symbol: "Cx", Name: "Convexity", Description: "Second-order curvature adjustment"},
						{Symbol: "dy", Name: "Yield change", Description: "Change in yield in decimal form"},
					},
				},
			},
			Limitations: []string{
				"Linear approximation degrades for large yield moves",
				"Assumes parallel shifts of the yield curve",
			},
			Source: "CFA_INSTITUTE",
		},
	},
	model.InstrumentETF: {
		{
			Name:          "Net Asset Value",
			Description:   "Values a fund share as the per-share market value of the underlying holdings, and tracks premium or discount to market price.",
			Applicability: []string{"Exchange traded funds with transparent daily holdings."},
			KeyMetrics:    []string{"NAV per share", "Premium/discount", "Tracking error"},
			Formulas: []model.Formula{
				{
					Name:       "NAV per share",
					Expression: "NAV = (Assets - Liabilities) / Shares outstanding",
					Variables: []model.FormulaVariable{
						{Symbol: "Assets", Name: "Fund assets", Description: "Market value of all holdings and cash"},
						{Symbol: "Liabilities", Name: "Fund liabilities", Description: "Accrued expenses and payables"},
					},
				},
				{
					Name:       "Premium or discount",
					Expression: "Premium = (Price - NAV) / NAV",
					Variables: []model.FormulaVariable{
						{Symbol: "Price", Name: "Market price", Description: "Exchange-quoted share price"},
					},
				},
			},
			Limitations: []string{
				"Stale underlying prices distort NAV for illiquid holdings",
			},
			Source: "CFA_INSTITUTE",
		},
		{
			Name:          "Expense-Adjusted Return",
			Description:   "Compares fund performance net of the expense ratio against the benchmark it tracks.",
			Applicability: []string{"Cost comparison between funds tracking the same index."},
			KeyMetrics:    []string{"Expense ratio", "Benchmark return", "Tracking difference"},
			Formulas: []model.Formula{
				{
					Name:       "Net return",
					Expression: "R_net = R_gross - Expense ratio",
					Variables: []model.FormulaVariable{
						{Symbol: "R_gross", Name: "Gross return", Description: "Portfolio return before fees"},
						{Symbol: "Expense ratio", Name: "Expense ratio", Description: "Annual fund costs as a fraction of assets"},
					},
				},
			},
			Limitations: []string{
				"Ignores trading costs and bid-ask spreads borne by the holder",
			},
			Source: "CFA_INSTITUTE",
		},
	},
	model.InstrumentMutualFund: {
		{
			Name:          "Net Asset Value",
			Description:   "Values a fund share at the per-share market value of holdings, struck once daily at the close.",
			Applicability: []string{"Open-end mutual funds priced at end-of-day NAV."},
			KeyMetrics:    []string{"NAV per share", "Turnover ratio"},
			Formulas: []model.Formula{
				{
					Name:       "NAV per share",
					Expression: "NAV = (Assets - Liabilities) / Shares outstanding",
					Variables: []model.FormulaVariable{
						{Symbol: "Assets", Name: "Fund assets", Description: "Market value of all holdings and cash"},
						{Symbol: "Liabilities", Name: "Fund liabilities", Description: "Accrued expenses and payables"},
					},
				},
			},
			Limitations: []string{
				"Single daily pricing hides intraday value changes",
			},
			Source: "CFA_INSTITUTE",
		},
		{
			Name:          "Expense-Adjusted Return",
			Description:   "Evaluates manager performance net of fees and loads against a stated benchmark.",
			Applicability: []string{"Actively managed funds where fees materially affect outcomes."},
			KeyMetrics:    []string{"Expense ratio", "Alpha", "Sharpe ratio"},
			Formulas: []model.Formula{
				{
					Name:       "Net return",
					Expression: "R_net = R_gross - Expense ratio - Load amortization",
					Variables: []model.FormulaVariable{
						{Symbol: "R_gross", Name: "Gross return", Description: "Portfolio return before fees"},
						{Symbol: "Load amortization", Name: "Load amortization", Description: "Sales charges spread over the holding period"},
					},
				},
				{
					Name:       "Sharpe ratio",
					Expression: "Sharpe = (R_p - R_f) / sigma_p",
					Variables: []model.FormulaVariable{
						{Symbol: "R_p", Name: "Portfolio return", Description: "Annualized fund return"},
						{Symbol: "R_f", Name: "Risk-free rate", Description: "Return on a risk-free instrument"},
						{Symbol: "sigma_p", Name: "Return volatility", Description: "Standard deviation of fund returns"},
					},
				},
			},
			Limitations: []string{
				"Backward-looking; past alpha rarely persists",
			},
			Source: "CFA_INSTITUTE",
		},
	},
}
