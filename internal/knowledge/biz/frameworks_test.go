package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-io/finsight/internal/model"
)

func TestFrameworksForInstrument_Stock(t *testing.T) {
	frameworks, err := FrameworksForInstrument(model.InstrumentStock)
	require.NoError(t, err)
	require.Len(t, frameworks, 3)

	names := make([]string, 0, len(frameworks))
	for _, f := range frameworks {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Discounted Cash Flow")
	assert.Contains(t, names, "Dividend Discount Model")
	assert.Contains(t, names, "Relative Valuation")
}

func TestFrameworksForInstrument_EveryTypeCovered(t *testing.T) {
	for _, instrumentType := range SupportedInstrumentTypes() {
		frameworks, err := FrameworksForInstrument(instrumentType)
		require.NoError(t, err, string(instrumentType))
		require.NotEmpty(t, frameworks, string(instrumentType))

		for _, f := range frameworks {
			assert.NotEmpty(t, f.Name)
			assert.NotEmpty(t, f.Description)
			assert.NotEmpty(t, f.Formulas, f.Name)
			for _, formula := range f.Formulas {
				assert.NotEmpty(t, formula.Expression, formula.Name)
			}
		}
	}
}

func TestFrameworksForInstrument_BondHasYieldMath(t *testing.T) {
	frameworks, err := FrameworksForInstrument(model.InstrumentBond)
	require.NoError(t, err)

	names := make([]string, 0, len(frameworks))
	for _, f := range frameworks {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Yield to Maturity")
	assert.Contains(t, names, "Duration and Convexity")
}

func TestFrameworksForInstrument_Unsupported(t *testing.T) {
	_, err := FrameworksForInstrument(model.InstrumentType("CRYPTO"))
	assert.Error(t, err)
}

func TestFrameworksForInstrument_ReturnsCopies(t *testing.T) {
	first, err := FrameworksForInstrument(model.InstrumentETF)
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := FrameworksForInstrument(model.InstrumentETF)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Name)
}

func TestScopeFrameworks(t *testing.T) {
	frameworks, err := FrameworksForInstrument(model.InstrumentStock)
	require.NoError(t, err)

	scoped := ScopeFrameworks(frameworks, "Technology", "US")
	assert.Contains(t, scoped[0].Applicability, "Sector context: Technology")
	assert.Contains(t, scoped[0].Applicability, "Region context: US")

	// The catalogue itself stays sector-agnostic.
	fresh, err := FrameworksForInstrument(model.InstrumentStock)
	require.NoError(t, err)
	for _, entry := range fresh[0].Applicability {
		assert.NotContains(t, entry, "Sector context")
	}
}

func TestScopeFrameworks_EmptyScopeIsNoOp(t *testing.T) {
	frameworks, err := FrameworksForInstrument(model.InstrumentBond)
	require.NoError(t, err)
	before := len(frameworks[0].Applicability)

	scoped := ScopeFrameworks(frameworks, "", "")
	assert.Len(t, scoped[0].Applicability, before)
}
