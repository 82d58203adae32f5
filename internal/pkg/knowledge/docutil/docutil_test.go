package docutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7 rest of file")))
	assert.False(t, IsPDF([]byte("plain text")))
	assert.False(t, IsPDF(nil))
}

func TestExtractText_PlainText(t *testing.T) {
	text, pages, err := ExtractText([]byte("Net present value discounts future cash flows."))
	require.NoError(t, err)
	assert.Equal(t, "Net present value discounts future cash flows.", text)
	assert.Equal(t, 1, pages)
}

func TestExtractText_InvalidUTF8(t *testing.T) {
	_, _, err := ExtractText([]byte{0xff, 0xfe, 0x00, 0x01})
	assert.Error(t, err)
}

func TestExtractText_MalformedPDF(t *testing.T) {
	// Carries the magic bytes but no valid structure; extraction must
	// return an error, never propagate a panic.
	_, _, err := ExtractText([]byte("%PDF-1.4 garbage"))
	assert.Error(t, err)
}

func TestEstimatePages(t *testing.T) {
	assert.Equal(t, 1, estimatePages(""))
	assert.Equal(t, 1, estimatePages("short"))
	assert.Equal(t, 1, estimatePages(strings.Repeat("a", 3000)))
	assert.Equal(t, 2, estimatePages(strings.Repeat("a", 3001)))
	assert.Equal(t, 3, estimatePages(strings.Repeat("a", 7500)))
}
