// Package docutil extracts raw text from uploaded documents.
package docutil

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// pdfMagic is the PDF file signature.
var pdfMagic = []byte("%PDF")

// IsPDF reports whether data looks like a PDF file.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// ExtractText extracts plain text and a page count from document
// bytes. PDF input is parsed page by page; anything else is treated as
// UTF-8 plain text.
func ExtractText(data []byte) (string, int, error) {
	if IsPDF(data) {
		return extractPDF(data)
	}

	text := string(data)
	if !utf8.ValidString(text) {
		return "", 0, fmt.Errorf("document is neither PDF nor valid UTF-8 text")
	}
	return text, estimatePages(text), nil
}

// extractPDF pulls text from every readable page. The pdf library can
// panic on malformed files, so extraction runs under recover.
func extractPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf extraction panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse pdf: %w", err)
	}

	pages = reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text = sb.String()
	if strings.TrimSpace(text) == "" {
		return "", pages, fmt.Errorf("pdf contains no extractable text")
	}
	return text, pages, nil
}

// estimatePages approximates a page count for plain text input.
func estimatePages(text string) int {
	const charsPerPage = 3000
	n := utf8.RuneCountInString(text)
	pages := n / charsPerPage
	if n%charsPerPage > 0 || pages == 0 {
		pages++
	}
	return pages
}
