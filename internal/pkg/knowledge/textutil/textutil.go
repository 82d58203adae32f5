// Package textutil provides text processing helpers for the knowledge
// pipeline.
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/finsight-io/finsight/pkg/utils/json"
)

// CosineSimilarity computes the cosine similarity of two vectors.
// The result is in [-1, 1]. Mismatched lengths indicate a wiring bug
// between provider and index, so the function panics instead of
// degrading.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("cosine similarity: vector length mismatch %d != %d", len(a), len(b)))
	}
	if len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity maps a cosine similarity to [0, 1].
func NormalizeCosineSimilarity(similarity float64) float64 {
	return (similarity + 1) / 2
}

// HashString computes the MD5 hash of a string as hex.
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// EstimateTokens estimates the token count of a text. The heuristic of
// four characters per token tracks common tokenizers closely enough
// for budgeting.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	tokens := n / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// TruncateString truncates a string to maxLen Unicode characters.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

var sentenceEndRegex = regexp.MustCompile(`[.!?。！？](\s|$)`)

// SplitSentences splits text into sentences. Terminators stay attached
// to their sentence.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	locs := sentenceEndRegex.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		s := strings.TrimSpace(text[start:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// TruncateAtSentence truncates a string to at most maxLen Unicode
// characters, preferring to cut at the last sentence boundary when
// that boundary falls within the final fifth of the window. Otherwise
// a hard cut is used.
func TruncateAtSentence(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	window := string(runes[:maxLen])
	locs := sentenceEndRegex.FindAllStringIndex(window, -1)
	if len(locs) > 0 {
		last := locs[len(locs)-1]
		boundary := utf8.RuneCountInString(window[:last[1]])
		if boundary >= maxLen*4/5 {
			return strings.TrimSpace(window[:last[1]])
		}
	}
	return window
}

// ExtractJSONObject extracts the first balanced JSON object from text.
// Model replies often wrap JSON in prose or code fences.
func ExtractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object")
}

// ParseJSONArray extracts and parses a JSON string array from text.
func ParseJSONArray(s string) ([]string, error) {
	re := regexp.MustCompile(`\[[\s\S]*\]`)
	match := re.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("no JSON array found")
	}

	var result []string
	if err := json.Unmarshal([]byte(match), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SplitByLines splits text into lines, dropping list markers, quotes
// and lines of minLen characters or fewer.
func SplitByLines(s string, minLen int) []string {
	if minLen <= 0 {
		minLen = 5
	}

	var result []string
	lines := strings.Split(s, "\n")
	listMarkerRegex := regexp.MustCompile(`^[\d\.\-\*\)]+\s*`)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = listMarkerRegex.ReplaceAllString(line, "")
		line = strings.Trim(line, `"'`)
		if line != "" && len(line) > minLen {
			result = append(result, line)
		}
	}
	return result
}

// ContainsString checks whether a string slice contains an element.
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// NormalizeConceptName lowercases a concept name and strips every
// non-alphanumeric character, making dedup insensitive to punctuation
// and spacing.
func NormalizeConceptName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
