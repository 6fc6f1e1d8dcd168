// Package budget estimates prompt sizes so seeded documents fit inside a
// model's context window.
package budget

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to a document cut by FitDocuments.
const TruncationMarker = "\n[... truncated to fit the model context ...]"

// defaultContext is assumed for models with no known or suffixed size.
const defaultContext = 8192

// EstimateTokens returns a conservative token estimate for s, about four
// bytes per token rounded up.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4.0))
}

// knownModelMax holds rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4-turbo":   128_000,
	"gpt-3.5-turbo": 16_384,
	"llama-3":       8_192,
	"llama-3.1":     128_000,
	"gemini-pro":    32_768,
	"gpt-oss-20b":   4_096,
}

var suffixSizes = []struct {
	suffix string
	tokens int
}{
	{"1m", 1_000_000},
	{"200k", 200_000},
	{"128k", 128_000},
	{"32k", 32_768},
	{"16k", 16_384},
}

// ModelContextTokens returns the context window size for model. Unknown
// models get a conservative default.
func ModelContextTokens(model string) int {
	name := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	for _, s := range suffixSizes {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	if strings.HasPrefix(name, "gemini-1.5") || strings.HasPrefix(name, "gemini-2") {
		return 1_000_000
	}
	return defaultContext
}

// Headroom is the safety margin kept free of a context window: 5% or 512
// tokens, whichever is larger.
func Headroom(contextTokens int) int {
	h := int(math.Ceil(float64(contextTokens) * 0.05))
	if h < 512 {
		return 512
	}
	return h
}

// Available returns the tokens left for documents once the system prompt,
// output reservation and headroom are taken from contextTokens. It is never
// negative.
func Available(contextTokens int, system string, reserveOutput int) int {
	if reserveOutput < 0 {
		reserveOutput = 0
	}
	n := contextTokens - Headroom(contextTokens) - reserveOutput - EstimateTokens(system)
	if n < 0 {
		return 0
	}
	return n
}

// FitDocuments shrinks docs so their estimated total stays within limit
// tokens. Documents smaller than an even share keep their full text; the
// others split what is left evenly and end with TruncationMarker. The order
// of docs is kept. The second result reports whether anything was cut.
func FitDocuments(docs []string, limit int) ([]string, bool) {
	out := append([]string(nil), docs...)
	total := 0
	for _, d := range docs {
		total += EstimateTokens(d)
	}
	if total <= limit || len(docs) == 0 {
		return out, false
	}

	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return len(docs[idx[a]]) < len(docs[idx[b]]) })

	remaining := limit
	for k, i := range idx {
		share := remaining / (len(idx) - k)
		cost := EstimateTokens(docs[i])
		if cost <= share {
			remaining -= cost
			continue
		}
		out[i] = cut(docs[i], share)
		remaining -= share
	}
	return out, true
}

// cut keeps roughly tokens worth of s, ending on a rune boundary, then adds
// the marker.
func cut(s string, tokens int) string {
	n := tokens*4 - len(TruncationMarker)
	if n <= 0 {
		return strings.TrimPrefix(TruncationMarker, "\n")
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + TruncationMarker
}
