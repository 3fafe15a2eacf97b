package discovery

import (
	"hash/crc32"
	"math"
	"regexp"
	"strings"

	"toolgate/internal/domain"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases the text and extracts alphanumeric runs. Punctuation
// and whitespace never reach the scoring math.
func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range tokenize(text) {
		set[token] = struct{}{}
	}
	return set
}

// hashedEmbedding builds a deterministic token histogram. Each token bumps
// the bucket its crc32 lands in, so identical texts always produce identical
// vectors without any model dependency.
func hashedEmbedding(text string) []float64 {
	vec := make([]float64, domain.FallbackEmbeddingDims)
	for _, token := range tokenize(text) {
		vec[crc32.ChecksumIEEE([]byte(token))%domain.FallbackEmbeddingDims]++
	}
	return vec
}

// cosine returns the cosine similarity of two vectors, or 0 when either has
// zero norm or the dimensions disagree. Dimensions can disagree after a
// mid-flight fallback from a remote embedder to hashed embeddings.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// lexicalSimilarity is token overlap normalized by the larger token set.
func lexicalSimilarity(queryTokens, toolTokens map[string]struct{}) float64 {
	if len(queryTokens) == 0 || len(toolTokens) == 0 {
		return 0
	}
	overlap := 0
	for token := range queryTokens {
		if _, ok := toolTokens[token]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(max(len(queryTokens), len(toolTokens)))
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}
