package cluster

import (
	"math"
	"regexp"
	"strings"
	"time"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]{3,}`)

// Tokenize lowercases alphanumeric tokens of length >= 3. Shorter tokens,
// acronyms included, are dropped.
func Tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, token := range tokenPattern.FindAllString(text, -1) {
		tokens[strings.ToLower(token)] = struct{}{}
	}
	return tokens
}

// Jaccard returns |A∩B| / |A∪B|, and 0 when either set is empty.
func Jaccard(left, right map[string]struct{}) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	intersection := 0
	for token := range left {
		if _, ok := right[token]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// RecencyWeight decays from 1.0 at zero gap toward 0 as the gap between
// the two timestamps grows. The 72-hour decay constant is independent of
// the candidate window even though both default to 72.
func RecencyWeight(published, reference time.Time) float64 {
	hours := math.Abs(reference.Sub(published).Hours())
	return math.Exp(-hours / 72)
}

// Similarity blends lexical overlap with recency: 0.75 jaccard + 0.25 decay.
func Similarity(itemText, clusterText string, itemTime, clusterTime time.Time) float64 {
	lexical := Jaccard(Tokenize(itemText), Tokenize(clusterText))
	timeBoost := RecencyWeight(itemTime, clusterTime)
	return 0.75*lexical + 0.25*timeBoost
}
