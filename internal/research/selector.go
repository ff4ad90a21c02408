package research

import (
	"regexp"
	"strings"
)

var quotedCandidate = regexp.MustCompile(`"([^"]+)"`)

// recencyTerms earn a candidate a flat scoring bonus; fresher phrasings tend
// to pull fresher results.
var recencyTerms = []string{"latest", "recent", "current", "today", "updates", "news"}

// SelectBestQuery picks the search string to execute from the quoted
// candidates embedded in strategyText. Zero candidates returns the original
// query, one candidate returns it directly, and several are ranked by a
// BM25-style term-overlap score against the original query. Deterministic;
// ties keep the first-seen candidate.
func SelectBestQuery(strategyText, originalQuery string) string {
	candidates := make([]string, 0, 3)
	for _, m := range quotedCandidate.FindAllStringSubmatch(strategyText, -1) {
		candidates = append(candidates, m[1])
	}

	if len(candidates) == 0 {
		return originalQuery
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	const (
		k1 = 1.2
		b  = 0.75
	)

	originalTerms := strings.Fields(strings.ToLower(originalQuery))

	totalLen := 0
	for _, c := range candidates {
		totalLen += len(strings.Fields(c))
	}
	avgLen := float64(totalLen) / float64(len(candidates))

	best := candidates[0]
	bestScore := -1.0
	for _, candidate := range candidates {
		terms := strings.Fields(strings.ToLower(candidate))
		length := float64(len(terms))

		score := 0.0
		lower := strings.ToLower(candidate)
		for _, indicator := range recencyTerms {
			if strings.Contains(lower, indicator) {
				score++
			}
		}
		// A surviving quote character signals an exact-phrase query.
		if strings.Contains(candidate, `"`) {
			score += 2
		}

		for _, term := range originalTerms {
			tf := 0.0
			for _, t := range terms {
				if t == term {
					tf++
				}
			}
			if tf > 0 {
				norm := 1 - b + b*(length/avgLen)
				score += (tf * (k1 + 1)) / (tf + k1*norm)
			}
		}

		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	return best
}
