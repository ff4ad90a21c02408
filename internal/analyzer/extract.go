package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Section extraction mirrors the generation prompt's five numbered headings.
// Each extractor is independent; a heading the model omitted simply leaves
// the corresponding field empty.

type sectionSpec struct {
	match *regexp.Regexp
	strip *regexp.Regexp
}

func newSectionSpec(number int, heading string) sectionSpec {
	// Matches from the numbered or bare heading through the lines that
	// follow, stopping before the next numbered section.
	match := regexp.MustCompile(fmt.Sprintf(
		`(?i)(?:%d\.\s*\*\*%s\*\*:?|%s:?\s*)[^\n]*(?:\n[^1-5\n][^\n]*)*`,
		number, heading, lastWord(heading)))
	strip := regexp.MustCompile(fmt.Sprintf(
		`(?i)%d\.\s*\*\*%s\*\*:?|\*\*%s\*\*:?`, number, heading, heading))
	return sectionSpec{match: match, strip: strip}
}

// lastWord reduces a heading pattern like `(?:Primary\s*)?Intent` to its
// mandatory final word, used for the bare "Intent:" form.
func lastWord(heading string) string {
	if i := strings.LastIndex(heading, ")?"); i >= 0 {
		return heading[i+2:]
	}
	return heading
}

var (
	intentSection      = newSectionSpec(1, `(?:Primary\s*)?Intent`)
	componentsSection  = newSectionSpec(2, `(?:Key\s*)?Components`)
	strategySection    = newSectionSpec(3, `(?:Most\s*Effective\s*)?Search\s*Strategy`)
	sourcesSection     = newSectionSpec(4, `(?:Type\s*of\s*)?Sources[^:\n]*`)
	ambiguitiesSection = newSectionSpec(5, `(?:Potential\s*)?Ambiguities[^:\n]*`)

	bulletLine = regexp.MustCompile(`^\s*[-*•]\s*(.+)$`)
)

func parseQueryAnalysis(text string) QueryAnalysis {
	analysis := QueryAnalysis{
		Components:      []string{},
		RelevantSources: []string{},
		Ambiguities:     []string{},
	}

	if m := intentSection.match.FindString(text); m != "" {
		cleaned := intentSection.strip.ReplaceAllString(m, "")
		cleaned = strings.ReplaceAll(cleaned, "- ", "")
		analysis.Intent = strings.TrimSpace(cleaned)
	}
	if m := componentsSection.match.FindString(text); m != "" {
		analysis.Components = listItems(componentsSection.strip.ReplaceAllString(m, ""), "2.")
	}
	if m := strategySection.match.FindString(text); m != "" {
		analysis.SearchStrategy = strings.TrimSpace(strategySection.strip.ReplaceAllString(m, ""))
	}
	if m := sourcesSection.match.FindString(text); m != "" {
		analysis.RelevantSources = listItems(sourcesSection.strip.ReplaceAllString(m, ""), "4.")
	}
	if m := ambiguitiesSection.match.FindString(text); m != "" {
		analysis.Ambiguities = listItems(ambiguitiesSection.strip.ReplaceAllString(m, ""), "5.")
	}
	return analysis
}

// listItems pulls bulleted entries from a section body. Continuation lines
// attach to the preceding bullet. Without any bullets, non-empty lines that
// are not the numbered heading become the items.
func listItems(body, headingPrefix string) []string {
	var items []string
	for _, line := range strings.Split(body, "\n") {
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		} else if trimmed := strings.TrimSpace(line); trimmed != "" && len(items) > 0 {
			items[len(items)-1] += " " + trimmed
		}
	}
	if items == nil {
		for _, line := range strings.Split(body, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, headingPrefix) {
				items = append(items, trimmed)
			}
		}
	}
	if items == nil {
		return []string{}
	}
	return items
}

// extractCriterionScore locates "criterion: N/10" in the generated analysis
// and takes the text up to the next blank line as the explanation.
func extractCriterionScore(text, criterion string) CriterionScore {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(criterion) + `\s*(?::|score:?)\s*(\d+(?:\.\d+)?)\s*/\s*10`)
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return CriterionScore{Explanation: "Could not extract score and explanation from analysis."}
	}

	score, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
	if err != nil {
		return CriterionScore{Explanation: "Could not extract score and explanation from analysis."}
	}

	rest := text[loc[1]:]
	if i := strings.Index(rest, "\n\n"); i >= 0 {
		rest = rest[:i]
	}
	return CriterionScore{Score: &score, Explanation: strings.TrimSpace(rest)}
}
