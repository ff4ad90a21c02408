package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectBestQueryNoCandidates(t *testing.T) {
	got := SelectBestQuery("use targeted queries about the topic", "original query")
	assert.Equal(t, "original query", got)
}

func TestSelectBestQuerySingleCandidate(t *testing.T) {
	got := SelectBestQuery(`try "golang garbage collector tuning"`, "go gc")
	assert.Equal(t, "golang garbage collector tuning", got)
}

func TestSelectBestQueryPrefersTermOverlap(t *testing.T) {
	strategy := `SEARCH_QUERIES:
- "cooking pasta recipes"
- "quantum error correction progress"
- "weather forecast models"`
	got := SelectBestQuery(strategy, "quantum error correction")
	assert.Equal(t, "quantum error correction progress", got)
}

func TestSelectBestQueryRecencyBonus(t *testing.T) {
	// Equal term overlap; the recency indicator breaks the tie.
	strategy := `- "go generics design"
- "go generics latest"`
	got := SelectBestQuery(strategy, "go generics")
	assert.Equal(t, "go generics latest", got)
}

func TestSelectBestQueryStableTieBreak(t *testing.T) {
	strategy := `- "alpha beta"
- "beta alpha"`
	got := SelectBestQuery(strategy, "alpha beta")
	assert.Equal(t, "alpha beta", got)
}

func TestSelectBestQueryDeterministic(t *testing.T) {
	strategy := `- "quantum computing 2026 updates"
- "latest quantum hardware news"
- "quantum computing basics"`
	first := SelectBestQuery(strategy, "quantum computing news")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, SelectBestQuery(strategy, "quantum computing news"))
	}
}
