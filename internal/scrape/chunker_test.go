package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
	require.Equal(t, 1, EstimateTokens("abcd"))
	require.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestSplitChunksShortText(t *testing.T) {
	chunks := SplitChunks("just a short sentence")
	require.Equal(t, []string{"just a short sentence"}, chunks)
}

func TestSplitChunksEmpty(t *testing.T) {
	require.Nil(t, SplitChunks(""))
}

func TestSplitChunksDeterministicAndBounded(t *testing.T) {
	// ~120k estimated tokens of text, well over the per-chunk budget.
	text := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet ", 80000))

	first := SplitChunks(text)
	second := SplitChunks(text)
	require.Equal(t, first, second)
	require.Greater(t, len(first), 1)

	for _, chunk := range first {
		require.LessOrEqual(t, EstimateTokens(chunk), ChunkTokens)
	}

	// No content is lost by chunking.
	require.Equal(t, text, strings.Join(first, " "))
}

func TestSplitChunksUnsplittableText(t *testing.T) {
	// A single giant token cannot be split on whitespace; it comes back whole.
	text := strings.Repeat("x", ChunkTokens*4+100)
	chunks := SplitChunks(text)
	require.Equal(t, []string{text}, chunks)
}
