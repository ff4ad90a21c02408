package scrape

import "strings"

// ChunkTokens is the token budget per page chunk, sized to fit generation
// service input limits.
const ChunkTokens = 10000

// EstimateTokens approximates token count as character count / 4. The
// heuristic is deliberately cheap and stable: exact tokenization would move
// chunk boundaries and summarization triggers.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// SplitChunks breaks text into word-aligned chunks of at most ChunkTokens
// estimated tokens each. The split is deterministic: the same text always
// yields the same chunk set. Text that cannot be split on whitespace comes
// back as a single chunk.
func SplitChunks(text string) []string {
	if text == "" {
		return nil
	}

	budget := ChunkTokens * 4 // chars per chunk under the /4 estimate
	if len(text) <= budget {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) <= 1 {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
	)
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > budget {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
