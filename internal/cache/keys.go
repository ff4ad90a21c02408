package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
)

// Key builders. Every cached payload is self-contained JSON; no key references
// another. Query analysis and chat keys deliberately use the literal query
// text, so trivially different phrasings miss the cache.

func QueryAnalysisKey(userID, query string) string {
	return fmt.Sprintf("%s:query_analysis:%s", userID, query)
}

func ContentAnalysisKey(userID, content, criteria string) string {
	return fmt.Sprintf("%s:analysis:%s:%s", userID, hashMD5(content), hashMD5(criteria))
}

// SynthesisKey hashes the sorted source URLs so the same source set with the
// same query reuses a prior synthesis regardless of gathering order.
func SynthesisKey(userID string, sourceURLs []string, query string) string {
	sorted := append([]string(nil), sourceURLs...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s:synthesis:%s:%s", userID, hashMD5(fmt.Sprintf("%v", sorted)), hashMD5(query))
}

func NewsKey(userID, query string, maxResults, daysBack int) string {
	return fmt.Sprintf("%s:news:%s:%d:%d", userID, query, maxResults, daysBack)
}

func PageKey(userID, url string) string {
	return fmt.Sprintf("%s:%s", userID, url)
}

func ChatHistoryKey(userID string) string {
	return fmt.Sprintf("chat_history:%s", userID)
}

func hashMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
