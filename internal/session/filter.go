package session

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// statusFilters maps exact filter words to statuses.
var statusFilters = map[string]Status{
	"working": StatusWorking,
	"waiting": StatusWaiting,
	"done":    StatusDone,
}

// Filter narrows sessions by a query. A query that names a status exactly
// filters by status; anything else fuzzy-matches against topic, short id,
// branch and repository.
func Filter(sessions []Session, query string) []Session {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return sessions
	}

	if status, ok := statusFilters[query]; ok {
		filtered := make([]Session, 0, len(sessions))
		for _, s := range sessions {
			if s.Status == status {
				filtered = append(filtered, s)
			}
		}
		return filtered
	}

	haystack := make([]string, len(sessions))
	for i, s := range sessions {
		haystack[i] = strings.ToLower(strings.Join([]string{
			s.Topic, s.ShortID, s.Branch, s.Repository,
		}, " "))
	}

	matches := fuzzy.Find(query, haystack)
	matched := make(map[int]bool, len(matches))
	for _, m := range matches {
		matched[m.Index] = true
	}

	// Keep the engine's status/recency ordering rather than match-score
	// order; the filter narrows the list, it doesn't re-rank it.
	filtered := make([]Session, 0, len(matches))
	for i, s := range sessions {
		if matched[i] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
