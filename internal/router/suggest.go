package router

import "github.com/agnivade/levenshtein"

// suggest returns the candidate closest to id by edit distance, or "" when
// none is within a third of the id's length (minimum 2 edits).
func suggest(id string, candidates []string) string {
	limit := len(id) / 3
	if limit < 2 {
		limit = 2
	}

	best, bestDist := "", limit+1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(id, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
