package detectors

import (
	"strings"

	"github.com/xrash/smetrics"

	"go-antiraid/internal/models"
)

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UsernameSimilarity is 1 - levenshtein/maxLen over lowercased names.
func UsernameSimilarity(a, b string) float64 {
	a, b = normalizeName(a), normalizeName(b)
	if a == b {
		return 1
	}
	maxLen := max(len(a), len(b))
	dist := smetrics.WagnerFischer(a, b, 1, 1, 1)
	return 1 - float64(dist)/float64(maxLen)
}

// FindSimilarUsernames groups members greedily: each unprocessed member seeds a
// group of every other unprocessed member scoring at least threshold against it.
// Groups are not closed transitively. Only groups of two or more are returned,
// and a member joining twice counts once.
func FindSimilarUsernames(members []models.Member, threshold float64) [][]models.Member {
	uniq := make([]models.Member, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		uniq = append(uniq, m)
	}

	processed := make([]bool, len(uniq))
	var groups [][]models.Member
	for i, seed := range uniq {
		if processed[i] {
			continue
		}
		processed[i] = true
		group := []models.Member{seed}
		for j := i + 1; j < len(uniq); j++ {
			if processed[j] {
				continue
			}
			if UsernameSimilarity(seed.Username, uniq[j].Username) >= threshold {
				processed[j] = true
				group = append(group, uniq[j])
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}
