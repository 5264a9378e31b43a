package normalize

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// TokenSortRatio scores two strings in [0, 100] after canonicalizing and
// sorting their tokens, so word order does not matter.
func TokenSortRatio(a, b string) float64 {
	sa, sb := sortedTokens(a), sortedTokens(b)
	if sa == "" && sb == "" {
		return 100
	}
	if sa == "" || sb == "" {
		return 0
	}
	total := len([]rune(sa)) + len([]rune(sb))
	dist := levenshtein.ComputeDistance(sa, sb)
	return 100 * float64(total-dist) / float64(total)
}

// BestMatch returns the choice scoring highest against query, provided it
// reaches cutoff. Ties go to the earlier choice.
func BestMatch(query string, choices []string, cutoff float64) (string, float64, bool) {
	best, bestScore := "", -1.0
	for _, c := range choices {
		s := TokenSortRatio(query, c)
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < cutoff {
		return "", bestScore, false
	}
	return best, bestScore, true
}

func sortedTokens(s string) string {
	toks := strings.Fields(City(s))
	sort.Strings(toks)
	return strings.Join(toks, " ")
}
