package extract

import "strings"

// Tax-context keyword sets. "mwst" sits in the inclusive set so a bare
// "inkl. MwSt" scores +3 while "zzgl. MwSt" nets out negative through
// the exclusive hit.
var (
	taxInclusiveKeywords = []string{
		"inkl", "incl", "mwst", "brutto", "gross", "including",
	}
	taxExclusiveKeywords = []string{
		"netto", "zzgl", "excl", "exkl", "ohne mwst", "plus vat",
	}
)

// taxScore rates a candidate's surrounding text: +3 for any tax-inclusive
// keyword, -4 for any tax-exclusive/net keyword, 0 without a match.
func taxScore(context string) int {
	if context == "" {
		return 0
	}
	lower := strings.ToLower(context)
	score := 0
	if containsAny(lower, taxInclusiveKeywords) {
		score += 3
	}
	if containsAny(lower, taxExclusiveKeywords) {
		score -= 4
	}
	return score
}

// ChoosePrice reduces the collected candidates to the single most
// credible value.
//
// The same price string appearing in several DOM locations (main price,
// recap, JSON sidecar) is a stronger signal than any one selector's
// precedence, so the frequency mode decides; the tax-context partition
// keeps net-price near-duplicates from stealing the mode, and ties go to
// the larger value.
func ChoosePrice(cands []PriceCandidate, minPlausible, maxPlausible float64) (float64, bool) {
	if len(cands) == 0 {
		return 0, false
	}

	// Plausibility band, with fallback to everything when the band
	// filters the whole population away.
	pool := make([]PriceCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Value >= minPlausible && c.Value <= maxPlausible {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = cands
	}

	// Prefer candidates whose context does not read tax-exclusive.
	preferred := make([]PriceCandidate, 0, len(pool))
	for _, c := range pool {
		if taxScore(c.Context) >= 0 {
			preferred = append(preferred, c)
		}
	}
	if len(preferred) == 0 {
		preferred = pool
	}

	counts := make(map[float64]int, len(preferred))
	for _, c := range preferred {
		counts[c.Value]++
	}

	var bestValue float64
	bestCount := 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v > bestValue) {
			bestValue, bestCount = v, n
		}
	}
	return bestValue, true
}
