package selection

import (
	"sort"

	"github.com/wonny/krxvalue/internal/contracts"
)

// score fills the TAT contributions of a candidate.
// PER and PBR are already > 0 at this point.
func score(c *contracts.ScoredCandidate) {
	c.PERContribution = 1 / c.PER
	c.PBRContribution = 1 / c.PBR
	c.DIVContribution = 0
	if c.DIV != nil {
		c.DIVContribution = *c.DIV / 100
	}
	c.TotalScore = c.PERContribution + c.PBRContribution + c.DIVContribution
}

// rank sorts by TotalScore descending, keeps the first topN and numbers them.
// Ties keep their input (join) order.
func rank(candidates []contracts.ScoredCandidate, topN int) []contracts.ScoredCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TotalScore > candidates[j].TotalScore
	})

	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	return candidates
}
