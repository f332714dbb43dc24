package shortlist

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	gmatWeight = decimal.RequireFromString("0.7")
	satWeight  = decimal.RequireFromString("0.3")
	hundred    = decimal.NewFromInt(100)
)

// CompositeScore is the ranking input: gmat*0.7 + sat*0.3.
func CompositeScore(gmat, sat decimal.Decimal) decimal.Decimal {
	return gmat.Mul(gmatWeight).Add(sat.Mul(satWeight))
}

// Ranked is an applicant with its percentile ranks within a block.
type Ranked struct {
	ApplicantID int64           `json:"applicant_id"`
	Composite   decimal.Decimal `json:"composite"`
	// Rank is the PERCENTRANK.INC of the composite score (0..100): the best score has 100.
	Rank float64 `json:"rank"`
	// TopRank is the PERCENTRANK.INC over descending scores (0..100): the best score has 0.
	TopRank float64 `json:"top_rank"`

	above, n int
}

// PercentRank ranks the scores of one block.
// Every applicant gets its own position: among equal composite scores the lower applicant ID
// ranks higher. The result is sorted by ascending rank.
func PercentRank(scores []Score) []Ranked {
	n := len(scores)
	ranked := make([]Ranked, 0, n)
	for _, s := range scores {
		ranked = append(ranked, Ranked{ApplicantID: s.ApplicantID, Composite: CompositeScore(s.GMAT, s.SAT), n: n})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Composite.Cmp(ranked[j].Composite); c != 0 {
			return c < 0
		}
		return ranked[i].ApplicantID > ranked[j].ApplicantID
	})

	for i := range ranked {
		ranked[i].above = n - 1 - i
		ranked[i].Rank, ranked[i].TopRank = percentRanks(i, n-1-i, n)
	}
	return ranked
}

func percentRanks(below, above, n int) (rank, topRank float64) {
	if n == 1 {
		return 100, 0
	}
	denom := decimal.NewFromInt(int64(n - 1))
	rank, _ = decimal.NewFromInt(int64(below)).Mul(hundred).Div(denom).Float64()
	topRank, _ = decimal.NewFromInt(int64(above)).Mul(hundred).Div(denom).Float64()
	return rank, topRank
}

// selected reports whether the applicant's top rank is within the threshold.
// Compared on integers: above/(n-1) <= pct/100.
func (r Ranked) selected(t Threshold) bool {
	if r.n <= 1 {
		return true
	}
	return r.above*100 <= t.Percent()*(r.n-1)
}

// Select returns the IDs of the ranked applicants within the threshold, in descending rank order.
func Select(ranked []Ranked, t Threshold) []int64 {
	ids := make([]int64, 0)
	for i := len(ranked) - 1; i >= 0; i-- {
		if ranked[i].selected(t) {
			ids = append(ids, ranked[i].ApplicantID)
		}
	}
	return ids
}
