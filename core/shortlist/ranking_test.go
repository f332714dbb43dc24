package shortlist

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(id int64, gmat, sat float64) Score {
	return Score{ApplicantID: id, GMAT: decimal.NewFromFloat(gmat), SAT: decimal.NewFromFloat(sat)}
}

func TestCompositeScore(t *testing.T) {
	tests := []struct {
		gmat, sat string
		want      string
	}{
		{gmat: "80", sat: "70", want: "77"},
		{gmat: "0", sat: "0", want: "0"},
		{gmat: "90", sat: "90", want: "90"},
		{gmat: "45.5", sat: "10", want: "34.85"},
	}
	for _, tt := range tests {
		got := CompositeScore(decimal.RequireFromString(tt.gmat), decimal.RequireFromString(tt.sat))
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "CompositeScore(%s, %s) = %s; want %s", tt.gmat, tt.sat, got, tt.want)
	}
}

func TestPercentRank(t *testing.T) {
	scores := []Score{
		score(1, 50, 50),
		score(2, 90, 90),
		score(3, 10, 10),
		score(4, 70, 70),
		score(5, 30, 30),
	}
	ranked := PercentRank(scores)
	require.Len(t, ranked, 5)

	wantIDs := []int64{3, 5, 1, 4, 2}
	wantRanks := []float64{0, 25, 50, 75, 100}
	for i, r := range ranked {
		assert.Equal(t, wantIDs[i], r.ApplicantID)
		assert.Equal(t, wantRanks[i], r.Rank)
		assert.Equal(t, 100-wantRanks[i], r.TopRank)
	}
}

func TestPercentRank_properties(t *testing.T) {
	var scores []Score
	for i := int64(1); i <= 37; i++ {
		scores = append(scores, score(i, float64((i*7)%90), float64((i*13)%90)))
	}
	ranked := PercentRank(scores)

	var hasMax, hasMin bool
	for i, r := range ranked {
		assert.True(t, r.Rank >= 0 && r.Rank <= 100, "rank %v out of bounds", r.Rank)
		if r.Rank == 100 {
			hasMax = true
		}
		if r.Rank == 0 {
			hasMin = true
		}
		if i > 0 {
			prev := ranked[i-1]
			assert.True(t, prev.Composite.LessThanOrEqual(r.Composite))
			assert.True(t, prev.Rank < r.Rank, "rank not increasing at %d", i)
			if prev.Composite.Equal(r.Composite) {
				assert.Greater(t, prev.ApplicantID, r.ApplicantID, "lower id must rank higher")
			}
		}
	}
	assert.True(t, hasMax, "the best score must rank 100")
	assert.True(t, hasMin, "the worst score must rank 0")
}

func TestPercentRank_ties(t *testing.T) {
	ranked := PercentRank([]Score{
		score(4, 80, 80),
		score(2, 80, 80),
		score(3, 40, 40),
		score(1, 80, 80),
	})
	require.Len(t, ranked, 4)

	wantIDs := []int64{3, 4, 2, 1}
	wantRanks := []float64{0, float64(100) / 3, float64(200) / 3, 100}
	for i, r := range ranked {
		assert.Equal(t, wantIDs[i], r.ApplicantID)
		assert.InDelta(t, wantRanks[i], r.Rank, 1e-9)
		assert.InDelta(t, 100-wantRanks[i], r.TopRank, 1e-9)
	}
}

func TestPercentRank_allTied(t *testing.T) {
	var scores []Score
	for i := int64(1); i <= 30; i++ {
		scores = append(scores, score(i, 60, 60))
	}
	ranked := PercentRank(scores)
	require.Len(t, ranked, 30)

	assert.Equal(t, float64(0), ranked[0].Rank)
	assert.Equal(t, int64(30), ranked[0].ApplicantID)
	assert.Equal(t, float64(100), ranked[29].Rank)
	assert.Equal(t, int64(1), ranked[29].ApplicantID)
}

func tiedFrom(first int64, n int, value float64) []Score {
	scores := make([]Score, 0, n)
	for i := int64(0); i < int64(n); i++ {
		scores = append(scores, score(first+i, value, value))
	}
	return scores
}

func tied(n int) []Score {
	return tiedFrom(1, n, 60)
}

// descending returns n scores below 90, the first id having the best one.
func descending(first int64, n int) []Score {
	scores := make([]Score, 0, n)
	for i := 0; i < n; i++ {
		v := float64(80 - i)
		scores = append(scores, score(first+int64(i), v, v))
	}
	return scores
}

func TestSelect(t *testing.T) {
	many := func(n int) []Score {
		scores := make([]Score, 0, n)
		for i := 1; i <= n; i++ {
			scores = append(scores, score(int64(i), float64(i%90), float64(i%45)))
		}
		return scores
	}

	tests := []struct {
		name      string
		scores    []Score
		threshold Threshold
		want      []int64
	}{
		{name: "empty block", scores: nil, threshold: Top4, want: []int64{}},
		{name: "singleton", scores: []Score{score(7, 1, 1)}, threshold: Top4, want: []int64{7}},
		{name: "two applicants", scores: []Score{score(1, 10, 10), score(2, 20, 20)}, threshold: Top8, want: []int64{2}},
		{name: "26 applicants top 4%", scores: many(26), threshold: Top4, want: []int64{26, 25}},
		{name: "26 applicants top 8%", scores: many(26), threshold: Top8, want: []int64{26, 25, 24}},
		{
			name:      "tied best scores favor the lower id",
			scores:    []Score{score(2, 80, 80), score(1, 80, 80), score(3, 10, 10), score(4, 20, 20)},
			threshold: Top4,
			want:      []int64{1},
		},
		{
			name:      "all tied stays within the threshold",
			scores:    tied(30),
			threshold: Top4,
			want:      []int64{1, 2},
		},
		{
			name:      "top ten tied out of fifty",
			scores:    append(tiedFrom(1, 10, 90), descending(11, 40)...),
			threshold: Top4,
			want:      []int64{1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(PercentRank(tt.scores), tt.threshold))
		})
	}
}

func TestSelect_thresholdsAreNested(t *testing.T) {
	var scores []Score
	for i := int64(1); i <= 120; i++ {
		scores = append(scores, score(i, float64((i*31)%91), float64((i*17)%91)))
	}
	ranked := PercentRank(scores)

	top4 := Select(ranked, Top4)
	top6 := Select(ranked, Top6)
	top8 := Select(ranked, Top8)
	assert.Subset(t, top6, top4)
	assert.Subset(t, top8, top6)
	assert.True(t, len(top4) <= len(top6) && len(top6) <= len(top8))
	assert.NotEmpty(t, top4)
}

func TestParseThreshold(t *testing.T) {
	for _, pct := range []int{4, 6, 8} {
		th, err := ParseThreshold(pct)
		require.NoError(t, err)
		assert.Equal(t, pct, th.Percent())
	}
	_, err := ParseThreshold(5)
	assert.Error(t, err)
}
