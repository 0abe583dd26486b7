package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArcWidth(t *testing.T) {
	assert.Equal(t, float64(10), ArcWidth(5000))
	assert.Equal(t, float64(0), ArcWidth(0))
}

func TestFiveYearTotal(t *testing.T) {
	assert.Equal(t, float64(26000), FiveYearTotal(5200))
}

func TestGrowthRate(t *testing.T) {
	rate, err := GrowthRate(2000, 1600)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, rate, 1e-9)
}

func TestGrowthRate_Decline(t *testing.T) {
	rate, err := GrowthRate(800, 1600)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, rate, 1e-9)
}

func TestGrowthRate_ZeroPrior(t *testing.T) {
	_, err := GrowthRate(2000, 0)
	require.Error(t, err)

	var cerr *ComputationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "growth_rate", cerr.Op)
	assert.Contains(t, cerr.Detail, "prior estimate is zero")
}

func TestDeriveArcFields_MovedIn(t *testing.T) {
	rec := MigrationFlowRecord{
		OriginID:   "26420",
		OriginName: "Houston-The Woodlands-Sugar Land, TX Metro Area",
		DestID:     "12420",
		Direction:  MovedIn,
		Estimate:   5200,
	}

	out := DeriveArcFields(rec)

	assert.Equal(t, 10.4, out.ArcWidth)
	assert.Equal(t, float64(26000), out.FiveYearTotal)
	assert.Equal(t, "5,200 movers per year from Houston-The Woodlands-Sugar Land, TX Metro Area", out.Tooltip)
	// The input record keeps its zero derived columns.
	assert.Zero(t, rec.ArcWidth)
	assert.Empty(t, rec.Tooltip)
}

func TestDeriveArcFields_MovedOut(t *testing.T) {
	// Outbound records keep the reference geography as origin; the tooltip
	// must name where the movers went, not where they left.
	rec := MigrationFlowRecord{
		OriginID:   "12420",
		OriginName: "Austin-Round Rock-Georgetown, TX Metro Area",
		DestID:     "26420",
		DestName:   "Houston-The Woodlands-Sugar Land, TX Metro Area",
		Direction:  MovedOut,
		Estimate:   2100,
	}

	out := DeriveArcFields(rec)
	assert.Equal(t, "2,100 movers per year to Houston-The Woodlands-Sugar Land, TX Metro Area", out.Tooltip)
	assert.NotContains(t, out.Tooltip, "Austin")
}

func TestFormatCount(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{52340, "52,340"},
		{1234567, "1,234,567"},
		{-52340, "-52,340"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatCount(c.in), "FormatCount(%g)", c.in)
	}
}

func TestPeriodEnding(t *testing.T) {
	p := PeriodEnding(2019)
	assert.Equal(t, Period{Start: 2015, End: 2019}, p)
	assert.Equal(t, "2015-2019", p.String())
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(-666666666))
	assert.True(t, IsMissing(-999999999))
	assert.False(t, IsMissing(-1))
	assert.False(t, IsMissing(0))
	assert.False(t, IsMissing(67000))
}
