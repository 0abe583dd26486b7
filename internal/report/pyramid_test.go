package report

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/census-flows/internal/census"
	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/render"
)

func TestBuilder_BuildPyramidReport(t *testing.T) {
	var gotQuery census.ACSQuery
	r := fixtureRetriever(t)
	baseACS := r.acs
	r.acs = func(q census.ACSQuery) ([]domain.GeographicObservation, error) {
		gotQuery = q
		obs, err := baseACS(q)
		if err != nil {
			return nil, err
		}
		// A neighboring state sneaks into the response and must be filtered.
		return append(obs, domain.GeographicObservation{
			GeoID: "06", Name: "California", Variable: q.Variables[0], Estimate: 999999, Year: q.Year,
		}), nil
	}

	b := newTestBuilder(t, r, fixtureBoundaries(t), testParams, "")
	artifacts, err := b.BuildPyramidReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.LevelState, gotQuery.Level)
	assert.Equal(t, "48", gotQuery.State)
	// 23 male slots + 23 female slots of table B01001.
	assert.Len(t, gotQuery.Variables, 46)
	assert.Contains(t, gotQuery.Variables, "B01001_003")
	assert.Contains(t, gotQuery.Variables, "B01001_049")

	require.Len(t, artifacts, 2)
	assert.Equal(t, render.KindPNG, artifacts[0].Kind)
	assert.Equal(t, render.KindCSV, artifacts[1].Kind)

	info, err := os.Stat(artifacts[0].Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	csv, err := os.ReadFile(artifacts[1].Path)
	require.NoError(t, err)
	content := string(csv)

	// Split slots collapse into one cohort: three 20-24 slots at 1000 each.
	assert.Contains(t, content, "48,Texas,Male,20-24,3000,2019")
	assert.Contains(t, content, "48,Texas,Female,85 and over,1000,2019")
	// The export keeps source sign; the flip lives only in the chart.
	assert.NotContains(t, content, "-1000")
	assert.NotContains(t, content, "California")
}

func TestBuilder_BuildPyramidReport_NoObservations(t *testing.T) {
	r := fixtureRetriever(t)
	r.acs = func(census.ACSQuery) ([]domain.GeographicObservation, error) {
		return []domain.GeographicObservation{
			{GeoID: "06", Name: "California", Variable: "B01001_003", Estimate: 1, Year: 2019},
		}, nil
	}

	b := newTestBuilder(t, r, fixtureBoundaries(t), testParams, "")
	_, err := b.BuildPyramidReport(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no observations for state 48")
}

func TestCollapseAgeGroups(t *testing.T) {
	obs := make([]domain.GeographicObservation, 0, 46)
	for slot := range ageGroupBySlot {
		obs = append(obs,
			domain.GeographicObservation{
				GeoID: "48", Name: "Texas", Year: 2019,
				Variable: pyramidVariable(maleSlotBase, slot), Estimate: 100,
			},
			domain.GeographicObservation{
				GeoID: "48", Name: "Texas", Year: 2019,
				Variable: pyramidVariable(femaleSlotBase, slot), Estimate: 200,
			},
		)
	}

	rows := collapseAgeGroups(obs)

	// 18 cohorts, one row per (cohort, sex), youngest first.
	require.Len(t, rows, 36)
	assert.Equal(t, "Under 5", rows[0].AgeGroup)
	assert.Equal(t, "Male", rows[0].Sex)
	assert.Equal(t, "Under 5", rows[1].AgeGroup)
	assert.Equal(t, "Female", rows[1].Sex)
	assert.Equal(t, "85 and over", rows[34].AgeGroup)

	sums := map[string]float64{}
	for _, r := range rows {
		sums[r.Sex+"|"+r.AgeGroup] = r.Estimate
	}
	assert.Equal(t, float64(100), sums["Male|Under 5"])
	assert.Equal(t, float64(200), sums["Female|25-29"])
	// Split cohorts sum their slots: 15-19 has two, 20-24 has three.
	assert.Equal(t, float64(200), sums["Male|15-19"])
	assert.Equal(t, float64(600), sums["Female|20-24"])
	assert.Equal(t, float64(400), sums["Female|65-69"])
}

func TestCollapseAgeGroups_SuppressedSlotsSkipped(t *testing.T) {
	obs := []domain.GeographicObservation{
		{GeoID: "48", Name: "Texas", Variable: pyramidVariable(maleSlotBase, 0), Estimate: 100, Year: 2019},
		{GeoID: "48", Name: "Texas", Variable: pyramidVariable(femaleSlotBase, 0), Estimate: -666666666, Year: 2019},
	}

	rows := collapseAgeGroups(obs)
	sums := map[string]float64{}
	for _, r := range rows {
		sums[r.Sex+"|"+r.AgeGroup] = r.Estimate
	}
	assert.Equal(t, float64(100), sums["Male|Under 5"])
	assert.Zero(t, sums["Female|Under 5"])
}
