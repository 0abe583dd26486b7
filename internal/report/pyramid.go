package report

import (
	"context"
	"fmt"

	"github.com/couchcryptid/census-flows/internal/census"
	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/render"
	"github.com/couchcryptid/census-flows/internal/table"
)

// ACS table B01001 (sex by age) splits some 5-year cohorts into finer slots
// (15-17/18-19, 60-61/62-64, ...). ageGroupBySlot maps each of the 23 slots
// onto the coarser pyramid cohort; male variables start at B01001_003, female
// at B01001_027.
var ageGroupBySlot = []string{
	"Under 5", "5-9", "10-14", "15-19", "15-19",
	"20-24", "20-24", "20-24", "25-29", "30-34",
	"35-39", "40-44", "45-49", "50-54", "55-59",
	"60-64", "60-64", "65-69", "65-69", "70-74",
	"75-79", "80-84", "85 and over",
}

const (
	maleSlotBase   = 3
	femaleSlotBase = 27
)

func pyramidVariable(base, slot int) string {
	return fmt.Sprintf("B01001_%03d", base+slot)
}

// BuildPyramidReport renders the configured state's population pyramid: one
// PNG with the male side sign-flipped, plus the unflipped CSV export.
func (b *Builder) BuildPyramidReport(ctx context.Context) ([]render.Artifact, error) {
	p := b.params

	variables := make([]string, 0, 2*len(ageGroupBySlot))
	for slot := range ageGroupBySlot {
		variables = append(variables, pyramidVariable(maleSlotBase, slot), pyramidVariable(femaleSlotBase, slot))
	}

	obs, err := b.retriever.ACS(ctx, census.ACSQuery{
		Year:      p.Year,
		Variables: variables,
		Level:     domain.LevelState,
		State:     p.StateFIPS,
	})
	if err != nil {
		return nil, err
	}
	obs = table.Filter(obs, func(o domain.GeographicObservation) bool {
		return o.GeoID == p.StateFIPS
	})
	if len(obs) == 0 {
		return nil, fmt.Errorf("pyramid report: no observations for state %s", p.StateFIPS)
	}

	breakdowns := collapseAgeGroups(obs)

	// Presentation-only sign convention: male bars extend left.
	flipped := table.SignFlip(breakdowns,
		func(d domain.DemographicBreakdown) bool { return d.Sex == "Male" },
		func(d domain.DemographicBreakdown) float64 { return d.Estimate },
		func(d domain.DemographicBreakdown, v float64) domain.DemographicBreakdown {
			d.Estimate = v
			return d
		},
	)

	chart, err := render.PyramidChart(flipped, render.PyramidConfig{
		Title: fmt.Sprintf("%s population by age and sex, %d-%d", obs[0].Name, p.Year-4, p.Year),
	}, b.artifactPath("population_pyramid.png"))
	if err != nil {
		return nil, err
	}

	// The CSV keeps source sign: estimates are non-negative, the flip exists
	// only inside the chart.
	csv, err := render.CSV(breakdowns, b.artifactPath("population_pyramid.csv"))
	if err != nil {
		return nil, err
	}

	artifacts := []render.Artifact{chart, csv}
	b.countArtifacts(artifacts)
	return artifacts, nil
}

// collapseAgeGroups sums fine B01001 slots into pyramid cohorts, youngest
// first, emitting one row per (cohort, sex).
func collapseAgeGroups(obs []domain.GeographicObservation) []domain.DemographicBreakdown {
	bySlot := make(map[string]domain.GeographicObservation, len(obs))
	for _, o := range obs {
		bySlot[o.Variable] = o
	}

	var cohorts []string
	sums := map[string]map[string]float64{"Male": {}, "Female": {}}
	for slot, cohort := range ageGroupBySlot {
		if len(cohorts) == 0 || cohorts[len(cohorts)-1] != cohort {
			cohorts = append(cohorts, cohort)
		}
		if o, ok := bySlot[pyramidVariable(maleSlotBase, slot)]; ok && !domain.IsMissing(o.Estimate) {
			sums["Male"][cohort] += o.Estimate
		}
		if o, ok := bySlot[pyramidVariable(femaleSlotBase, slot)]; ok && !domain.IsMissing(o.Estimate) {
			sums["Female"][cohort] += o.Estimate
		}
	}

	ref := obs[0]
	out := make([]domain.DemographicBreakdown, 0, 2*len(cohorts))
	for _, cohort := range cohorts {
		for _, sex := range []string{"Male", "Female"} {
			out = append(out, domain.DemographicBreakdown{
				GeoID:    ref.GeoID,
				Name:     ref.Name,
				Sex:      sex,
				AgeGroup: cohort,
				Estimate: sums[sex][cohort],
				Year:     ref.Year,
			})
		}
	}
	return out
}
