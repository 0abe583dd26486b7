package report

import (
	"context"
	"fmt"

	"github.com/couchcryptid/census-flows/internal/census"
	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/render"
	"github.com/couchcryptid/census-flows/internal/table"
	"github.com/couchcryptid/census-flows/internal/tiger"
)

// medianHouseholdIncome is ACS table B19013: median household income in the
// past 12 months, inflation-adjusted dollars.
const medianHouseholdIncome = "B19013_001"

// BuildIncomeReport renders a tract-level median household income choropleth
// plus a CSV export for the configured county.
func (b *Builder) BuildIncomeReport(ctx context.Context) ([]render.Artifact, error) {
	p := b.params

	obs, err := b.retriever.ACS(ctx, census.ACSQuery{
		Year:      p.Year,
		Variables: []string{medianHouseholdIncome},
		Level:     domain.LevelTract,
		State:     p.StateFIPS,
		County:    p.CountyFIPS,
	})
	if err != nil {
		return nil, err
	}

	// Tracts with suppressed medians (group quarters, empty tracts) carry the
	// API's negative sentinel and are dropped before mapping.
	obs = table.Filter(obs, func(o domain.GeographicObservation) bool {
		return o.GeoID != "" && !domain.IsMissing(o.Estimate)
	})
	if len(obs) == 0 {
		return nil, fmt.Errorf("income report: no tracts with usable estimates in %s%s", p.StateFIPS, p.CountyFIPS)
	}

	boundaries, err := b.boundaries.Boundaries(ctx, tiger.BoundaryQuery{
		Level:  domain.LevelTract,
		State:  p.StateFIPS,
		County: p.CountyFIPS,
	})
	if err != nil {
		return nil, err
	}

	// Attach geometry by GEOID; tracts without published geometry are dropped
	// here rather than failing the choropleth downstream.
	joined := table.InnerJoin(obs, boundaries,
		func(o domain.GeographicObservation) string { return o.GeoID },
		func(bd tiger.Boundary) string { return bd.GeoID },
	)
	mapped := make([]domain.GeographicObservation, len(joined))
	for i, j := range joined {
		o := j.Left
		o.Geometry = j.Right.Geometry
		centroid := j.Right.Centroid
		o.Centroid = &centroid
		mapped[i] = o
	}

	choropleth, err := render.Choropleth(mapped, render.ChoroplethConfig{
		Title:      fmt.Sprintf("Median household income by tract, %d-%d", p.Year-4, p.Year),
		Palette:    "viridis",
		ValueLabel: "Median household income (USD)",
	}, b.artifactPath("income_choropleth.html"))
	if err != nil {
		return nil, err
	}

	csv, err := render.CSV(obs, b.artifactPath("income_tracts.csv"))
	if err != nil {
		return nil, err
	}

	artifacts := []render.Artifact{choropleth, csv}
	b.countArtifacts(artifacts)
	return artifacts, nil
}
