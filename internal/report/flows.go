package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/couchcryptid/census-flows/internal/census"
	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/render"
	"github.com/couchcryptid/census-flows/internal/table"
	"github.com/couchcryptid/census-flows/internal/tiger"
)

const (
	defaultTopN    = 30
	defaultMinFlow = 1000
)

// BuildFlowsReport renders the migration-flow artifacts for the configured
// metro: top-N inbound arcs, a bar chart, a sortable table, CSV exports, the
// origins newly reported in the current window, and the growth-rate table
// joining the two windows.
func (b *Builder) BuildFlowsReport(ctx context.Context) ([]render.Artifact, error) {
	p := b.params
	topN := p.TopN
	if topN == 0 {
		topN = defaultTopN
	}
	minFlow := p.MinFlow
	if minFlow == 0 {
		minFlow = defaultMinFlow
	}

	current, err := b.retriever.Flows(ctx, census.FlowsQuery{
		Year: p.Year, Level: domain.LevelMetro, GeoID: p.MetroID,
	})
	if err != nil {
		return nil, err
	}
	prior, err := b.retriever.Flows(ctx, census.FlowsQuery{
		Year: p.PriorYear, Level: domain.LevelMetro, GeoID: p.MetroID,
	})
	if err != nil {
		return nil, err
	}

	movedIn := func(r domain.MigrationFlowRecord) bool {
		return r.Direction == domain.MovedIn && r.OriginID != ""
	}
	inbound := table.Filter(current, movedIn)
	priorInbound := table.Filter(prior, movedIn)
	if len(inbound) == 0 {
		return nil, fmt.Errorf("flows report: no inbound flows for metro %s in %d", p.MetroID, p.Year)
	}

	estimate := func(r domain.MigrationFlowRecord) float64 { return r.Estimate }
	top := table.TopN(inbound, topN, estimate)

	derived, err := table.Derive(top, func(r domain.MigrationFlowRecord) (domain.MigrationFlowRecord, error) {
		return domain.DeriveArcFields(r), nil
	})
	if err != nil {
		return nil, err
	}

	var artifacts []render.Artifact

	if b.mapboxToken != "" {
		arcs, err := b.attachCentroids(ctx, derived)
		if err != nil {
			return nil, err
		}
		arcMap, err := render.ArcMap(arcs, render.ArcMapConfig{
			Title: fmt.Sprintf("Top %d inbound flows, %s", len(arcs), arcs[0].Period),
			Token: b.mapboxToken,
		}, b.artifactPath("flows_arc_map.html"))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, arcMap)
	} else {
		b.logger.Info("mapbox disabled, skipping arc map artifact")
	}

	bar, err := render.BarChart(derived, render.BarConfig{
		Title:  fmt.Sprintf("Largest inbound flows, %s", derived[0].Period),
		YLabel: "Movers per year",
	}, b.artifactPath("flows_top_bar.png"))
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, bar)

	flowTable, err := render.DataTable(
		[]string{"Origin", "Destination", "Movers per year", "Movers per window"},
		flowRows(inbound),
		render.TableConfig{
			Title:      fmt.Sprintf("Inbound flows, %s", inbound[0].Period),
			SortColumn: 2,
			Descending: true,
		},
		b.artifactPath("flows_table.html"),
	)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, flowTable)

	csv, err := render.CSV(inbound, b.artifactPath("flows_moved_in.csv"))
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, csv)

	// Origins reported in the current window but absent from the prior one,
	// matched strictly by GEOID.
	originID := func(r domain.MigrationFlowRecord) string { return r.OriginID }
	newOrigins := table.AntiJoin(inbound, priorInbound, originID, originID)
	newCSV, err := render.CSV(newOrigins, b.artifactPath("flows_new_origins.csv"))
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, newCSV)

	growth, err := b.growthTable(inbound, priorInbound, minFlow)
	if err != nil {
		return nil, err
	}
	if len(growth) > 0 {
		growthTable, err := render.DataTable(
			[]string{"Origin", "Movers per year", "Prior movers per year", "Growth rate"},
			growthRows(growth),
			render.TableConfig{
				Title:      fmt.Sprintf("Flow growth, %s vs %s", inbound[0].Period, priorInbound[0].Period),
				SortColumn: 3,
				Descending: true,
			},
			b.artifactPath("flows_growth.html"),
		)
		if err != nil {
			return nil, err
		}
		growthCSV, err := render.CSV(growth, b.artifactPath("flows_growth.csv"))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, growthTable, growthCSV)
	}

	b.countArtifacts(artifacts)
	return artifacts, nil
}

// growthRecord is one joined origin across two survey windows.
type growthRecord struct {
	OriginID      string  `csv:"origin_id" json:"origin_id"`
	OriginName    string  `csv:"origin_name" json:"origin_name"`
	Estimate      float64 `csv:"estimate" json:"estimate"`
	PriorEstimate float64 `csv:"prior_estimate" json:"prior_estimate"`
	GrowthRate    float64 `csv:"growth_rate" json:"growth_rate"`
}

// growthTable joins the two windows on origin GEOID after applying the
// per-side estimate floor, then derives growth rates. A zero prior estimate
// cannot pass the floor, but GrowthRate still guards it: an undefined rate is
// a fatal ComputationError, never Inf in an artifact.
func (b *Builder) growthTable(current, prior []domain.MigrationFlowRecord, minFlow float64) ([]growthRecord, error) {
	aboveFloor := func(r domain.MigrationFlowRecord) bool { return r.Estimate >= minFlow }
	originID := func(r domain.MigrationFlowRecord) string { return r.OriginID }

	joined := table.InnerJoin(
		table.Filter(current, aboveFloor),
		table.Filter(prior, aboveFloor),
		originID, originID,
	)

	out := make([]growthRecord, len(joined))
	for i, j := range joined {
		rate, err := domain.GrowthRate(j.Left.Estimate, j.Right.Estimate)
		if err != nil {
			b.metrics.TransformErrors.Inc()
			return nil, err
		}
		out[i] = growthRecord{
			OriginID:      j.Left.OriginID,
			OriginName:    j.Left.OriginName,
			Estimate:      j.Left.Estimate,
			PriorEstimate: j.Right.Estimate,
			GrowthRate:    rate,
		}
	}
	return out, nil
}

// attachCentroids resolves arc endpoints from TIGERweb internal points.
func (b *Builder) attachCentroids(ctx context.Context, recs []domain.MigrationFlowRecord) ([]domain.MigrationFlowRecord, error) {
	idSet := map[string]struct{}{}
	for _, r := range recs {
		idSet[r.OriginID] = struct{}{}
		idSet[r.DestID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	bounds, err := b.boundaries.Boundaries(ctx, tiger.BoundaryQuery{
		Level:  domain.LevelMetro,
		GeoIDs: ids,
	})
	if err != nil {
		return nil, err
	}
	centroids := make(map[string]domain.Geo, len(bounds))
	for _, bd := range bounds {
		centroids[bd.GeoID] = bd.Centroid
	}

	return table.Derive(recs, func(r domain.MigrationFlowRecord) (domain.MigrationFlowRecord, error) {
		if c, ok := centroids[r.OriginID]; ok {
			r.OriginCentroid = &c
		}
		if c, ok := centroids[r.DestID]; ok {
			r.DestCentroid = &c
		}
		return r, nil
	})
}

func flowRows(recs []domain.MigrationFlowRecord) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.OriginName,
			r.DestName,
			strconv.FormatFloat(r.Estimate, 'f', 0, 64),
			strconv.FormatFloat(domain.FiveYearTotal(r.Estimate), 'f', 0, 64),
		}
	}
	return rows
}

func growthRows(recs []growthRecord) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.OriginName,
			strconv.FormatFloat(r.Estimate, 'f', 0, 64),
			strconv.FormatFloat(r.PriorEstimate, 'f', 0, 64),
			strconv.FormatFloat(r.GrowthRate, 'f', 3, 64),
		}
	}
	return rows
}
