// Package report orchestrates the retrieve -> transform -> render cycle for
// each report. Data flows strictly one way; every stage owns its input table
// and produces a new one. All failures are fatal: the first error aborts the
// run with no retry and no partial-result continuation.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/census-flows/internal/census"
	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/observability"
	"github.com/couchcryptid/census-flows/internal/render"
	"github.com/couchcryptid/census-flows/internal/tiger"
)

// Retriever is the slice of the census client the builder needs.
// Tests substitute a stub to run the whole pipeline offline.
type Retriever interface {
	ACS(ctx context.Context, q census.ACSQuery) ([]domain.GeographicObservation, error)
	Flows(ctx context.Context, q census.FlowsQuery) ([]domain.MigrationFlowRecord, error)
}

// BoundarySource yields geometry and centroids for geographies.
type BoundarySource interface {
	Boundaries(ctx context.Context, q tiger.BoundaryQuery) ([]tiger.Boundary, error)
}

// Params selects what the reports cover.
type Params struct {
	StateFIPS  string // pyramid + income scope, e.g. "48"
	CountyFIPS string // income scope, e.g. "453"
	MetroID    string // flows reference CBSA, e.g. "12420"
	Year       int    // current snapshot survey year (window end)
	PriorYear  int    // prior snapshot survey year (window end)
	TopN       int    // arcs/bars kept in the flow visuals
	MinFlow    float64 // per-side estimate floor for the growth join
}

// Manifest records one build run and its artifacts.
type Manifest struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Params      Params            `json:"params"`
	Artifacts   []render.Artifact `json:"artifacts"`
}

// Builder wires retrieval, transformation, and rendering for all reports.
type Builder struct {
	retriever   Retriever
	boundaries  BoundarySource
	params      Params
	outputDir   string
	mapboxToken string
	logger      *slog.Logger
	metrics     *observability.Metrics
	runID       string

	artifactCount atomic.Int64
}

// New creates a Builder. An empty mapboxToken disables the arc-map artifact;
// every other artifact still renders.
func New(retriever Retriever, boundaries BoundarySource, params Params, outputDir, mapboxToken, runID string, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{
		retriever:   retriever,
		boundaries:  boundaries,
		params:      params,
		outputDir:   outputDir,
		mapboxToken: mapboxToken,
		logger:      logger,
		metrics:     metrics,
		runID:       runID,
	}
}

// CheckReadiness returns nil once at least one artifact has been written.
func (b *Builder) CheckReadiness(_ context.Context) error {
	if b.artifactCount.Load() == 0 {
		return errors.New("no artifacts written yet")
	}
	return nil
}

// ArtifactCount reports how many artifacts this run has written so far.
func (b *Builder) ArtifactCount() int {
	return int(b.artifactCount.Load())
}

// Run builds every report sequentially and writes a manifest. The first
// failure aborts the whole run.
func (b *Builder) Run(ctx context.Context) error {
	b.logger.Info("build started", "run_id", b.runID, "output_dir", b.outputDir)
	b.metrics.BuildRunning.Set(1)
	defer b.metrics.BuildRunning.Set(0)

	var artifacts []render.Artifact

	steps := []struct {
		name  string
		build func(context.Context) ([]render.Artifact, error)
	}{
		{"income", b.BuildIncomeReport},
		{"pyramid", b.BuildPyramidReport},
		{"flows", b.BuildFlowsReport},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		out, err := step.build(ctx)
		if err != nil {
			b.logger.Error("report build failed", "report", step.name, "error", err)
			return err
		}
		b.metrics.ReportDuration.WithLabelValues(step.name).Observe(time.Since(start).Seconds())
		artifacts = append(artifacts, out...)
		b.logger.Info("report built", "report", step.name, "artifacts", len(out))
	}

	if err := b.writeManifest(artifacts); err != nil {
		return err
	}
	b.logger.Info("build complete", "run_id", b.runID, "artifacts", len(artifacts))
	return nil
}

func (b *Builder) writeManifest(artifacts []render.Artifact) error {
	m := Manifest{
		RunID:       b.runID,
		GeneratedAt: domain.Now(),
		Params:      b.params,
		Artifacts:   artifacts,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(b.outputDir, "manifest.json")
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// countArtifacts bumps the written-artifact metric per kind and the run's
// readiness counter.
func (b *Builder) countArtifacts(artifacts []render.Artifact) {
	for _, a := range artifacts {
		b.metrics.ArtifactsWritten.WithLabelValues(a.Kind).Inc()
	}
	b.artifactCount.Add(int64(len(artifacts)))
}

func (b *Builder) artifactPath(name string) string {
	return filepath.Join(b.outputDir, name)
}
