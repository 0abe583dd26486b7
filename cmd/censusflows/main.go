// Command censusflows builds the census demographic and migration-flow
// report artifacts: choropleth and arc-flow maps, a population pyramid,
// sortable tables, and CSV exports.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/census-flows/internal/adapter/http"
	"github.com/couchcryptid/census-flows/internal/census"
	"github.com/couchcryptid/census-flows/internal/config"
	"github.com/couchcryptid/census-flows/internal/observability"
	"github.com/couchcryptid/census-flows/internal/render"
	"github.com/couchcryptid/census-flows/internal/report"
	"github.com/couchcryptid/census-flows/internal/tiger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type buildOptions struct {
	state     string
	county    string
	metro     string
	year      int
	priorYear int
	topN      int
	minFlow   float64
	outputDir string
	serveOps  bool
}

func newRootCmd() *cobra.Command {
	var opts buildOptions

	root := &cobra.Command{
		Use:           "censusflows",
		Short:         "Build Census demographic and migration-flow visualizations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.state, "state", "48", "state FIPS code")
	pf.StringVar(&opts.county, "county", "453", "county FIPS code (income report)")
	pf.StringVar(&opts.metro, "metro", "12420", "metro CBSA code (flows report)")
	pf.IntVar(&opts.year, "year", 2019, "current snapshot survey year (5-year window end)")
	pf.IntVar(&opts.priorYear, "prior-year", 2013, "prior snapshot survey year (5-year window end)")
	pf.IntVar(&opts.topN, "top", 30, "flows kept in the arc map and bar chart")
	pf.Float64Var(&opts.minFlow, "min-flow", 1000, "per-side estimate floor for the growth join")
	pf.StringVar(&opts.outputDir, "output", "", "artifact directory (overrides OUTPUT_DIR)")
	pf.BoolVar(&opts.serveOps, "serve-ops", false, "serve /healthz, /readyz, and /metrics during the build")

	root.AddCommand(
		newBuildCmd(&opts, "build", "Build all reports", nil),
		newBuildCmd(&opts, "income-map", "Build only the tract income choropleth", runOne((*report.Builder).BuildIncomeReport)),
		newBuildCmd(&opts, "pyramid", "Build only the population pyramid", runOne((*report.Builder).BuildPyramidReport)),
		newBuildCmd(&opts, "flows", "Build only the migration-flow artifacts", runOne((*report.Builder).BuildFlowsReport)),
	)

	return root
}

type runFunc func(ctx context.Context, b *report.Builder) error

// runOne adapts a single-report build method into a runFunc.
func runOne(build func(*report.Builder, context.Context) ([]render.Artifact, error)) runFunc {
	return func(ctx context.Context, b *report.Builder) error {
		_, err := build(b, ctx)
		return err
	}
}

func newBuildCmd(opts *buildOptions, use, short string, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), *opts, run)
		},
	}
}

func runBuild(parent context.Context, opts buildOptions, run runFunc) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	censusClient := census.NewClient(cfg.CensusAPIKey, cfg.CensusTimeout, metrics, logger)
	source := census.NewCachedSource(censusClient, cfg.CacheSize, metrics)
	boundaries := tiger.NewClient(cfg.TigerTimeout, metrics, logger)

	mapboxToken := ""
	if cfg.MapboxEnabled {
		mapboxToken = cfg.MapboxToken
		logger.Info("mapbox basemap enabled")
	} else {
		logger.Info("mapbox basemap disabled, arc maps will be skipped")
	}

	builder := report.New(source, boundaries, report.Params{
		StateFIPS:  opts.state,
		CountyFIPS: opts.county,
		MetroID:    opts.metro,
		Year:       opts.year,
		PriorYear:  opts.priorYear,
		TopN:       opts.topN,
		MinFlow:    opts.minFlow,
	}, cfg.OutputDir, mapboxToken, runID, logger, metrics)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if opts.serveOps {
		srv = httpadapter.NewServer(cfg.HTTPAddr, builder, runID, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server error", "error", err)
			}
		}()
	}

	buildErr := runReports(ctx, builder, run)
	if buildErr != nil {
		logger.Error("build failed", "error", buildErr)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", "error", err)
		}
	}

	return buildErr
}

func runReports(ctx context.Context, b *report.Builder, run runFunc) error {
	if run == nil {
		return b.Run(ctx)
	}
	return run(ctx, b)
}
