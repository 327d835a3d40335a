// Package pipeline joins division boundaries with voter statistics and
// polling places and writes the annotated GeoJSON.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ward-stats/internal/config"
	"github.com/sells-group/ward-stats/internal/division"
	"github.com/sells-group/ward-stats/internal/fetcher"
	"github.com/sells-group/ward-stats/internal/voterstats"
)

// Result summarizes a completed run.
type Result struct {
	Features   int
	OutputFile string
	Duration   time.Duration
}

// Pipeline runs the extract, join, enrich, and write steps once.
type Pipeline struct {
	sources  config.SourcesConfig
	fetcher  fetcher.Fetcher
	enricher *Enricher
}

// New creates a Pipeline that downloads from sources through f.
func New(sources config.SourcesConfig, f fetcher.Fetcher, enricher *Enricher) *Pipeline {
	return &Pipeline{
		sources:  sources,
		fetcher:  f,
		enricher: enricher,
	}
}

// Run executes the pipeline and writes the enriched collection to
// outputFile. Nothing is written unless every step succeeds.
func (p *Pipeline) Run(ctx context.Context, outputFile string) (*Result, error) {
	start := time.Now()
	log := zap.L()

	log.Info("pulling and preparing registration and turnout data")

	var (
		reg     voterstats.Registration
		turnout voterstats.Turnout
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reg, err = voterstats.LoadRegistration(gCtx, p.fetcher, p.sources.RegistrationURL)
		return err
	})
	g.Go(func() error {
		var err error
		turnout, err = voterstats.LoadTurnout(gCtx, p.fetcher, p.sources.TurnoutURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: load voter stats")
	}
	log.Info("voter stats loaded",
		zap.Int("registration_divisions", len(reg)),
		zap.Int("turnout_divisions", len(turnout)),
	)

	boundaries, err := division.Load(ctx, p.fetcher, p.sources.BoundaryURL)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load boundaries")
	}
	logExtent(boundaries)

	enriched, err := p.enricher.Enrich(ctx, boundaries, reg, turnout)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: enrich")
	}

	if err := division.Write(outputFile, enriched); err != nil {
		return nil, eris.Wrap(err, "pipeline: write output")
	}

	res := &Result{
		Features:   len(enriched.Features),
		OutputFile: outputFile,
		Duration:   time.Since(start),
	}
	log.Info("pipeline complete",
		zap.Int("features", res.Features),
		zap.String("output_file", res.OutputFile),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func logExtent(fc *division.FeatureCollection) {
	bounds, err := fc.Extent()
	if err != nil {
		zap.L().Warn("boundary geometry could not be decoded", zap.Error(err))
		return
	}
	if bounds.IsEmpty() {
		zap.L().Info("boundaries loaded", zap.Int("features", len(fc.Features)))
		return
	}
	zap.L().Info("boundaries loaded",
		zap.Int("features", len(fc.Features)),
		zap.Float64s("min", []float64{bounds.Min(0), bounds.Min(1)}),
		zap.Float64s("max", []float64{bounds.Max(0), bounds.Max(1)}),
	)
}
