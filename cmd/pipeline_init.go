package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ward-stats/internal/config"
	"github.com/sells-group/ward-stats/internal/fetcher"
	"github.com/sells-group/ward-stats/internal/pipeline"
	"github.com/sells-group/ward-stats/internal/resilience"
	"github.com/sells-group/ward-stats/pkg/pollingplace"
)

// pipelineEnv holds the initialized clients and the pipeline for one run.
type pipelineEnv struct {
	RunID    string
	Cache    *pollingplace.Cache // may be nil
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Cache != nil {
		_ = pe.Cache.Close()
	}
}

// initPipeline builds the fetcher, polling-place client, and Pipeline from
// c. Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config) (*pipelineEnv, error) {
	runID := uuid.NewString()
	zap.ReplaceGlobals(zap.L().With(zap.String("run_id", runID)))

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.HTTP.UserAgent,
		Timeout:   time.Duration(c.HTTP.TimeoutSecs) * time.Second,
	})
	if c.Polling.RateLimit > 0 {
		if err := f.SetRateLimit(c.Polling.BaseURL, c.Polling.RateLimit); err != nil {
			return nil, eris.Wrap(err, "polling rate limit")
		}
	}

	retry := resilience.FromRetryConfig(
		c.Retry.MaxAttempts,
		c.Retry.InitialBackoffMs,
		c.Retry.MaxBackoffMs,
		c.Retry.Multiplier,
		c.Retry.JitterFraction,
	)
	opts := []pollingplace.Option{
		pollingplace.WithFetcher(f),
		pollingplace.WithRetry(retry),
		pollingplace.WithRetryLogging(),
	}

	env := &pipelineEnv{RunID: runID}

	if c.Polling.CachePath != "" {
		cache, err := pollingplace.OpenCache(ctx, c.Polling.CachePath)
		if err != nil {
			return nil, eris.Wrap(err, "open polling place cache")
		}
		env.Cache = cache
		opts = append(opts, pollingplace.WithCache(cache))

		entries, err := cache.Len(ctx)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "count polling place cache")
		}
		zap.L().Info("polling place cache enabled",
			zap.String("path", c.Polling.CachePath),
			zap.Int("entries", entries),
		)
	}

	polling := pollingplace.NewClient(c.Polling.BaseURL, opts...)
	env.Pipeline = pipeline.New(c.Sources, f, pipeline.NewEnricher(polling, c.Polling.Concurrency))

	zap.L().Debug("pipeline initialized",
		zap.Int("polling_concurrency", c.Polling.Concurrency),
		zap.Int("retry_max_attempts", retry.MaxAttempts),
	)
	return env, nil
}
