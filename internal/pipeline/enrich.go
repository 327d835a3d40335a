package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ward-stats/internal/division"
	"github.com/sells-group/ward-stats/internal/voterstats"
	"github.com/sells-group/ward-stats/pkg/pollingplace"
)

var (
	// ErrMissingRegistration is returned when a boundary division has no registration row.
	ErrMissingRegistration = eris.New("pipeline: division missing from registration data")

	// ErrMissingTurnout is returned when a boundary division has no turnout rows.
	ErrMissingTurnout = eris.New("pipeline: division missing from turnout data")
)

// Join sets WARD_NUM, REGISTRATION_TOTAL, and TURNOUT_TOTAL on every
// feature. Every feature's division must be present in both mappings; the
// first one that is not aborts the join.
func Join(fc *division.FeatureCollection, reg voterstats.Registration, turnout voterstats.Turnout) error {
	for i, f := range fc.Features {
		if f == nil {
			return eris.Errorf("pipeline: feature %d is null", i)
		}
		code, err := f.DivisionCode()
		if err != nil {
			return eris.Wrapf(err, "pipeline: feature %d", i)
		}

		total, ok := reg[code]
		if !ok {
			return eris.Wrapf(ErrMissingRegistration, "division %s", code)
		}
		voters, ok := turnout[code]
		if !ok {
			return eris.Wrapf(ErrMissingTurnout, "division %s", code)
		}

		f.Properties[division.PropWardNum] = code.Ward()
		f.Properties[division.PropRegistrationTotal] = total
		f.Properties[division.PropTurnoutTotal] = voters
	}
	return nil
}

// Enricher attaches voter statistics and polling-place addresses to
// boundary features.
type Enricher struct {
	polling     pollingplace.Client
	concurrency int
}

// NewEnricher creates an Enricher. A concurrency of 1 performs lookups
// strictly one after another in feature order.
func NewEnricher(polling pollingplace.Client, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{polling: polling, concurrency: concurrency}
}

// Enrich joins registration and turnout onto fc and then resolves the
// polling-place address of each feature. fc is mutated in place and
// returned. Feature order is preserved. Any error aborts the whole run.
func (e *Enricher) Enrich(ctx context.Context, fc *division.FeatureCollection, reg voterstats.Registration, turnout voterstats.Turnout) (*division.FeatureCollection, error) {
	if err := Join(fc, reg, turnout); err != nil {
		return nil, err
	}

	total := len(fc.Features)
	var done atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, f := range fc.Features {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			// Join already validated the code.
			code, _ := f.DivisionCode()

			zap.L().Info("looking up polling address",
				zap.String("division", code.String()),
				zap.Int("index", i+1),
				zap.Int("total", total),
			)

			addr, err := e.polling.Lookup(gCtx, code)
			if err != nil {
				return eris.Wrapf(err, "pipeline: polling place for feature %d", i)
			}
			f.Properties[division.PropPollingPlaceAddress] = addr

			zap.L().Info("polling address resolved",
				zap.String("division", code.String()),
				zap.String("address", addr),
				zap.Int64("done", done.Add(1)),
				zap.Int("total", total),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The loop stops scheduling once ctx is done; some features may have
	// no address yet.
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: enrich cancelled")
	}
	return fc, nil
}
