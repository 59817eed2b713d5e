package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
)

// Fetcher loads the current chart configuration of one graph.
type Fetcher func(ctx context.Context) (*schemas.ChartConfig, error)

// DefaultInterval is used when a refresher is created with a non-positive
// interval.
const DefaultInterval = 10 * time.Second

// Refresher polls a Fetcher and merges the result into a Renderer.
type Refresher struct {
	fetch    Fetcher
	renderer Renderer
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher wires fetch to renderer.
func NewRefresher(fetch Fetcher, renderer Renderer, interval time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		fetch:    fetch,
		renderer: renderer,
		interval: interval,
		logger:   logger.Named("refresher"),
	}
}

// Refresh fetches once and merges the result.
func (r *Refresher) Refresh(ctx context.Context, animate bool) error {
	cfg, err := r.fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chart data: %w", err)
	}
	if !Merge(r.renderer, cfg, animate) {
		return errors.New("chart data could not be merged")
	}
	return nil
}

// Run refreshes immediately with animation, then silently on every tick,
// until ctx is cancelled. Failed refreshes are logged and retried on the
// next tick.
func (r *Refresher) Run(ctx context.Context) error {
	r.refreshAndLog(ctx, true)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshAndLog(ctx, false)
		}
	}
}

func (r *Refresher) refreshAndLog(ctx context.Context, animate bool) {
	if err := r.Refresh(ctx, animate); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("Chart refresh failed", zap.Error(err))
	}
}

// RunDashboard runs every refresher until ctx ends and returns the context's
// error.
func RunDashboard(ctx context.Context, refreshers ...*Refresher) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range refreshers {
		g.Go(func() error { return r.Run(gctx) })
	}
	return g.Wait()
}
