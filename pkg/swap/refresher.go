package swap

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/internal/metrics"
)

const refreshTimeout = 30 * time.Second

// Refresher periodically replaces the engine's rate table entries with spot
// prices from the market maker. When the market maker is unreachable the
// previous rates stay in effect.
type Refresher struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRefresher creates a rate refresher for the engine
func NewRefresher(engine *Engine, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		engine:   engine,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the refresh loop
func (r *Refresher) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.logger.Info("Starting swap rate refresher", zap.Duration("interval", r.interval))
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopCh:
				r.logger.Info("Swap rate refresher stopped")
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
				r.RefreshNow(ctx)
				cancel()
			}
		}
	}()
}

// Stop signals the refresh loop to exit and waits for it
func (r *Refresher) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// RefreshNow fetches a spot price for every known pair and updates the table.
// Pairs the market maker cannot price keep their last known rate.
func (r *Refresher) RefreshNow(ctx context.Context) {
	if !r.engine.dex.Configured() {
		r.logger.Debug("Skipping rate refresh, no market maker configured")
		return
	}

	for _, pair := range r.engine.ratePairs() {
		base, quote, ok := strings.Cut(pair, "/")
		if !ok {
			continue
		}

		price, err := r.engine.dex.SpotPrice(ctx, base, quote)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			metrics.RateRefreshTotal.WithLabelValues("error").Inc()
			r.logger.Debug("Rate refresh failed, keeping last rate",
				zap.String("pair", pair), zap.Error(err))
			continue
		}

		r.engine.setRate(pair, price)
		metrics.RateRefreshTotal.WithLabelValues("ok").Inc()
	}
}
