package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/internal/metrics"
	"github.com/nexchain-labs/asset-gateway/pkg/config"
)

const sweepTimeout = time.Minute

// Archiver periodically stamps settled records as archived once they pass the
// retention age. Nothing is ever deleted; archived records drop out of the
// default listings but stay available for stats and audits.
type Archiver struct {
	store    Store
	maxAge   time.Duration
	interval time.Duration
	logger   *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewArchiver creates a retention archiver
func NewArchiver(store Store, cfg *config.RetentionConfig, logger *zap.Logger) *Archiver {
	return &Archiver{
		store:    store,
		maxAge:   cfg.MaxAge,
		interval: cfg.SweepInterval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic retention sweep
func (a *Archiver) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		a.logger.Info("Started retention sweep",
			zap.Duration("interval", a.interval),
			zap.Duration("max_age", a.maxAge))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
				a.sweep(ctx)
				cancel()
			case <-a.stopCh:
				a.logger.Info("Stopping retention sweep")
				return
			}
		}
	}()
}

// Stop stops the periodic sweep and waits for an in-flight sweep to finish
func (a *Archiver) Stop() {
	close(a.stopCh)
	a.wg.Wait()
}

func (a *Archiver) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-a.maxAge)

	bridgeN, swapN, err := a.store.ArchiveRecords(ctx, cutoff)
	if err != nil {
		a.logger.Error("Retention sweep failed", zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("archiver", "sweep").Inc()
		return
	}

	if bridgeN > 0 {
		metrics.RecordsArchivedTotal.WithLabelValues("bridge_records").Add(float64(bridgeN))
	}
	if swapN > 0 {
		metrics.RecordsArchivedTotal.WithLabelValues("swap_records").Add(float64(swapN))
	}

	if bridgeN > 0 || swapN > 0 {
		a.logger.Info("Retention sweep archived records",
			zap.Int64("bridge_records", bridgeN),
			zap.Int64("swap_records", swapN),
			zap.Time("cutoff", cutoff))
	} else {
		a.logger.Debug("Retention sweep found nothing to archive", zap.Time("cutoff", cutoff))
	}
}
