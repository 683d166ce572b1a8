package feerouter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/internal/metrics"
	"github.com/nexchain-labs/asset-gateway/pkg/config"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
)

const (
	deliveryBatchSize = 50
	sweepTimeout      = 2 * time.Minute
)

// OutboxWorker retries queued fee transfers until they deliver or exhaust
// their attempts. Terminal failures are flagged, never silently dropped.
type OutboxWorker struct {
	router      *Router
	interval    time.Duration
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	logger      *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewOutboxWorker creates the fee outbox worker
func NewOutboxWorker(router *Router, cfg *config.FeesConfig, logger *zap.Logger) *OutboxWorker {
	return &OutboxWorker{
		router:      router,
		interval:    cfg.OutboxInterval,
		baseDelay:   cfg.OutboxBaseDelay,
		maxDelay:    cfg.OutboxMaxDelay,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic delivery loop
func (w *OutboxWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("Started fee outbox worker", zap.Duration("interval", w.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
				w.DeliverDue(ctx)
				cancel()
			case <-w.stopCh:
				w.logger.Info("Stopping fee outbox worker")
				return
			}
		}
	}()
}

// Stop stops the delivery loop and waits for an in-flight sweep to finish
func (w *OutboxWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

// DeliverDue delivers every queued fee whose retry time has come
func (w *OutboxWorker) DeliverDue(ctx context.Context) {
	entries, err := w.router.outbox.DueFeeEntries(ctx, time.Now(), deliveryBatchSize)
	if err != nil {
		w.logger.Error("Failed to list due fee entries", zap.Error(err))
		return
	}

	for _, entry := range entries {
		w.deliver(ctx, entry)
	}

	pending, err := w.router.outbox.CountPendingFees(ctx)
	if err != nil {
		w.logger.Warn("Failed to count pending fees", zap.Error(err))
		return
	}
	metrics.FeeOutboxPending.Set(float64(pending))
}

func (w *OutboxWorker) deliver(ctx context.Context, entry *records.FeeOutboxEntry) {
	treasury := w.router.TreasuryAddress(ctx)

	tx, err := w.router.ledger.SendTransaction(ctx, &ledger.SendRequest{
		From:       entry.FromAddress,
		To:         treasury,
		Amount:     entry.Amount,
		SigningKey: entry.SigningKey,
		Memo:       string(entry.Kind),
	})
	if err == nil {
		if markErr := w.router.outbox.MarkFeeDelivered(ctx, entry.ID, tx.Hash); markErr != nil {
			w.logger.Error("Fee delivered but could not be marked",
				zap.String("outbox_id", entry.ID),
				zap.String("tx_hash", tx.Hash),
				zap.Error(markErr))
			return
		}
		metrics.FeesRoutedTotal.WithLabelValues(string(entry.Kind), "delivered").Inc()
		w.logger.Info("Queued fee delivered",
			zap.String("outbox_id", entry.ID),
			zap.String("kind", string(entry.Kind)),
			zap.String("amount", entry.Amount.String()),
			zap.Int("attempts", entry.Attempts+1))
		return
	}

	attempts := entry.Attempts + 1
	if attempts >= w.maxAttempts {
		if markErr := w.router.outbox.MarkFeeFailed(ctx, entry.ID, err.Error()); markErr != nil {
			w.logger.Error("Failed to mark fee failed",
				zap.String("outbox_id", entry.ID), zap.Error(markErr))
			return
		}
		metrics.FeesRoutedTotal.WithLabelValues(string(entry.Kind), "failed").Inc()
		w.logger.Error("Fee delivery abandoned after max attempts",
			zap.String("outbox_id", entry.ID),
			zap.String("kind", string(entry.Kind)),
			zap.String("parent_op", entry.ParentOpID),
			zap.String("amount", entry.Amount.String()),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return
	}

	next := time.Now().Add(w.backoff(attempts))
	if markErr := w.router.outbox.MarkFeeRetry(ctx, entry.ID, next, err.Error()); markErr != nil {
		w.logger.Error("Failed to schedule fee retry",
			zap.String("outbox_id", entry.ID), zap.Error(markErr))
		return
	}
	metrics.FeesRoutedTotal.WithLabelValues(string(entry.Kind), "requeued").Inc()
	w.logger.Warn("Fee delivery failed, retry scheduled",
		zap.String("outbox_id", entry.ID),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt", next),
		zap.Error(err))
}

// backoff grows with the attempt count and is capped at the configured
// maximum delay.
func (w *OutboxWorker) backoff(attempts int) time.Duration {
	delay := time.Duration(attempts) * w.baseDelay
	if delay > w.maxDelay {
		delay = w.maxDelay
	}
	return delay
}
