package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/kokoro/pkg/usecase"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
)

// DefaultAggregationInterval is how often pending emotion deltas are folded
// into affinity
const DefaultAggregationInterval = 15 * time.Minute

// AffinityAggregator folds pending emotion deltas into stored affinity
type AffinityAggregator interface {
	AggregateAffinity(ctx context.Context) (int, error)
	Stats() usecase.Stats
}

// AffinityAggregationWorker periodically aggregates affinity independent of
// turn processing
//
// Architecture assumptions:
// - Single server instance (the ledger lives in process memory)
// - Pending deltas are flushed once more on Stop
type AffinityAggregationWorker struct {
	aggregator AffinityAggregator
	interval   time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewAffinityAggregationWorker creates a new worker for affinity aggregation
func NewAffinityAggregationWorker(aggregator AffinityAggregator, interval time.Duration) *AffinityAggregationWorker {
	if interval <= 0 {
		interval = DefaultAggregationInterval
	}
	return &AffinityAggregationWorker{
		aggregator: aggregator,
		interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background aggregation loop without blocking
func (w *AffinityAggregationWorker) Start(ctx context.Context) error {
	logging.Default().Info("Affinity aggregation worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for the final flush
func (w *AffinityAggregationWorker) Stop() {
	logging.Default().Info("Affinity aggregation worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Affinity aggregation worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *AffinityAggregationWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.aggregate(ctx)

		case <-w.stopCh:
			logging.Default().Info("Affinity aggregation worker received stop signal")
			// the parent context may already be cancelled during shutdown
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			w.aggregate(flushCtx)
			cancel()
			return

		case <-ctx.Done():
			logging.Default().Info("Affinity aggregation worker context cancelled")
			return
		}
	}
}

// aggregate performs a single aggregation cycle
func (w *AffinityAggregationWorker) aggregate(ctx context.Context) {
	startTime := time.Now()

	updated, err := w.aggregator.AggregateAffinity(ctx)
	if err != nil {
		logging.Default().Error("Affinity aggregation failed (will retry next interval)",
			"error", err.Error())
		return
	}

	logging.Default().Info("Affinity aggregation completed",
		append([]any{
			"updated", updated,
			"duration", time.Since(startTime).String(),
		}, w.aggregator.Stats().LogAttrs()...)...)
}
