package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"predictsol/internal/models"
	"predictsol/internal/repository"
	"predictsol/internal/services"
	"predictsol/internal/settlement"
)

const keeperBatchSize = 100

// Settler is the part of the engine the keeper drives.
type Settler interface {
	DueForFinalize(ctx context.Context, c repository.Cursor, limit int) ([]models.Event, error)
	DueForSweep(ctx context.Context, c repository.Cursor, limit int) ([]models.Event, error)
	Finalize(ctx context.Context, caller, address, question string) (*models.Event, error)
	SweepUnclaimedToHouse(ctx context.Context, caller, address string) (*services.Receipt, error)
}

// SettlementKeeper finalizes events once their oracle is ready and sweeps
// them once the sweep delay has passed. The engine still checks every window.
//
// Each tick works one page of due events and remembers where it stopped, so
// events that keep failing cannot hold back the ones behind them.
type SettlementKeeper struct {
	engine    Settler
	caller    string
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once

	mu             sync.Mutex
	finalizeCursor repository.Cursor
	sweepCursor    repository.Cursor
}

// NewSettlementKeeper creates a keeper that acts as caller
func NewSettlementKeeper(engine Settler, caller string, interval time.Duration, logger *zap.Logger) *SettlementKeeper {
	return &SettlementKeeper{
		engine:    engine,
		caller:    caller,
		interval:  interval,
		batchSize: keeperBatchSize,
		logger:    logger.Named("keeper"),
		stopChan:  make(chan struct{}),
	}
}

// Start runs the keeper loop until ctx is cancelled or Stop is called
func (k *SettlementKeeper) Start(ctx context.Context) {
	k.logger.Info("starting settlement keeper", zap.Duration("interval", k.interval))

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.Tick(ctx)
		case <-ctx.Done():
			k.logger.Info("stopping settlement keeper")
			return
		case <-k.stopChan:
			k.logger.Info("stopping settlement keeper")
			return
		}
	}
}

// Stop stops the keeper loop
func (k *SettlementKeeper) Stop() {
	k.stopOnce.Do(func() { close(k.stopChan) })
}

// Tick runs one finalize pass and one sweep pass. It returns how many
// events were finalized and swept.
func (k *SettlementKeeper) Tick(ctx context.Context) (finalized, swept int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.finalizeDue(ctx), k.sweepDue(ctx)
}

func (k *SettlementKeeper) finalizeDue(ctx context.Context) int {
	events, err := k.engine.DueForFinalize(ctx, k.finalizeCursor, k.batchSize)
	if err != nil {
		k.logger.Error("failed to list finalizable events", zap.Error(err))
		return 0
	}
	k.finalizeCursor = repository.NextCursor(events, k.batchSize, func(e models.Event) int64 { return e.BetEndTime })

	count := 0
	for _, event := range events {
		_, err := k.engine.Finalize(ctx, k.caller, event.Address, event.TruthQuestion)
		switch {
		case err == nil:
			count++
		case errors.Is(err, settlement.ErrRevealNotEnded), errors.Is(err, settlement.ErrOracleNotReady):
			// oracle still voting
		default:
			k.logger.Warn("failed to finalize event", zap.String("event", event.Address), zap.Error(err))
		}
	}
	if count > 0 {
		k.logger.Info("finalized events", zap.Int("count", count))
	}
	return count
}

func (k *SettlementKeeper) sweepDue(ctx context.Context) int {
	events, err := k.engine.DueForSweep(ctx, k.sweepCursor, k.batchSize)
	if err != nil {
		k.logger.Error("failed to list sweepable events", zap.Error(err))
		return 0
	}
	k.sweepCursor = repository.NextCursor(events, k.batchSize, func(e models.Event) int64 { return e.ResolvedAt })

	count := 0
	for _, event := range events {
		if _, err := k.engine.SweepUnclaimedToHouse(ctx, k.caller, event.Address); err != nil {
			k.logger.Warn("failed to sweep event", zap.String("event", event.Address), zap.Error(err))
			continue
		}
		count++
	}
	if count > 0 {
		k.logger.Info("swept events", zap.Int("count", count))
	}
	return count
}
