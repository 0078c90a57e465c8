package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"predictsol/internal/models"
	"predictsol/internal/repository"
	"predictsol/internal/services"
	"predictsol/internal/settlement"
)

type fakeSettler struct {
	mu          sync.Mutex
	finalizable []models.Event
	sweepable   []models.Event
	finalizeErr map[string]error
	finalized   []string
	swept       []string
	callers     []string
}

// page mimics the repository's keyset paging over events sorted by (at, address)
func page(events []models.Event, c repository.Cursor, limit int, at func(models.Event) int64) []models.Event {
	var out []models.Event
	for _, e := range events {
		if !c.IsZero() && (at(e) < c.At || (at(e) == c.At && e.Address <= c.Address)) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out
}

func (f *fakeSettler) DueForFinalize(_ context.Context, c repository.Cursor, limit int) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return page(f.finalizable, c, limit, func(e models.Event) int64 { return e.BetEndTime }), nil
}

func (f *fakeSettler) DueForSweep(_ context.Context, c repository.Cursor, limit int) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return page(f.sweepable, c, limit, func(e models.Event) int64 { return e.ResolvedAt }), nil
}

func (f *fakeSettler) Finalize(_ context.Context, caller, address, question string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callers = append(f.callers, caller)
	if err := f.finalizeErr[address]; err != nil {
		return nil, err
	}
	f.finalized = append(f.finalized, address+"/"+question)
	return &models.Event{Address: address}, nil
}

func (f *fakeSettler) SweepUnclaimedToHouse(_ context.Context, caller, address string) (*services.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callers = append(f.callers, caller)
	if address == "already" {
		return nil, settlement.ErrAlreadySwept
	}
	f.swept = append(f.swept, address)
	return &services.Receipt{}, nil
}

func TestKeeperTick(t *testing.T) {
	engine := &fakeSettler{
		finalizable: []models.Event{
			{Address: "ready", TruthQuestion: "q1"},
			{Address: "voting", TruthQuestion: "q2"},
			{Address: "revealing", TruthQuestion: "q3"},
			{Address: "broken", TruthQuestion: "q4"},
		},
		sweepable: []models.Event{{Address: "old"}, {Address: "already"}},
		finalizeErr: map[string]error{
			"voting":    settlement.ErrOracleNotReady,
			"revealing": settlement.ErrRevealNotEnded,
			"broken":    errors.New("rpc down"),
		},
	}
	keeper := NewSettlementKeeper(engine, "keeper-wallet", time.Minute, zap.NewNop())

	finalized, swept := keeper.Tick(context.Background())
	require.Equal(t, 1, finalized)
	require.Equal(t, 1, swept)
	require.Equal(t, []string{"ready/q1"}, engine.finalized)
	require.Equal(t, []string{"old"}, engine.swept)
	for _, caller := range engine.callers {
		require.Equal(t, "keeper-wallet", caller)
	}
}

func TestKeeperPagesPastFailingEvents(t *testing.T) {
	engine := &fakeSettler{
		finalizable: []models.Event{
			{Address: "junk-a", TruthQuestion: "missing", BetEndTime: 10},
			{Address: "junk-b", TruthQuestion: "missing", BetEndTime: 10},
			{Address: "junk-c", TruthQuestion: "missing", BetEndTime: 20},
			{Address: "honest", TruthQuestion: "q1", BetEndTime: 30},
		},
		finalizeErr: map[string]error{
			"junk-a": settlement.ErrQuestionNotFound,
			"junk-b": settlement.ErrQuestionNotFound,
			"junk-c": settlement.ErrQuestionNotFound,
		},
	}
	keeper := NewSettlementKeeper(engine, "keeper-wallet", time.Minute, zap.NewNop())
	keeper.batchSize = 3

	finalized, _ := keeper.Tick(context.Background())
	require.Equal(t, 0, finalized)

	finalized, _ = keeper.Tick(context.Background())
	require.Equal(t, 1, finalized)
	require.Equal(t, []string{"honest/q1"}, engine.finalized)

	// The short page wraps the scan back to the start.
	engine.finalizable = engine.finalizable[:3]
	finalized, _ = keeper.Tick(context.Background())
	require.Equal(t, 0, finalized)
	require.Len(t, engine.callers, 7)
}

func TestKeeperStops(t *testing.T) {
	keeper := NewSettlementKeeper(&fakeSettler{}, "keeper-wallet", time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		keeper.Start(context.Background())
		close(done)
	}()

	keeper.Stop()
	keeper.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keeper did not stop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	other := NewSettlementKeeper(&fakeSettler{}, "keeper-wallet", time.Millisecond, zap.NewNop())
	go func() {
		other.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keeper did not stop on cancel")
	}
}
