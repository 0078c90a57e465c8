package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"predictsol/internal/blockchain"
	"predictsol/internal/custody"
	"predictsol/internal/database"
	"predictsol/internal/lock"
	"predictsol/internal/models"
	"predictsol/internal/oracle"
	"predictsol/internal/repository"
	"predictsol/internal/settlement"
)

const (
	testReserve    = 890_880
	testMintRent   = 1_461_600
	testSweepDelay = time.Hour
	t0             = 1_700_000_000

	startBalance uint64 = 100 * blockchain.LamportsPerSOL
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.Unix(unix, 0)
}

type harness struct {
	svc     *EventService
	oracle  *oracle.Store
	repo    *repository.Repository
	vaults  *custody.Vaults
	issuer  *custody.Issuer
	clock   *fakeClock
	house   string
	creator string
	buyer   string
}

func newHarness(t *testing.T, redemptionFeeBps uint16) *harness {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	addrs, err := blockchain.NewProgramAddresses(blockchain.DefaultProgramID, blockchain.DefaultTruthProgramID)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Unix(t0, 0)}
	h := &harness{
		oracle:  oracle.NewStore(db, addrs, clock.Now, zap.NewNop()),
		repo:    repository.NewRepository(db),
		vaults:  custody.NewVaults(db, testReserve),
		issuer:  custody.NewIssuer(db),
		clock:   clock,
		house:   solana.NewWallet().PublicKey().String(),
		creator: solana.NewWallet().PublicKey().String(),
		buyer:   solana.NewWallet().PublicKey().String(),
	}
	h.svc = NewEventService(db, h.repo, h.vaults, h.issuer, h.oracle, addrs, lock.NewLocal(), Params{
		RedemptionFeeBps: redemptionFeeBps,
		SweepDelay:       testSweepDelay,
		MintRentLamports: testMintRent,
		HouseWallet:      h.house,
	}, zap.NewNop(), WithClock(clock.Now))

	ctx := context.Background()
	for _, wallet := range []string{h.creator, h.buyer} {
		m := custody.Movement{Kind: models.TxKindWalletDeposit}
		require.NoError(t, h.vaults.Credit(ctx, wallet, startBalance, m, "treasury"))
	}
	return h
}

// newEvent creates an oracle question and a bootstrapped event linked to it.
// Betting ends at t0+1000 and the oracle reveal window at t0+3000.
func (h *harness) newEvent(t *testing.T) (*models.Event, *models.TruthQuestion) {
	t.Helper()
	ctx := context.Background()

	q, err := h.oracle.CreateQuestion(ctx, solana.NewWallet().PublicKey().String(), "Will it rain tomorrow?", t0+3000)
	require.NoError(t, err)

	event, err := h.svc.CreateEvent(ctx, h.creator, &models.CreateEventRequest{
		Title:         "Will it rain tomorrow in Lisbon?",
		Category:      uint8(models.CategoryOther),
		BetEndTime:    t0 + 1000,
		CommitEndTime: t0 + 2000,
		RevealEndTime: t0 + 3000,
		TruthQuestion: q.Address,
	})
	require.NoError(t, err)

	event, err = h.svc.BootstrapEventVaultAndMints(ctx, h.creator, event.Address)
	require.NoError(t, err)
	return event, q
}

func (h *harness) balance(t *testing.T, address string) uint64 {
	t.Helper()
	b, err := h.vaults.Balance(context.Background(), address)
	require.NoError(t, err)
	return b
}

func (h *harness) tokens(t *testing.T, mint, owner string) uint64 {
	t.Helper()
	b, err := h.issuer.BalanceOf(context.Background(), mint, owner)
	require.NoError(t, err)
	return b
}

func (h *harness) event(t *testing.T, address string) *models.Event {
	t.Helper()
	ev, err := h.repo.GetEvent(context.Background(), address)
	require.NoError(t, err)
	return ev
}

// requireConsistent checks the ledger-wide properties that must hold after
// every operation. Every vault outflow lowers TotalCollateralLamports except
// the truth cut, which is counted in TotalTruthCommissionSent instead, so the
// vault holds the reserve plus the difference of the two.
func (h *harness) requireConsistent(t *testing.T, address string) {
	t.Helper()
	ctx := context.Background()
	ev := h.event(t, address)

	trueSupply, err := h.issuer.Supply(ctx, ev.TrueMint)
	require.NoError(t, err)
	falseSupply, err := h.issuer.Supply(ctx, ev.FalseMint)
	require.NoError(t, err)
	require.Equal(t, ev.OutstandingTrue, trueSupply)
	require.Equal(t, ev.OutstandingFalse, falseSupply)
	require.LessOrEqual(t, ev.OutstandingTrue, ev.TotalIssuedPerSide)
	require.LessOrEqual(t, ev.OutstandingFalse, ev.TotalIssuedPerSide)

	vault := h.balance(t, ev.CollateralVault)
	require.GreaterOrEqual(t, vault, uint64(testReserve))
	require.Equal(t, ev.TotalCollateralLamports-ev.TotalTruthCommissionSent, vault-testReserve)

	txs, err := h.repo.ListTransactions(ctx, address, 500, 0)
	require.NoError(t, err)
	var in, out uint64
	for _, tx := range txs {
		if tx.To == ev.CollateralVault {
			in += tx.Lamports
		}
		if tx.From == ev.CollateralVault {
			out += tx.Lamports
		}
	}
	require.LessOrEqual(t, out, in)
	require.Equal(t, in-out, vault)
}

func TestAllocateEventCounter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	counter, err := h.svc.AllocateEventCounter(ctx, h.creator)
	require.NoError(t, err)
	require.Zero(t, counter.Count)

	again, err := h.svc.AllocateEventCounter(ctx, h.creator)
	require.NoError(t, err)
	require.Equal(t, counter.Address, again.Address)

	_, err = h.svc.AllocateEventCounter(ctx, "not-a-key")
	require.ErrorIs(t, err, settlement.ErrInvalidAddress)
}

func TestCreateEventAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	req := &models.CreateEventRequest{
		Title:         "Will the bill pass the senate?",
		Category:      uint8(models.CategoryPolitics),
		BetEndTime:    t0 + 100,
		CommitEndTime: t0 + 200,
		RevealEndTime: t0 + 300,
	}
	first, err := h.svc.CreateEvent(ctx, h.creator, req)
	require.NoError(t, err)
	second, err := h.svc.CreateEvent(ctx, h.creator, req)
	require.NoError(t, err)

	require.Equal(t, uint64(0), first.EventID)
	require.Equal(t, uint64(1), second.EventID)
	require.NotEqual(t, first.Address, second.Address)
	require.Equal(t, models.ResultStatusPending, first.ResultStatus)
	require.Equal(t, settlement.DefaultConsensusThresholdBps, first.ConsensusThresholdBps)
	require.False(t, first.Resolved)

	counter, err := h.svc.GetCounter(ctx, h.creator)
	require.NoError(t, err)
	require.Equal(t, uint64(2), counter.Count)
}

func TestCreateEventValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	valid := func() *models.CreateEventRequest {
		return &models.CreateEventRequest{
			Title:         "Will the bill pass the senate?",
			BetEndTime:    t0 + 100,
			CommitEndTime: t0 + 200,
			RevealEndTime: t0 + 300,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *models.CreateEventRequest)
		err    error
	}{
		{"short title", func(r *models.CreateEventRequest) { r.Title = "too short" }, settlement.ErrInvalidTitleLength},
		{"long title", func(r *models.CreateEventRequest) { r.Title = strings.Repeat("x", 151) }, settlement.ErrInvalidTitleLength},
		{"category", func(r *models.CreateEventRequest) { r.Category = 4 }, settlement.ErrInvalidCategory},
		{"bet end in past", func(r *models.CreateEventRequest) { r.BetEndTime = t0 }, settlement.ErrInvalidBetEndTime},
		{"commit before bet end", func(r *models.CreateEventRequest) { r.CommitEndTime = r.BetEndTime }, settlement.ErrInvalidTimeOrder},
		{"reveal before commit", func(r *models.CreateEventRequest) { r.RevealEndTime = r.CommitEndTime }, settlement.ErrInvalidTimeOrder},
		{"threshold", func(r *models.CreateEventRequest) { r.ConsensusThresholdBps = 10_001 }, settlement.ErrInvalidThreshold},
		{"oracle address", func(r *models.CreateEventRequest) { r.TruthQuestion = "???" }, settlement.ErrInvalidAddress},
	}

	for _, tt := range tests {
		req := valid()
		tt.mutate(req)
		_, err := h.svc.CreateEvent(ctx, h.creator, req)
		require.ErrorIs(t, err, tt.err, tt.name)
		require.Equal(t, settlement.KindValidation, settlement.KindOf(err), tt.name)
	}

	// A well-formed address must still name an existing oracle question.
	req := valid()
	req.TruthQuestion = solana.NewWallet().PublicKey().String()
	_, err := h.svc.CreateEvent(ctx, h.creator, req)
	require.ErrorIs(t, err, settlement.ErrQuestionNotFound)

	// Nothing was allocated by the rejected calls.
	_, err = h.svc.GetCounter(ctx, h.creator)
	require.ErrorIs(t, err, settlement.ErrCounterNotFound)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	event, _ := h.newEvent(t)
	require.True(t, event.Bootstrapped())
	require.Equal(t, uint64(testReserve), h.balance(t, event.CollateralVault))
	require.Equal(t, uint64(testMintRent), h.balance(t, event.TrueMint))
	require.Equal(t, uint64(testMintRent), h.balance(t, event.FalseMint))
	require.Zero(t, event.TotalCollateralLamports)

	paid := uint64(testReserve + 2*testMintRent)
	require.Equal(t, startBalance-paid, h.balance(t, h.creator))

	again, err := h.svc.BootstrapEventVaultAndMints(ctx, h.creator, event.Address)
	require.NoError(t, err)
	require.Equal(t, event.CollateralVault, again.CollateralVault)
	require.Equal(t, startBalance-paid, h.balance(t, h.creator))

	_, err = h.svc.BootstrapEventVaultAndMints(ctx, h.buyer, event.Address)
	require.ErrorIs(t, err, settlement.ErrUnauthorized)
}

func TestBuyPositions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	event, q := h.newEvent(t)

	receipt, err := h.svc.BuyPositions(ctx, h.buyer, event.Address, 1_000_000, q.PayoutVault)
	require.NoError(t, err)
	require.Equal(t, settlement.FeeSplit{Fee: 10_000, TruthCut: 3_333, CreatorCut: 3_333, HouseCut: 3_334, Net: 990_000}, *receipt.Fee)

	ev := receipt.Event
	require.Equal(t, uint64(1_000_000), ev.TotalCollateralLamports)
	require.Equal(t, uint64(990_000), ev.TotalIssuedPerSide)
	require.Equal(t, uint64(990_000), ev.OutstandingTrue)
	require.Equal(t, uint64(990_000), ev.OutstandingFalse)
	require.Equal(t, uint64(3_333), ev.TotalTruthCommissionSent)
	require.Equal(t, uint64(3_333), ev.PendingCreatorCommission)
	require.Equal(t, uint64(3_334), ev.PendingHouseCommission)

	require.Equal(t, uint64(990_000), h.tokens(t, ev.TrueMint, h.buyer))
	require.Equal(t, uint64(990_000), h.tokens(t, ev.FalseMint, h.buyer))
	require.Equal(t, uint64(3_333), h.balance(t, q.PayoutVault))
	require.Equal(t, uint64(testReserve+1_000_000-3_333), h.balance(t, ev.CollateralVault))
	require.Equal(t, startBalance-1_000_000, h.balance(t, h.buyer))
	h.requireConsistent(t, ev.Address)
}

func TestBuyPositionsRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	event, q := h.newEvent(t)

	_, err := h.svc.BuyPositions(ctx, h.buyer, event.Address, 0, q.PayoutVault)
	require.ErrorIs(t, err, settlement.ErrInvalidAmount)

	_, err = h.svc.BuyPositions(ctx, h.buyer, event.Address, 1_000, h.house)
	require.ErrorIs(t, err, settlement.ErrVaultMismatch)
	require.Equal(t, settlement.KindAuthorization, settlement.KindOf(err))

	_, err = h.svc.BuyPositions(ctx, h.buyer, event.Address, startBalance+1, q.PayoutVault)
	require.ErrorIs(t, err, settlement.ErrInsufficientFunds)

	// A rejected buy leaves no trace.
	ev := h.event(t, event.Address)
	require.Zero(t, ev.TotalCollateralLamports)
	require.Zero(t, ev.TotalIssuedPerSide)
	require.Equal(t, startBalance, h.balance(t, h.buyer))
	require.Zero(t, h.balance(t, q.PayoutVault))

	h.clock.Set(t0 + 1000)
	_, err = h.svc.BuyPositions(ctx, h.buyer, event.Address, 1_000, q.PayoutVault)
	require.ErrorIs(t, err, settlement.ErrBettingEnded)
}

func TestBuyPositionsRequiresBootstrapAndOracle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	q, err := h.oracle.CreateQuestion(ctx, solana.NewWallet().PublicKey().String(), "Bootstrap check?", t0+3000)
	require.NoError(t, err)

	req := &models.CreateEventRequest{
		Title:         "Unbootstrapped event title",
		BetEndTime:    t0 + 1000,
		CommitEndTime: t0 + 2000,
		RevealEndTime: t0 + 3000,
		TruthQuestion: q.Address,
	}
	linked, err := h.svc.CreateEvent(ctx, h.creator, req)
	require.NoError(t, err)
	_, err = h.svc.BuyPositions(ctx, h.buyer, linked.Address, 1_000, q.PayoutVault)
	require.ErrorIs(t, err, settlement.ErrNotBootstrapped)

	req.TruthQuestion = ""
	unlinked, err := h.svc.CreateEvent(ctx, h.creator, req)
	require.NoError(t, err)
	_, err = h.svc.BootstrapEventVaultAndMints(ctx, h.creator, unlinked.Address)
	require.NoError(t, err)
	_, err = h.svc.BuyPositions(ctx, h.buyer, unlinked.Address, 1_000, q.PayoutVault)
	require.ErrorIs(t, err, settlement.ErrOracleNotLinked)

	_, err = h.svc.BuyPositions(ctx, h.buyer, "missing", 1_000, q.PayoutVault)
	require.ErrorIs(t, err, settlement.ErrEventNotFound)
}

func TestRedeemPair(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	event, q := h.newEvent(t)

	_, err := h.svc.BuyPositions(ctx, h.buyer, event.Address, 1_000_000, q.PayoutVault)
	require.NoError(t, err)

	receipt, err := h.svc.RedeemPair(ctx, h.buyer, event.Address, 400_000)
	require.NoError(t, err)
	require.Equal(t, uint64(400_000), receipt.Lamports)

	ev := receipt.Event
	require.Equal(t, uint64(590_000), ev.OutstandingTrue)
	require.Equal(t, uint64(590_000), ev.OutstandingFalse)
	require.Equal(t, uint64(990_000), ev.TotalIssuedPerSide)
	require.Equal(t, uint64(600_000), ev.TotalCollateralLamports)
	require.Equal(t, startBalance-600_000, h.balance(t, h.buyer))
	require.Equal(t, uint64(590_000), h.tokens(t, ev.TrueMint, h.buyer))
	h.requireConsistent(t, ev.Address)

	// Someone without tokens cannot redeem, and nothing changes.
	_, err = h.svc.RedeemPair(ctx, h.creator, event.Address, 1)
	require.ErrorIs(t, err, settlement.ErrInsufficientTokens)
	require.Equal(t, ev.Version, h.event(t, event.Address).Version)

	h.clock.Set(t0 + 1000)
	_, err = h.svc.RedeemPair(ctx, h.buyer, event.Address, 1)
	require.ErrorIs(t, err, settlement.ErrBettingEnded)
}

func TestRedeemPairAppliesRedemptionFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 100)
	event, q := h.newEvent(t)

	_, err := h.svc.BuyPositions(ctx, h.buyer, event.Address, 1_000_000, q.PayoutVault)
	require.NoError(t, err)

	receipt, err := h.svc.RedeemPair(ctx, h.buyer, event.Address, 100_000)
	require.NoError(t, err)
	require.Equal(t, uint64(99_000), receipt.Lamports)
	require.Equal(t, uint64(1_000_000-99_000), receipt.Event.TotalCollateralLamports)
	h.requireConsistent(t, event.Address)
}

func TestGetEventView(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	event, q := h.newEvent(t)

	_, err := h.svc.BuyPositions(ctx, h.buyer, event.Address, 2_000_000_000, q.PayoutVault)
	require.NoError(t, err)

	view, err := h.svc.GetEvent(ctx, event.Address)
	require.NoError(t, err)
	require.Equal(t, "2", view.TotalCollateralSOL)
	require.Equal(t, "active", view.Phase)
	require.Equal(t, uint64(testReserve+2_000_000_000-6_666_666), view.VaultBalance)

	h.clock.Set(t0 + 1000)
	views, total, err := h.svc.ListEvents(ctx, repository.EventFilter{Creator: h.creator})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "awaiting_resolution", views[0].Phase)
}
