package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"predictsol/internal/blockchain"
	"predictsol/internal/lock"
	"predictsol/internal/settlement"
)

type fakeVerifier struct {
	transfers map[string]*blockchain.TransferDetails
	calls     int
}

func (f *fakeVerifier) VerifyTransfer(_ context.Context, signature, from, to string) (*blockchain.TransferDetails, error) {
	f.calls++
	d, ok := f.transfers[signature]
	if !ok {
		return nil, blockchain.ErrTransactionNotFound
	}
	if d.Sender != from || d.Receiver != to {
		return nil, blockchain.ErrTransferMismatch
	}
	return d, nil
}

func TestWalletDepositCreditsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	treasury := solana.NewWallet().PublicKey().String()
	wallet := solana.NewWallet().PublicKey().String()

	verifier := &fakeVerifier{transfers: map[string]*blockchain.TransferDetails{
		"sig-1": {Signature: "sig-1", Sender: wallet, Receiver: treasury, Amount: 5_000_000, Slot: 42},
	}}
	svc := NewWalletService(h.svc.db, h.repo, h.vaults, h.issuer, verifier, lock.NewLocal(), treasury, zap.NewNop())

	deposit, err := svc.Deposit(ctx, wallet, "sig-1")
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000), deposit.Lamports)
	require.Equal(t, uint64(42), deposit.Slot)

	again, err := svc.Deposit(ctx, wallet, "sig-1")
	require.NoError(t, err)
	require.Equal(t, deposit.ID, again.ID)
	require.Equal(t, 1, verifier.calls)

	view, err := svc.Wallet(ctx, wallet)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000), view.Lamports)
	require.Equal(t, "0.005", view.SOL)
	require.Empty(t, view.Holdings)

	other := solana.NewWallet().PublicKey().String()
	_, err = svc.Deposit(ctx, other, "sig-1")
	require.ErrorIs(t, err, settlement.ErrDepositCredited)
}

func TestWalletDepositRejectsUnverified(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	treasury := solana.NewWallet().PublicKey().String()
	wallet := solana.NewWallet().PublicKey().String()

	verifier := &fakeVerifier{transfers: map[string]*blockchain.TransferDetails{
		"sig-other": {Sender: solana.NewWallet().PublicKey().String(), Receiver: treasury, Amount: 1},
	}}
	svc := NewWalletService(h.svc.db, h.repo, h.vaults, h.issuer, verifier, lock.NewLocal(), treasury, zap.NewNop())

	_, err := svc.Deposit(ctx, wallet, "missing")
	require.ErrorIs(t, err, settlement.ErrDepositNotVerified)
	require.True(t, errors.Is(err, settlement.ErrDepositNotVerified))
	require.Equal(t, settlement.KindValidation, settlement.KindOf(err))

	_, err = svc.Deposit(ctx, wallet, "sig-other")
	require.ErrorIs(t, err, settlement.ErrDepositNotVerified)

	_, err = svc.Deposit(ctx, "bad", "sig-other")
	require.ErrorIs(t, err, settlement.ErrInvalidAddress)

	view, err := svc.Wallet(ctx, wallet)
	require.NoError(t, err)
	require.Zero(t, view.Lamports)
}

func TestWalletShowsHoldings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	event, q := h.newEvent(t)
	_, err := h.svc.BuyPositions(ctx, h.buyer, event.Address, 1_000_000, q.PayoutVault)
	require.NoError(t, err)

	svc := NewWalletService(h.svc.db, h.repo, h.vaults, h.issuer, &fakeVerifier{}, lock.NewLocal(), "treasury", zap.NewNop())
	view, err := svc.Wallet(ctx, h.buyer)
	require.NoError(t, err)
	require.Len(t, view.Holdings, 2)
	for _, holding := range view.Holdings {
		require.Equal(t, uint64(990_000), holding.Amount)
	}
}
