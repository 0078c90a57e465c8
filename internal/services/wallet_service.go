package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"predictsol/internal/blockchain"
	"predictsol/internal/custody"
	"predictsol/internal/lock"
	"predictsol/internal/models"
	"predictsol/internal/repository"
	"predictsol/internal/settlement"
)

// TransferVerifier confirms an on-chain native transfer.
// *blockchain.SolanaClient implements it.
type TransferVerifier interface {
	VerifyTransfer(ctx context.Context, signature, from, to string) (*blockchain.TransferDetails, error)
}

// WalletService funds native accounts from verified on-chain deposits and
// reports what a wallet holds.
type WalletService struct {
	db       *gorm.DB
	repo     *repository.Repository
	vaults   *custody.Vaults
	issuer   *custody.Issuer
	verifier TransferVerifier
	locker   lock.Locker
	treasury string
	logger   *zap.Logger
}

func NewWalletService(
	db *gorm.DB,
	repo *repository.Repository,
	vaults *custody.Vaults,
	issuer *custody.Issuer,
	verifier TransferVerifier,
	locker lock.Locker,
	treasury string,
	logger *zap.Logger,
) *WalletService {
	return &WalletService{
		db:       db,
		repo:     repo,
		vaults:   vaults,
		issuer:   issuer,
		verifier: verifier,
		locker:   locker,
		treasury: treasury,
		logger:   logger.Named("wallet"),
	}
}

// Deposit credits wallet with the lamports that the transaction identified
// by signature moved from wallet to the treasury. Each signature is credited
// once; repeating the call returns the first deposit.
func (w *WalletService) Deposit(ctx context.Context, wallet, signature string) (*models.WalletDeposit, error) {
	if _, err := parseWallet(wallet); err != nil {
		return nil, err
	}
	if w.treasury == "" {
		return nil, fmt.Errorf("%w: no treasury wallet configured", settlement.ErrDepositNotVerified)
	}

	unlock, err := w.locker.Lock(ctx, "deposit:"+signature)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := w.repo.GetWalletDeposit(ctx, signature)
	if err == nil {
		if existing.Wallet != wallet {
			return nil, settlement.ErrDepositCredited
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up deposit: %w", err)
	}

	details, err := w.verifier.VerifyTransfer(ctx, signature, wallet, w.treasury)
	if err != nil {
		w.logger.Warn("deposit verification failed",
			zap.String("wallet", wallet),
			zap.String("signature", signature),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", settlement.ErrDepositNotVerified, err)
	}

	deposit := &models.WalletDeposit{
		ID:        uuid.New(),
		Signature: signature,
		Wallet:    wallet,
		Lamports:  details.Amount,
		Slot:      details.Slot,
	}
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := w.repo.WithTx(tx).CreateWalletDeposit(ctx, deposit); err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		m := custody.Movement{Kind: models.TxKindWalletDeposit}
		return w.vaults.WithTx(tx).Credit(ctx, wallet, details.Amount, m, w.treasury)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("deposit credited",
		zap.String("wallet", wallet),
		zap.String("signature", signature),
		zap.Uint64("lamports", details.Amount),
		zap.Uint64("slot", details.Slot))
	return deposit, nil
}

// Wallet returns the native balance and claim-token holdings of address
func (w *WalletService) Wallet(ctx context.Context, address string) (*models.WalletResponse, error) {
	lamports, err := w.vaults.Balance(ctx, address)
	if err != nil {
		return nil, err
	}
	holdings, err := w.issuer.Holdings(ctx, address)
	if err != nil {
		return nil, err
	}
	return &models.WalletResponse{
		Address:     address,
		Lamports:    lamports,
		SOL:         blockchain.LamportsToSOL(lamports).String(),
		Holdings:    holdings,
		DepositInfo: fmt.Sprintf("send SOL to %s, then submit the transaction signature", w.treasury),
	}, nil
}
