package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

// Movement tags a transfer for the settlement ledger.
type Movement struct {
	Event string
	Kind  models.TransactionKind
}

// Vaults is the native value store. Callers bind it to their transaction
// with WithTx so balances and ledger rows commit together with the event.
type Vaults struct {
	db      *gorm.DB
	reserve uint64
}

// NewVaults creates the store. reserve is the keep-alive floor every vault
// must keep while it exists.
func NewVaults(db *gorm.DB, reserve uint64) *Vaults {
	return &Vaults{db: db, reserve: reserve}
}

// WithTx returns a copy that reads and writes through tx
func (v *Vaults) WithTx(tx *gorm.DB) *Vaults {
	return &Vaults{db: tx, reserve: v.reserve}
}

// Reserve is the keep-alive floor
func (v *Vaults) Reserve() uint64 {
	return v.reserve
}

// Balance returns the lamports held at address, 0 if the account does not exist
func (v *Vaults) Balance(ctx context.Context, address string) (uint64, error) {
	var acct models.NativeAccount
	err := v.db.WithContext(ctx).Where("address = ?", address).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return acct.Lamports, nil
}

// Exists reports whether an account row exists for address
func (v *Vaults) Exists(ctx context.Context, address string) (bool, error) {
	var count int64
	err := v.db.WithContext(ctx).Model(&models.NativeAccount{}).Where("address = ?", address).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check account %s: %w", address, err)
	}
	return count > 0, nil
}

// Credit adds lamports that enter the system from outside, such as a
// verified on-chain deposit.
func (v *Vaults) Credit(ctx context.Context, to string, amount uint64, m Movement, from string) error {
	if amount == 0 {
		return settlement.ErrInvalidAmount
	}
	if err := v.credit(ctx, to, amount); err != nil {
		return err
	}
	return v.record(ctx, m, from, to, amount)
}

// Transfer moves lamports out of an account signed by its owner, such as a
// caller paying a deposit into a vault.
func (v *Vaults) Transfer(ctx context.Context, from, to string, amount uint64, m Movement) error {
	if amount == 0 {
		return settlement.ErrInvalidAmount
	}
	if err := v.debit(ctx, from, amount, 0, settlement.ErrInsufficientFunds); err != nil {
		return err
	}
	if err := v.credit(ctx, to, amount); err != nil {
		return err
	}
	return v.record(ctx, m, from, to, amount)
}

// EnsureFunded tops address up to floor from funder. An account already at
// or above floor is left untouched. It returns the amount moved.
func (v *Vaults) EnsureFunded(ctx context.Context, funder, address string, floor uint64, m Movement) (uint64, error) {
	balance, err := v.Balance(ctx, address)
	if err != nil {
		return 0, err
	}
	exists, err := v.Exists(ctx, address)
	if err != nil {
		return 0, err
	}
	if balance >= floor {
		if !exists {
			return 0, v.credit(ctx, address, 0)
		}
		return 0, nil
	}

	topUp := floor - balance
	if err := v.Transfer(ctx, funder, address, topUp, m); err != nil {
		return 0, err
	}
	return topUp, nil
}

// Debit pays amount out of the event vault. The vault must keep at least the
// keep-alive reserve afterwards; otherwise nothing moves.
func (v *Vaults) Debit(ctx context.Context, auth Authority, to string, amount uint64, kind models.TransactionKind) error {
	if !auth.valid() {
		return settlement.ErrAuthorityMismatch
	}
	if amount == 0 {
		return settlement.ErrInvalidAmount
	}
	if err := v.debit(ctx, auth.Vault(), amount, v.reserve, settlement.ErrInsufficientVaultBalance); err != nil {
		return err
	}
	if err := v.credit(ctx, to, amount); err != nil {
		return err
	}
	return v.record(ctx, Movement{Event: auth.Event(), Kind: kind}, auth.Vault(), to, amount)
}

// Surplus is the vault balance above the keep-alive reserve
func (v *Vaults) Surplus(ctx context.Context, auth Authority) (uint64, error) {
	balance, err := v.Balance(ctx, auth.Vault())
	if err != nil {
		return 0, err
	}
	return settlement.SaturatingSub(balance, v.reserve), nil
}

// Close drains the whole vault, reserve included, to `to` and removes the
// account. It returns the amount paid.
func (v *Vaults) Close(ctx context.Context, auth Authority, to string) (uint64, error) {
	if !auth.valid() {
		return 0, settlement.ErrAuthorityMismatch
	}
	balance, err := v.Balance(ctx, auth.Vault())
	if err != nil {
		return 0, err
	}
	if balance > 0 {
		if err := v.debit(ctx, auth.Vault(), balance, 0, settlement.ErrInsufficientVaultBalance); err != nil {
			return 0, err
		}
		if err := v.credit(ctx, to, balance); err != nil {
			return 0, err
		}
		if err := v.record(ctx, Movement{Event: auth.Event(), Kind: models.TxKindVaultClose}, auth.Vault(), to, balance); err != nil {
			return 0, err
		}
	}

	err = v.db.WithContext(ctx).Where("address = ?", auth.Vault()).Delete(&models.NativeAccount{}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to close vault: %w", err)
	}
	return balance, nil
}

// debit subtracts amount from address, failing with insufficient unless the
// account keeps at least floor afterwards.
func (v *Vaults) debit(ctx context.Context, address string, amount, floor uint64, insufficient error) error {
	required, err := settlement.CheckedAdd(amount, floor)
	if err != nil {
		return err
	}
	res := v.db.WithContext(ctx).Model(&models.NativeAccount{}).
		Where("address = ? AND lamports >= ?", address, required).
		Updates(map[string]interface{}{
			"lamports":   gorm.Expr("lamports - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to debit %s: %w", address, res.Error)
	}
	if res.RowsAffected == 0 {
		return insufficient
	}
	return nil
}

func (v *Vaults) credit(ctx context.Context, address string, amount uint64) error {
	balance, err := v.Balance(ctx, address)
	if err != nil {
		return err
	}
	if _, err := settlement.CheckedAdd(balance, amount); err != nil {
		return err
	}

	err = v.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"lamports":   gorm.Expr("native_accounts.lamports + ?", amount),
			"updated_at": time.Now(),
		}),
	}).Create(&models.NativeAccount{Address: address, Lamports: amount}).Error
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", address, err)
	}
	return nil
}

func (v *Vaults) record(ctx context.Context, m Movement, from, to string, amount uint64) error {
	id := uuid.New()
	row := &models.SettlementTransaction{
		ID:           id,
		Reference:    base58.Encode(id[:]),
		EventAddress: m.Event,
		Kind:         m.Kind,
		From:         from,
		To:           to,
		Lamports:     amount,
	}
	if err := v.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to record %s transfer: %w", m.Kind, err)
	}
	return nil
}
