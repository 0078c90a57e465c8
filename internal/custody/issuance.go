package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

const claimTokenDecimals = 9

// Issuer mints and burns the two claim tokens of each event.
type Issuer struct {
	db *gorm.DB
}

func NewIssuer(db *gorm.DB) *Issuer {
	return &Issuer{db: db}
}

// WithTx returns a copy that reads and writes through tx
func (i *Issuer) WithTx(tx *gorm.DB) *Issuer {
	return &Issuer{db: tx}
}

// EnsureMint initializes the mint of side for the authority's event. An
// existing mint with the same authority is left as is.
func (i *Issuer) EnsureMint(ctx context.Context, auth Authority, side models.Side) (*models.TokenMint, error) {
	if !auth.valid() {
		return nil, settlement.ErrAuthorityMismatch
	}
	if !side.Valid() {
		return nil, settlement.ErrInvalidSide
	}

	mint, err := i.mint(ctx, auth.Mint(side))
	if err == nil {
		if mint.Event != auth.Event() || mint.Authority != auth.Signer() || mint.Side != side {
			return nil, settlement.ErrAlreadyBootstrapped
		}
		return mint, nil
	}
	if !errors.Is(err, settlement.ErrAccountNotFound) {
		return nil, err
	}

	mint = &models.TokenMint{
		Address:   auth.Mint(side),
		Event:     auth.Event(),
		Side:      side,
		Authority: auth.Signer(),
		Decimals:  claimTokenDecimals,
	}
	if err := i.db.WithContext(ctx).Create(mint).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s mint: %w", side, err)
	}
	return mint, nil
}

// Mint issues amount of side to `to`.
func (i *Issuer) Mint(ctx context.Context, auth Authority, side models.Side, to string, amount uint64) error {
	mint, err := i.authorized(ctx, auth, side)
	if err != nil {
		return err
	}
	if amount == 0 {
		return settlement.ErrInvalidAmount
	}

	supply, err := settlement.CheckedAdd(mint.Supply, amount)
	if err != nil {
		return err
	}
	balance, err := i.BalanceOf(ctx, mint.Address, to)
	if err != nil {
		return err
	}
	if _, err := settlement.CheckedAdd(balance, amount); err != nil {
		return err
	}

	if err := i.setSupply(ctx, mint, supply); err != nil {
		return err
	}
	err = i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mint"}, {Name: "owner"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("token_balances.amount + ?", amount),
			"updated_at": time.Now(),
		}),
	}).Create(&models.TokenBalance{Mint: mint.Address, Owner: to, Amount: amount}).Error
	if err != nil {
		return fmt.Errorf("failed to credit %s tokens: %w", side, err)
	}
	return nil
}

// Burn destroys amount of side held by `from`.
func (i *Issuer) Burn(ctx context.Context, auth Authority, side models.Side, from string, amount uint64) error {
	mint, err := i.authorized(ctx, auth, side)
	if err != nil {
		return err
	}
	if amount == 0 {
		return settlement.ErrInvalidAmount
	}

	supply, err := settlement.CheckedSub(mint.Supply, amount)
	if err != nil {
		return err
	}

	res := i.db.WithContext(ctx).Model(&models.TokenBalance{}).
		Where("mint = ? AND owner = ? AND amount >= ?", mint.Address, from, amount).
		Updates(map[string]interface{}{
			"amount":     gorm.Expr("amount - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to burn %s tokens: %w", side, res.Error)
	}
	if res.RowsAffected == 0 {
		return settlement.ErrInsufficientTokens
	}
	return i.setSupply(ctx, mint, supply)
}

// BalanceOf returns owner's balance of mint
func (i *Issuer) BalanceOf(ctx context.Context, mint, owner string) (uint64, error) {
	var bal models.TokenBalance
	err := i.db.WithContext(ctx).Where("mint = ? AND owner = ?", mint, owner).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load token balance: %w", err)
	}
	return bal.Amount, nil
}

// Holdings lists every non-zero balance of owner
func (i *Issuer) Holdings(ctx context.Context, owner string) ([]models.TokenBalance, error) {
	var balances []models.TokenBalance
	err := i.db.WithContext(ctx).
		Where("owner = ? AND amount > 0", owner).
		Order("mint").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return balances, nil
}

// Supply returns the circulating supply of a mint
func (i *Issuer) Supply(ctx context.Context, mint string) (uint64, error) {
	m, err := i.mint(ctx, mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

func (i *Issuer) authorized(ctx context.Context, auth Authority, side models.Side) (*models.TokenMint, error) {
	if !auth.valid() {
		return nil, settlement.ErrAuthorityMismatch
	}
	if !side.Valid() {
		return nil, settlement.ErrInvalidSide
	}
	mint, err := i.mint(ctx, auth.Mint(side))
	if err != nil {
		return nil, err
	}
	if mint.Event != auth.Event() || mint.Authority != auth.Signer() {
		return nil, settlement.ErrAuthorityMismatch
	}
	return mint, nil
}

func (i *Issuer) mint(ctx context.Context, address string) (*models.TokenMint, error) {
	var mint models.TokenMint
	err := i.db.WithContext(ctx).Where("address = ?", address).First(&mint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mint %s: %w", address, err)
	}
	return &mint, nil
}

func (i *Issuer) setSupply(ctx context.Context, mint *models.TokenMint, supply uint64) error {
	res := i.db.WithContext(ctx).Model(&models.TokenMint{}).
		Where("address = ? AND supply = ?", mint.Address, mint.Supply).
		Updates(map[string]interface{}{
			"supply":     supply,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update supply: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return settlement.ErrConcurrentUpdate
	}
	mint.Supply = supply
	return nil
}
