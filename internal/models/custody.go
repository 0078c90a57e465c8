package models

import (
	"time"
)

// NativeAccount holds lamports for a wallet, vault, house or oracle vault.
type NativeAccount struct {
	Address   string    `gorm:"size:64;primaryKey" json:"address"`
	Lamports  uint64    `gorm:"not null;default:0" json:"lamports"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NativeAccount) TableName() string {
	return "native_accounts"
}

// TokenMint is one of the two claim-token mints of an event.
type TokenMint struct {
	Address   string    `gorm:"size:64;primaryKey" json:"address"`
	Event     string    `gorm:"size:64;not null;index" json:"event"`
	Side      Side      `gorm:"not null" json:"side"`
	Authority string    `gorm:"size:64;not null" json:"authority"`
	Decimals  uint8     `gorm:"not null;default:9" json:"decimals"`
	Supply    uint64    `gorm:"not null;default:0" json:"supply"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TokenMint) TableName() string {
	return "token_mints"
}

// TokenBalance is a holder's balance of one mint.
type TokenBalance struct {
	Mint      string    `gorm:"size:64;primaryKey" json:"mint"`
	Owner     string    `gorm:"size:64;primaryKey;index" json:"owner"`
	Amount    uint64    `gorm:"not null;default:0" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TokenBalance) TableName() string {
	return "token_balances"
}

// WalletResponse is returned by GET /api/wallet
type WalletResponse struct {
	Address     string         `json:"address"`
	Lamports    uint64         `json:"lamports"`
	SOL         string         `json:"sol"`
	Holdings    []TokenBalance `json:"holdings"`
	DepositInfo string         `json:"deposit_info,omitempty"`
}
