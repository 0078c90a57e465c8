package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind labels one value movement in the settlement ledger.
type TransactionKind string

const (
	TxKindDeposit           TransactionKind = "DEPOSIT"
	TxKindTruthCommission   TransactionKind = "TRUTH_COMMISSION"
	TxKindPairRedemption    TransactionKind = "PAIR_REDEMPTION"
	TxKindWinnerRedemption  TransactionKind = "WINNER_REDEMPTION"
	TxKindSideRedemption    TransactionKind = "SIDE_REDEMPTION"
	TxKindCreatorCommission TransactionKind = "CREATOR_COMMISSION"
	TxKindHouseCommission   TransactionKind = "HOUSE_COMMISSION"
	TxKindSweep             TransactionKind = "SWEEP"
	TxKindVaultClose        TransactionKind = "VAULT_CLOSE"
	TxKindBootstrap         TransactionKind = "BOOTSTRAP"
	TxKindWalletDeposit     TransactionKind = "WALLET_DEPOSIT"
)

// SettlementTransaction records a lamport transfer. Rows are append-only.
type SettlementTransaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Reference    string          `gorm:"size:100;not null;uniqueIndex" json:"reference"`
	EventAddress string          `gorm:"size:64;index" json:"event_address"`
	Kind         TransactionKind `gorm:"size:50;not null;index" json:"kind"`
	From         string          `gorm:"column:from_address;size:64;not null" json:"from"`
	To           string          `gorm:"column:to_address;size:64;not null" json:"to"`
	Lamports     uint64          `gorm:"not null" json:"lamports"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}

func (SettlementTransaction) TableName() string {
	return "settlement_transactions"
}

// WalletDeposit is an on-chain transfer credited to a native account.
type WalletDeposit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Signature string    `gorm:"size:100;not null;uniqueIndex" json:"signature"`
	Wallet    string    `gorm:"size:64;not null;index" json:"wallet"`
	Lamports  uint64    `gorm:"not null" json:"lamports"`
	Slot      uint64    `json:"slot"`
	CreatedAt time.Time `json:"created_at"`
}

func (WalletDeposit) TableName() string {
	return "wallet_deposits"
}

// WalletDepositRequest is the body of POST /api/wallet/deposits
type WalletDepositRequest struct {
	Signature string `json:"signature" binding:"required"`
}
