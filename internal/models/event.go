package models

import (
	"time"
)

// ResultStatus is written exactly once, when an event is finalized.
type ResultStatus string

const (
	ResultStatusPending                 ResultStatus = "PENDING"
	ResultStatusResolvedWinner          ResultStatus = "RESOLVED_WINNER"
	ResultStatusFinalizedNoVotes        ResultStatus = "FINALIZED_NO_VOTES"
	ResultStatusFinalizedTie            ResultStatus = "FINALIZED_TIE"
	ResultStatusFinalizedBelowThreshold ResultStatus = "FINALIZED_BELOW_THRESHOLD"
)

// WinningOption mirrors the oracle's option numbering.
type WinningOption uint8

const (
	WinningOptionNone  WinningOption = 0
	WinningOptionTrue  WinningOption = 1
	WinningOptionFalse WinningOption = 2
)

// Side selects one of the two claim tokens of an event.
type Side uint8

const (
	SideTrue  Side = 1
	SideFalse Side = 2
)

func (s Side) Valid() bool {
	return s == SideTrue || s == SideFalse
}

func (s Side) String() string {
	switch s {
	case SideTrue:
		return "TRUE"
	case SideFalse:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// Category is stored for display; it never drives settlement behavior.
type Category uint8

const (
	CategoryOther    Category = 0
	CategoryFinance  Category = 1
	CategoryPolitics Category = 2
	CategorySports   Category = 3
)

// EventCounter hands out monotonically increasing event ids per creator
type EventCounter struct {
	Address   string    `gorm:"size:64;primaryKey" json:"address"`
	Creator   string    `gorm:"size:64;not null;uniqueIndex" json:"creator"`
	Count     uint64    `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EventCounter) TableName() string {
	return "event_counters"
}

// Event is the per-event settlement ledger. Address is the derived event key.
type Event struct {
	Address  string   `gorm:"size:64;primaryKey" json:"address"`
	Creator  string   `gorm:"size:64;not null;uniqueIndex:idx_event_creator_id" json:"creator"`
	EventID  uint64   `gorm:"not null;uniqueIndex:idx_event_creator_id" json:"event_id"`
	Title    string   `gorm:"size:150;not null" json:"title"`
	Category Category `gorm:"not null;default:0" json:"category"`

	BetEndTime    int64 `gorm:"not null;index" json:"bet_end_time"`
	CommitEndTime int64 `gorm:"not null" json:"commit_end_time"`
	RevealEndTime int64 `gorm:"not null" json:"reveal_end_time"`
	CreatedAtUnix int64 `gorm:"not null" json:"created_at_unix"`

	TruthQuestion   string `gorm:"size:64" json:"truth_question"`
	CollateralVault string `gorm:"size:64" json:"collateral_vault"`
	TrueMint        string `gorm:"size:64" json:"true_mint"`
	FalseMint       string `gorm:"size:64" json:"false_mint"`

	TotalCollateralLamports  uint64 `gorm:"not null;default:0" json:"total_collateral_lamports"`
	TotalIssuedPerSide       uint64 `gorm:"not null;default:0" json:"total_issued_per_side"`
	OutstandingTrue          uint64 `gorm:"not null;default:0" json:"outstanding_true"`
	OutstandingFalse         uint64 `gorm:"not null;default:0" json:"outstanding_false"`
	TotalTruthCommissionSent uint64 `gorm:"not null;default:0" json:"total_truth_commission_sent"`
	PendingCreatorCommission uint64 `gorm:"not null;default:0" json:"pending_creator_commission"`
	PendingHouseCommission   uint64 `gorm:"not null;default:0" json:"pending_house_commission"`

	Resolved              bool          `gorm:"not null;default:false;index" json:"resolved"`
	ResultStatus          ResultStatus  `gorm:"size:50;not null;default:PENDING;index" json:"result_status"`
	WinningOption         WinningOption `gorm:"not null;default:0" json:"winning_option"`
	WinningPercentBps     uint16        `gorm:"not null;default:0" json:"winning_percent_bps"`
	VotesOption1          uint64        `gorm:"not null;default:0" json:"votes_option_1"`
	VotesOption2          uint64        `gorm:"not null;default:0" json:"votes_option_2"`
	ConsensusThresholdBps uint16        `gorm:"not null;default:8000" json:"consensus_threshold_bps"`
	ResolvedAt            int64         `gorm:"not null;default:0" json:"resolved_at"`

	UnclaimedSwept bool  `gorm:"not null;default:false" json:"unclaimed_swept"`
	SweptAt        int64 `gorm:"not null;default:0" json:"swept_at"`

	Version   uint64    `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

// Bootstrapped reports whether the vault and both mints have been recorded.
func (e *Event) Bootstrapped() bool {
	return e.CollateralVault != "" && e.TrueMint != "" && e.FalseMint != ""
}

// MintFor returns the mint address of a side.
func (e *Event) MintFor(side Side) string {
	if side == SideTrue {
		return e.TrueMint
	}
	return e.FalseMint
}

// Outstanding returns the outstanding claim tokens of a side.
func (e *Event) Outstanding(side Side) uint64 {
	if side == SideTrue {
		return e.OutstandingTrue
	}
	return e.OutstandingFalse
}

// WinningMint returns the mint of the winning side, or "" when there is none.
func (e *Event) WinningMint() string {
	switch e.WinningOption {
	case WinningOptionTrue:
		return e.TrueMint
	case WinningOptionFalse:
		return e.FalseMint
	default:
		return ""
	}
}

// CreateEventRequest is the body of POST /api/events
type CreateEventRequest struct {
	Title                 string `json:"title" binding:"required"`
	Category              uint8  `json:"category"`
	BetEndTime            int64  `json:"bet_end_time" binding:"required"`
	CommitEndTime         int64  `json:"commit_end_time" binding:"required"`
	RevealEndTime         int64  `json:"reveal_end_time" binding:"required"`
	TruthQuestion         string `json:"truth_question"`
	ConsensusThresholdBps uint16 `json:"consensus_threshold_bps"`
}

// BuyPositionsRequest is the body of POST /api/events/:address/buy
type BuyPositionsRequest struct {
	Lamports   uint64 `json:"lamports" binding:"required"`
	TruthVault string `json:"truth_vault" binding:"required"`
}

// AmountRequest is the body of the pair and winner redemption endpoints
type AmountRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
	Mint   string `json:"mint"`
}

// RedeemSideRequest is the body of POST /api/events/:address/redeem-side
type RedeemSideRequest struct {
	Side   Side   `json:"side" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

// FinalizeRequest is the body of POST /api/events/:address/finalize
type FinalizeRequest struct {
	TruthQuestion string `json:"truth_question" binding:"required"`
}

// EventResponse represents an event in API responses
type EventResponse struct {
	Event
	TotalCollateralSOL string `json:"total_collateral_sol"`
	VaultBalance       uint64 `json:"vault_balance_lamports"`
	Phase              string `json:"phase"`
}
