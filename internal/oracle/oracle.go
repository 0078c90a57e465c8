// Package oracle adapts vote oracles to the settlement engine.
package oracle

import (
	"context"
)

// Question is the view of an oracle question the engine relies on.
type Question struct {
	Address       string `json:"address"`
	ID            uint64 `json:"id"`
	VotesOption1  uint64 `json:"votes_option_1"`
	VotesOption2  uint64 `json:"votes_option_2"`
	WinningOption uint8  `json:"winning_option"` // 0 = tie or undetermined
	RevealEndTime int64  `json:"reveal_end_time"`
	PayoutVault   string `json:"payout_vault"`
	Finalized     bool   `json:"finalized"`
}

// Oracle reports vote tallies for linked questions. FinalizeVoting must be
// idempotent and leave the tallies stable once it succeeds after the
// question's reveal window.
type Oracle interface {
	Question(ctx context.Context, address string) (*Question, error)
	FinalizeVoting(ctx context.Context, address string) error
}
