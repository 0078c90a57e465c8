package models

import (
	"time"
)

// TruthQuestion is the store-backed oracle question used outside mainnet.
type TruthQuestion struct {
	Address        string    `gorm:"size:64;primaryKey" json:"address"`
	QuestionID     uint64    `gorm:"not null;default:0" json:"question_id"`
	Asker          string    `gorm:"size:64;not null;index" json:"asker"`
	Text           string    `gorm:"size:300" json:"text"`
	VotesOption1   uint64    `gorm:"not null;default:0" json:"votes_option_1"`
	VotesOption2   uint64    `gorm:"not null;default:0" json:"votes_option_2"`
	WinningOption  uint8     `gorm:"not null;default:0" json:"winning_option"`
	RevealEndTime  int64     `gorm:"not null" json:"reveal_end_time"`
	PayoutVault    string    `gorm:"size:64;not null" json:"payout_vault"`
	VotingFinished bool      `gorm:"not null;default:false" json:"voting_finished"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (TruthQuestion) TableName() string {
	return "truth_questions"
}
