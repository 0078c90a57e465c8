package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"predictsol/internal/blockchain"
	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

// Store is a database-backed oracle used in development and tests. It keeps
// the address scheme of the on-chain program so linked events look the same.
type Store struct {
	db     *gorm.DB
	addrs  *blockchain.ProgramAddresses
	now    func() time.Time
	logger *zap.Logger
}

func NewStore(db *gorm.DB, addrs *blockchain.ProgramAddresses, now func() time.Time, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		addrs:  addrs,
		now:    now,
		logger: logger.Named("oracle"),
	}
}

// CreateQuestion registers a new question for asker, voting until revealEnd.
func (s *Store) CreateQuestion(ctx context.Context, asker, text string, revealEnd int64) (*models.TruthQuestion, error) {
	askerKey, err := solana.PublicKeyFromBase58(asker)
	if err != nil {
		return nil, settlement.ErrInvalidAddress
	}
	if revealEnd <= s.now().Unix() {
		return nil, settlement.ErrInvalidTimeOrder
	}

	var q *models.TruthQuestion
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.TruthQuestion{}).Where("asker = ?", asker).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}

		address, err := s.addrs.TruthQuestion(askerKey, uint64(count))
		if err != nil {
			return err
		}
		vault, err := s.addrs.TruthVault(address)
		if err != nil {
			return err
		}

		q = &models.TruthQuestion{
			Address:       address.String(),
			QuestionID:    uint64(count),
			Asker:         asker,
			Text:          text,
			RevealEndTime: revealEnd,
			PayoutVault:   vault.String(),
		}
		if err := tx.Create(q).Error; err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("question created", zap.String("question", q.Address), zap.Int64("reveal_end", revealEnd))
	return q, nil
}

// RecordVote adds weight to option 1 or 2 while the reveal window is open.
func (s *Store) RecordVote(ctx context.Context, address string, option uint8, weight uint64) error {
	if option != 1 && option != 2 {
		return settlement.ErrInvalidSide
	}
	if weight == 0 {
		return settlement.ErrInvalidAmount
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.load(ctx, tx, address)
		if err != nil {
			return err
		}
		if q.VotingFinished || s.now().Unix() >= q.RevealEndTime {
			return settlement.ErrBettingEnded
		}

		column, current := "votes_option_1", q.VotesOption1
		if option == 2 {
			column, current = "votes_option_2", q.VotesOption2
		}
		next, err := settlement.CheckedAdd(current, weight)
		if err != nil {
			return err
		}

		res := tx.Model(&models.TruthQuestion{}).
			Where("address = ? AND "+column+" = ?", address, current).
			Update(column, next)
		if res.Error != nil {
			return fmt.Errorf("failed to record vote: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return settlement.ErrConcurrentUpdate
		}
		return nil
	})
}

// FinalizeVoting fixes the winning option once the reveal window has closed.
// Later calls are no-ops.
func (s *Store) FinalizeVoting(ctx context.Context, address string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.load(ctx, tx, address)
		if err != nil {
			return err
		}
		if q.VotingFinished {
			return nil
		}
		if s.now().Unix() < q.RevealEndTime {
			return settlement.ErrRevealNotEnded
		}

		var winner uint8
		switch {
		case q.VotesOption1 > q.VotesOption2:
			winner = 1
		case q.VotesOption2 > q.VotesOption1:
			winner = 2
		}

		err = tx.Model(&models.TruthQuestion{}).
			Where("address = ? AND voting_finished = ?", address, false).
			Updates(map[string]interface{}{
				"winning_option":  winner,
				"voting_finished": true,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to finalize question: %w", err)
		}

		s.logger.Info("voting finalized",
			zap.String("question", address),
			zap.Uint8("winning_option", winner),
			zap.Uint64("votes_option_1", q.VotesOption1),
			zap.Uint64("votes_option_2", q.VotesOption2))
		return nil
	})
}

// Question returns the engine view of a stored question
func (s *Store) Question(ctx context.Context, address string) (*Question, error) {
	q, err := s.load(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return &Question{
		Address:       q.Address,
		ID:            q.QuestionID,
		VotesOption1:  q.VotesOption1,
		VotesOption2:  q.VotesOption2,
		WinningOption: q.WinningOption,
		RevealEndTime: q.RevealEndTime,
		PayoutVault:   q.PayoutVault,
		Finalized:     q.VotingFinished,
	}, nil
}

func (s *Store) load(ctx context.Context, db *gorm.DB, address string) (*models.TruthQuestion, error) {
	var q models.TruthQuestion
	err := db.WithContext(ctx).Where("address = ?", address).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	return &q, nil
}

var _ Oracle = (*Store)(nil)
