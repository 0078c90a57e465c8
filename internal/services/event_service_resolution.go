package services

import (
	"context"

	"go.uber.org/zap"

	"predictsol/internal/custody"
	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

// Finalize resolves an event from its linked oracle question. Anyone may
// call it once betting has ended and the oracle's reveal window has closed.
// The accrued house commission is paid out in the same call.
func (s *EventService) Finalize(ctx context.Context, caller, address, question string) (*models.Event, error) {
	unlock, err := s.locker.Lock(ctx, eventLockKey(address))
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.repo.GetEvent(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := s.checkFinalizable(current, question); err != nil {
		return nil, err
	}

	// Oracle calls stay outside the transaction; the event lock already
	// keeps other engine calls on this event out.
	q, err := s.oracle.Question(ctx, question)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() < q.RevealEndTime {
		return nil, settlement.ErrRevealNotEnded
	}
	if !q.Finalized {
		if err := s.oracle.FinalizeVoting(ctx, question); err != nil {
			return nil, err
		}
		if q, err = s.oracle.Question(ctx, question); err != nil {
			return nil, err
		}
	}
	if !q.Finalized {
		return nil, settlement.ErrOracleNotReady
	}

	outcome, err := settlement.ClassifyOutcome(q.VotesOption1, q.VotesOption2, q.WinningOption, current.ConsensusThresholdBps)
	if err != nil {
		return nil, err
	}

	var houseCut uint64
	var event *models.Event
	err = s.inTx(ctx, func(sc *txScope) error {
		ev, err := sc.repo.GetEvent(ctx, address)
		if err != nil {
			return err
		}
		if err := s.checkFinalizable(ev, question); err != nil {
			return err
		}

		houseCut = ev.PendingHouseCommission
		if houseCut > 0 {
			auth, err := custody.NewAuthority(s.addrs, ev.Address)
			if err != nil {
				return err
			}
			totalCollateral, err := settlement.CheckedSub(ev.TotalCollateralLamports, houseCut)
			if err != nil {
				return err
			}
			if err := sc.vaults.Debit(ctx, auth, s.params.HouseWallet, houseCut, models.TxKindHouseCommission); err != nil {
				return err
			}
			ev.TotalCollateralLamports = totalCollateral
			ev.PendingHouseCommission = 0
		}

		ev.Resolved = true
		ev.ResultStatus = outcome.Status
		ev.WinningOption = outcome.WinningOption
		ev.WinningPercentBps = outcome.WinningPercentBps
		ev.VotesOption1 = q.VotesOption1
		ev.VotesOption2 = q.VotesOption2
		ev.ResolvedAt = s.now().Unix()
		if err := sc.repo.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event finalized",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.String("status", string(event.ResultStatus)),
		zap.Uint8("winning_option", uint8(event.WinningOption)),
		zap.Uint16("winning_percent_bps", event.WinningPercentBps),
		zap.Uint64("house_commission", houseCut))
	return event, nil
}

func (s *EventService) checkFinalizable(event *models.Event, question string) error {
	if event.Resolved {
		return settlement.ErrAlreadyResolved
	}
	if s.now().Unix() < event.BetEndTime {
		return settlement.ErrBettingStillActive
	}
	if event.TruthQuestion == "" {
		return settlement.ErrOracleNotLinked
	}
	if event.TruthQuestion != question {
		return settlement.ErrQuestionMismatch
	}
	return nil
}
