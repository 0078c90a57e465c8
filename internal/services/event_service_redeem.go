package services

import (
	"context"

	"go.uber.org/zap"

	"predictsol/internal/custody"
	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

// RedeemWinner burns winning tokens and pays one lamport per token minus the
// redemption fee.
func (s *EventService) RedeemWinner(ctx context.Context, caller, address, mint string, amount uint64) (*Receipt, error) {
	if amount == 0 {
		return nil, settlement.ErrInvalidAmount
	}
	payout, err := settlement.PayoutAfterFee(amount, s.params.RedemptionFeeBps)
	if err != nil {
		return nil, err
	}

	event, err := s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if !event.Resolved {
			return settlement.ErrNotResolved
		}
		if event.ResultStatus != models.ResultStatusResolvedWinner {
			return settlement.ErrNotWinnerOutcome
		}
		if event.UnclaimedSwept {
			return settlement.ErrAlreadySwept
		}
		if mint == "" || mint != event.WinningMint() {
			return settlement.ErrNotWinningMint
		}

		side := models.Side(event.WinningOption)
		return s.burnAndPay(ctx, sc, event, auth, caller, side, amount, payout, models.TxKindWinnerRedemption)
	})
	if err != nil {
		s.logger.Debug("winner redemption rejected", zap.String("event", address), zap.String("caller", caller), zap.Error(err))
		return nil, err
	}

	s.logger.Info("winner redeemed",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.Uint64("amount", amount),
		zap.Uint64("payout", payout))
	return &Receipt{Event: event, Lamports: payout}, nil
}

// RedeemEitherSide burns tokens of either side after a no-winner outcome and
// pays half of one lamport per token minus the redemption fee.
func (s *EventService) RedeemEitherSide(ctx context.Context, caller, address string, side models.Side, amount uint64) (*Receipt, error) {
	if !side.Valid() {
		return nil, settlement.ErrInvalidSide
	}
	if amount == 0 {
		return nil, settlement.ErrInvalidAmount
	}
	payout, err := settlement.HalfPayoutAfterFee(amount, s.params.RedemptionFeeBps)
	if err != nil {
		return nil, err
	}

	event, err := s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if !event.Resolved {
			return settlement.ErrNotResolved
		}
		if event.ResultStatus == models.ResultStatusResolvedWinner {
			return settlement.ErrWinnerOutcome
		}
		if event.UnclaimedSwept {
			return settlement.ErrAlreadySwept
		}
		return s.burnAndPay(ctx, sc, event, auth, caller, side, amount, payout, models.TxKindSideRedemption)
	})
	if err != nil {
		s.logger.Debug("side redemption rejected", zap.String("event", address), zap.String("caller", caller), zap.Error(err))
		return nil, err
	}

	s.logger.Info("side redeemed",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.String("side", side.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("payout", payout))
	return &Receipt{Event: event, Lamports: payout}, nil
}

// burnAndPay burns amount of side from caller, pays payout out of the vault
// and updates the event's outstanding and collateral counters.
func (s *EventService) burnAndPay(
	ctx context.Context,
	sc *txScope,
	event *models.Event,
	auth custody.Authority,
	caller string,
	side models.Side,
	amount, payout uint64,
	kind models.TransactionKind,
) error {
	if err := sc.issuer.Burn(ctx, auth, side, caller, amount); err != nil {
		return err
	}
	outstanding, err := settlement.CheckedSub(event.Outstanding(side), amount)
	if err != nil {
		return err
	}
	totalCollateral, err := settlement.CheckedSub(event.TotalCollateralLamports, payout)
	if err != nil {
		return err
	}
	if payout > 0 {
		if err := sc.vaults.Debit(ctx, auth, caller, payout, kind); err != nil {
			return err
		}
	}

	if side == models.SideTrue {
		event.OutstandingTrue = outstanding
	} else {
		event.OutstandingFalse = outstanding
	}
	event.TotalCollateralLamports = totalCollateral
	return sc.repo.UpdateEvent(ctx, event)
}
