package services

import (
	"context"

	"go.uber.org/zap"

	"predictsol/internal/custody"
	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

// ClaimCreatorCommission pays the creator's accrued commission once betting
// has ended.
func (s *EventService) ClaimCreatorCommission(ctx context.Context, caller, address string) (*Receipt, error) {
	var claimed uint64
	event, err := s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if caller != event.Creator {
			return settlement.ErrUnauthorized
		}
		if s.now().Unix() < event.BetEndTime {
			return settlement.ErrBettingStillActive
		}
		if event.PendingCreatorCommission == 0 {
			return settlement.ErrNothingToClaim
		}

		claimed = event.PendingCreatorCommission
		totalCollateral, err := settlement.CheckedSub(event.TotalCollateralLamports, claimed)
		if err != nil {
			return err
		}
		if err := sc.vaults.Debit(ctx, auth, caller, claimed, models.TxKindCreatorCommission); err != nil {
			return err
		}

		event.PendingCreatorCommission = 0
		event.TotalCollateralLamports = totalCollateral
		return sc.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("creator commission claimed",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.Uint64("amount", claimed))
	return &Receipt{Event: event, Lamports: claimed}, nil
}

// SweepUnclaimedToHouse moves everything above the keep-alive reserve to the
// house wallet once the sweep delay after resolution has elapsed. Commissions
// still pending are forfeited with it, and per-token redemption closes for
// good.
func (s *EventService) SweepUnclaimedToHouse(ctx context.Context, caller, address string) (*Receipt, error) {
	var swept uint64
	event, err := s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if !event.Resolved {
			return settlement.ErrNotResolved
		}
		if event.UnclaimedSwept {
			return settlement.ErrAlreadySwept
		}
		now := s.now().Unix()
		if !s.sweepWindowOpen(event, now) {
			return settlement.ErrSweepTooEarly
		}

		if event.Bootstrapped() {
			surplus, err := sc.vaults.Surplus(ctx, auth)
			if err != nil {
				return err
			}
			swept = surplus
		}
		if swept > 0 {
			if err := sc.vaults.Debit(ctx, auth, s.params.HouseWallet, swept, models.TxKindSweep); err != nil {
				return err
			}
		}

		event.TotalCollateralLamports = settlement.SaturatingSub(event.TotalCollateralLamports, swept)
		event.PendingCreatorCommission = 0
		event.PendingHouseCommission = 0
		event.UnclaimedSwept = true
		event.SweptAt = now
		return sc.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("unclaimed value swept",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.Uint64("amount", swept))
	return &Receipt{Event: event, Lamports: swept}, nil
}

// DeleteEvent closes the vault, paying what is left to the creator, and
// removes the event record.
func (s *EventService) DeleteEvent(ctx context.Context, caller, address string) (*Receipt, error) {
	var refunded uint64
	event, err := s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if caller != event.Creator {
			return settlement.ErrUnauthorized
		}
		if !event.Resolved || event.ResolvedAt == 0 {
			return settlement.ErrNotResolved
		}
		if event.PendingCreatorCommission != 0 || event.PendingHouseCommission != 0 {
			return settlement.ErrPendingCommissions
		}

		windowOpen := s.sweepWindowOpen(event, s.now().Unix())
		if !(windowOpen && event.UnclaimedSwept) {
			if err := checkCleared(event); err != nil {
				return err
			}
		}

		if event.Bootstrapped() {
			surplus, err := sc.vaults.Surplus(ctx, auth)
			if err != nil {
				return err
			}
			if surplus > 0 {
				return settlement.ErrVaultNotEmpty
			}
			if refunded, err = sc.vaults.Close(ctx, auth, event.Creator); err != nil {
				return err
			}
		}
		return sc.repo.DeleteEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event deleted",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.Uint64("refunded", refunded))
	return &Receipt{Event: event, Lamports: refunded}, nil
}

// checkCleared requires every redeemable token to be gone. After a winner
// outcome the losing side is worthless and never needs clearing.
func checkCleared(event *models.Event) error {
	if event.ResultStatus == models.ResultStatusResolvedWinner {
		if event.Outstanding(models.Side(event.WinningOption)) != 0 {
			return settlement.ErrOutstandingTokens
		}
		return nil
	}
	if event.OutstandingTrue != 0 || event.OutstandingFalse != 0 {
		return settlement.ErrOutstandingTokens
	}
	return nil
}
