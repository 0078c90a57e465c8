package services

import (
	"context"

	"go.uber.org/zap"

	"predictsol/internal/custody"
	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

// Receipt is the result of an engine call that moved value for the caller.
type Receipt struct {
	Event    *models.Event        `json:"event"`
	Lamports uint64               `json:"lamports"`
	Fee      *settlement.FeeSplit `json:"fee,omitempty"`
}

// BuyPositions takes a deposit into the event vault, forwards the oracle's
// commission to truthVault, accrues the creator and house commissions and
// mints the net amount of both claim tokens to the caller.
func (s *EventService) BuyPositions(ctx context.Context, caller, address string, deposit uint64, truthVault string) (*Receipt, error) {
	if deposit == 0 {
		return nil, settlement.ErrInvalidAmount
	}

	// The oracle is consulted before the transaction opens.
	linked, err := s.repo.GetEvent(ctx, address)
	if err != nil {
		return nil, err
	}
	if linked.TruthQuestion == "" {
		return nil, settlement.ErrOracleNotLinked
	}
	question, err := s.oracle.Question(ctx, linked.TruthQuestion)
	if err != nil {
		return nil, err
	}
	if question.PayoutVault != truthVault {
		return nil, settlement.ErrVaultMismatch
	}

	split, err := settlement.ComputeFeeSplit(deposit)
	if err != nil {
		return nil, err
	}

	event, err := s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if event.TruthQuestion != question.Address {
			return settlement.ErrQuestionMismatch
		}
		if event.Resolved {
			return settlement.ErrAlreadyResolved
		}
		if s.now().Unix() >= event.BetEndTime {
			return settlement.ErrBettingEnded
		}
		if !event.Bootstrapped() {
			return settlement.ErrNotBootstrapped
		}

		// Counters are computed up front so an overflow rejects the call
		// before any value moves.
		totalCollateral, err := settlement.CheckedAdd(event.TotalCollateralLamports, deposit)
		if err != nil {
			return err
		}
		truthSent, err := settlement.CheckedAdd(event.TotalTruthCommissionSent, split.TruthCut)
		if err != nil {
			return err
		}
		creatorPending, err := settlement.CheckedAdd(event.PendingCreatorCommission, split.CreatorCut)
		if err != nil {
			return err
		}
		housePending, err := settlement.CheckedAdd(event.PendingHouseCommission, split.HouseCut)
		if err != nil {
			return err
		}
		issued, err := settlement.CheckedAdd(event.TotalIssuedPerSide, split.Net)
		if err != nil {
			return err
		}
		outTrue, err := settlement.CheckedAdd(event.OutstandingTrue, split.Net)
		if err != nil {
			return err
		}
		outFalse, err := settlement.CheckedAdd(event.OutstandingFalse, split.Net)
		if err != nil {
			return err
		}

		m := custody.Movement{Event: event.Address, Kind: models.TxKindDeposit}
		if err := sc.vaults.Transfer(ctx, caller, auth.Vault(), deposit, m); err != nil {
			return err
		}
		if split.TruthCut > 0 {
			if err := sc.vaults.Debit(ctx, auth, truthVault, split.TruthCut, models.TxKindTruthCommission); err != nil {
				return err
			}
		}
		if split.Net > 0 {
			for _, side := range []models.Side{models.SideTrue, models.SideFalse} {
				if err := sc.issuer.Mint(ctx, auth, side, caller, split.Net); err != nil {
					return err
				}
			}
		}

		event.TotalCollateralLamports = totalCollateral
		event.TotalTruthCommissionSent = truthSent
		event.PendingCreatorCommission = creatorPending
		event.PendingHouseCommission = housePending
		event.TotalIssuedPerSide = issued
		event.OutstandingTrue = outTrue
		event.OutstandingFalse = outFalse
		return sc.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		s.logger.Debug("buy rejected", zap.String("event", address), zap.String("caller", caller), zap.Error(err))
		return nil, err
	}

	s.logger.Info("positions bought",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.Uint64("deposit", deposit),
		zap.Uint64("fee", split.Fee),
		zap.Uint64("tokens_per_side", split.Net))
	return &Receipt{Event: event, Lamports: deposit, Fee: &split}, nil
}

// RedeemPair burns amount of both TRUE and FALSE from the caller and pays
// the amount back minus the redemption fee. Only allowed while betting is
// open.
func (s *EventService) RedeemPair(ctx context.Context, caller, address string, amount uint64) (*Receipt, error) {
	if amount == 0 {
		return nil, settlement.ErrInvalidAmount
	}
	payout, err := settlement.PayoutAfterFee(amount, s.params.RedemptionFeeBps)
	if err != nil {
		return nil, err
	}

	event, err := s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if event.Resolved {
			return settlement.ErrAlreadyResolved
		}
		if s.now().Unix() >= event.BetEndTime {
			return settlement.ErrBettingEnded
		}
		if !event.Bootstrapped() {
			return settlement.ErrNotBootstrapped
		}

		for _, side := range []models.Side{models.SideTrue, models.SideFalse} {
			held, err := sc.issuer.BalanceOf(ctx, event.MintFor(side), caller)
			if err != nil {
				return err
			}
			if held < amount {
				return settlement.ErrInsufficientTokens
			}
		}

		outTrue, err := settlement.CheckedSub(event.OutstandingTrue, amount)
		if err != nil {
			return err
		}
		outFalse, err := settlement.CheckedSub(event.OutstandingFalse, amount)
		if err != nil {
			return err
		}
		totalCollateral, err := settlement.CheckedSub(event.TotalCollateralLamports, payout)
		if err != nil {
			return err
		}

		for _, side := range []models.Side{models.SideTrue, models.SideFalse} {
			if err := sc.issuer.Burn(ctx, auth, side, caller, amount); err != nil {
				return err
			}
		}
		if payout > 0 {
			if err := sc.vaults.Debit(ctx, auth, caller, payout, models.TxKindPairRedemption); err != nil {
				return err
			}
		}

		event.OutstandingTrue = outTrue
		event.OutstandingFalse = outFalse
		event.TotalCollateralLamports = totalCollateral
		return sc.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		s.logger.Debug("pair redemption rejected", zap.String("event", address), zap.String("caller", caller), zap.Error(err))
		return nil, err
	}

	s.logger.Info("pair redeemed",
		zap.String("event", event.Address),
		zap.String("caller", caller),
		zap.Uint64("amount", amount),
		zap.Uint64("payout", payout))
	return &Receipt{Event: event, Lamports: payout}, nil
}
