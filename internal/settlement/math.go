package settlement

import (
	"math/bits"

	"predictsol/internal/models"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator uint64 = 10_000

	// TradeFeeBps is the fee taken from every deposit (1%).
	TradeFeeBps uint64 = 100

	MinTitleLength = 10
	MaxTitleLength = 150
	MaxCategory    = uint8(models.CategorySports)

	DefaultConsensusThresholdBps uint16 = 8_000
	TieWinningPercentBps         uint16 = 5_000
)

// CheckedAdd returns a+b or ErrMathOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrMathOverflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrMathOverflow
	}
	return diff, nil
}

// MulDiv returns floor(a*b/c) using a 128-bit intermediate, so it only
// fails when the quotient itself does not fit in 64 bits.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrMathOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrMathOverflow
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo, nil
}

// SaturatingSub returns a-b floored at zero. Only the sweep amount uses it.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// FeeSplit is the breakdown of one deposit.
type FeeSplit struct {
	Fee        uint64 `json:"fee"`
	TruthCut   uint64 `json:"truth_cut"`
	CreatorCut uint64 `json:"creator_cut"`
	HouseCut   uint64 `json:"house_cut"`
	Net        uint64 `json:"net"`
}

// ComputeFeeSplit takes the 1% trade fee from deposit and splits it in thirds.
// Truth and creator each get floor(fee/3); the house gets what is left, so
// rounding dust always accrues to the house.
func ComputeFeeSplit(deposit uint64) (FeeSplit, error) {
	fee, err := MulDiv(deposit, TradeFeeBps, BpsDenominator)
	if err != nil {
		return FeeSplit{}, err
	}

	third := fee / 3
	twoThirds, err := CheckedAdd(third, third)
	if err != nil {
		return FeeSplit{}, err
	}
	house, err := CheckedSub(fee, twoThirds)
	if err != nil {
		return FeeSplit{}, err
	}
	net, err := CheckedSub(deposit, fee)
	if err != nil {
		return FeeSplit{}, err
	}

	return FeeSplit{
		Fee:        fee,
		TruthCut:   third,
		CreatorCut: third,
		HouseCut:   house,
		Net:        net,
	}, nil
}

// RedemptionFee is floor(amount * feeBps / 10000).
func RedemptionFee(amount uint64, feeBps uint16) (uint64, error) {
	return MulDiv(amount, uint64(feeBps), BpsDenominator)
}

// PayoutAfterFee is amount minus the redemption fee.
func PayoutAfterFee(amount uint64, feeBps uint16) (uint64, error) {
	fee, err := RedemptionFee(amount, feeBps)
	if err != nil {
		return 0, err
	}
	return CheckedSub(amount, fee)
}

// HalfPayoutAfterFee is the single-side payout used when no winner was
// declared. The division truncates, so an odd payout loses one lamport
// relative to the winner path.
func HalfPayoutAfterFee(amount uint64, feeBps uint16) (uint64, error) {
	payout, err := PayoutAfterFee(amount, feeBps)
	if err != nil {
		return 0, err
	}
	return payout / 2, nil
}

// Outcome is the classification written to an event at finalization.
type Outcome struct {
	Status            models.ResultStatus
	WinningOption     models.WinningOption
	WinningPercentBps uint16
}

// ClassifyOutcome maps oracle tallies to a result. Checks run in order:
// no votes, oracle tie, then the winner's share against the threshold.
func ClassifyOutcome(votes1, votes2 uint64, oracleWinner uint8, thresholdBps uint16) (Outcome, error) {
	total, err := CheckedAdd(votes1, votes2)
	if err != nil {
		return Outcome{}, err
	}
	if total == 0 {
		return Outcome{
			Status:        models.ResultStatusFinalizedNoVotes,
			WinningOption: models.WinningOptionNone,
		}, nil
	}

	var winningVotes uint64
	switch models.WinningOption(oracleWinner) {
	case models.WinningOptionNone:
		return Outcome{
			Status:            models.ResultStatusFinalizedTie,
			WinningOption:     models.WinningOptionNone,
			WinningPercentBps: TieWinningPercentBps,
		}, nil
	case models.WinningOptionTrue:
		winningVotes = votes1
	case models.WinningOptionFalse:
		winningVotes = votes2
	default:
		return Outcome{}, ErrOracleNotReady
	}

	percent, err := MulDiv(winningVotes, BpsDenominator, total)
	if err != nil {
		return Outcome{}, err
	}
	if percent > BpsDenominator {
		percent = BpsDenominator
	}

	if percent < uint64(thresholdBps) {
		return Outcome{
			Status:            models.ResultStatusFinalizedBelowThreshold,
			WinningOption:     models.WinningOptionNone,
			WinningPercentBps: uint16(percent),
		}, nil
	}

	return Outcome{
		Status:            models.ResultStatusResolvedWinner,
		WinningOption:     models.WinningOption(oracleWinner),
		WinningPercentBps: uint16(percent),
	}, nil
}

// ValidateSchedule checks the creation-time rules of an event.
func ValidateSchedule(title string, category uint8, now, betEnd, commitEnd, revealEnd int64) error {
	if n := len(title); n < MinTitleLength || n > MaxTitleLength {
		return ErrInvalidTitleLength
	}
	if category > MaxCategory {
		return ErrInvalidCategory
	}
	if betEnd <= now {
		return ErrInvalidBetEndTime
	}
	if betEnd >= commitEnd || commitEnd >= revealEnd {
		return ErrInvalidTimeOrder
	}
	return nil
}
