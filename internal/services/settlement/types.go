package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/fliphouse/internal/fair"
	"github.com/fastprodman/fliphouse/internal/repos/burns"
)

// House rules. The multiplier follows from edge and chance: a fair coin paid
// at even odds returns 2x; the house keeps 2.5%, leaving 1.95x.
const (
	winChance        = 0.5
	houseEdge        = 0.025
	payoutMultiplier = (1 - houseEdge) / winChance

	// A single bet may risk at most a tenth of the reserve.
	maxStakeDivisor = 10

	// Lamports kept aside for the payout transaction fee.
	payoutFeeBuffer = 5000
)

var (
	ErrAlreadySettled         = errors.New("signature already settled")
	ErrInsufficientHouseFunds = errors.New("house wallet has insufficient funds for payout")
	ErrPayoutSubmitFailed     = errors.New("payout submission failed")
)

// InvalidRequestError rejects malformed input before any ledger interaction.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// StakeExceedsCapError reports the cap the claimed stake violated.
type StakeExceedsCapError struct {
	Claimed  int64
	MaxStake int64
}

func (e *StakeExceedsCapError) Error() string {
	return fmt.Sprintf("bet exceeds max (10%% of house balance): claimed %d, max %d lamports", e.Claimed, e.MaxStake)
}

// SettleRequest asserts that Signature pays ExpectedLamports to the house
// and supplies the caller's half of the fairness inputs.
type SettleRequest struct {
	Signature        string
	ExpectedLamports int64
	ClientSeed       string
	Nonce            uint64
	Side             fair.Side
}

// Reveal is everything a bettor needs to audit an outcome: the disclosed
// seed, the commitment it hashes to, their own inputs, and the commitment
// for the next round.
type Reveal struct {
	ServerSeed     string
	ServerHash     string
	ClientSeed     string
	Nonce          uint64
	Digest         string
	Result         fair.Side
	NextServerHash string
}

type SettleResult struct {
	Reveal

	Win             bool
	PayoutLamports  int64
	PayoutRef       string
	PayoutConfirmed bool
}

// Summary combines the durable counters with a live reserve read.
type Summary struct {
	TotalWageredLamports int64
	TotalPaidLamports    int64
	LastPayoutRef        *string
	HouseBalanceLamports int64
}

// BurnFeed is the recent burn history plus the countdown to the next
// scheduled burn.
type BurnFeed struct {
	Burns            []burns.Burn
	NextBurnAt       *time.Time
	SecondsRemaining *int64
	IntervalSeconds  int64
}

func (r SettleRequest) validate() error {
	if r.Signature == "" {
		return &InvalidRequestError{Reason: "missing signature"}
	}
	if r.ExpectedLamports <= 0 {
		return &InvalidRequestError{Reason: "invalid expectedLamports"}
	}
	if r.ClientSeed == "" {
		return &InvalidRequestError{Reason: "missing clientSeed"}
	}
	if r.Side != fair.Heads && r.Side != fair.Tails {
		return &InvalidRequestError{Reason: "invalid side"}
	}

	return nil
}
