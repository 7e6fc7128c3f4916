// Package settlement coordinates wager settlement: idempotency, on-chain
// payment verification, exposure capping, provably-fair outcome derivation,
// payout, and durable record keeping.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fastprodman/fliphouse/internal/fair"
	"github.com/fastprodman/fliphouse/internal/infra/pgutils"
	"github.com/fastprodman/fliphouse/internal/ledger"
	"github.com/fastprodman/fliphouse/internal/repos/burns"
	pgburns "github.com/fastprodman/fliphouse/internal/repos/burns/postgres"
	"github.com/fastprodman/fliphouse/internal/repos/stats"
	pgstats "github.com/fastprodman/fliphouse/internal/repos/stats/postgres"
	"github.com/fastprodman/fliphouse/internal/repos/wagers"
	pgwagers "github.com/fastprodman/fliphouse/internal/repos/wagers/postgres"
	"github.com/fastprodman/fliphouse/internal/verify"
)

type Config struct {
	// Payout confirmation polling budget. Polling exhaustion degrades the
	// response's confirmed flag, never the settlement decision.
	ConfirmAttempts int
	ConfirmInterval time.Duration

	// Keeper burn cadence, used only for the feed countdown.
	BurnInterval time.Duration
}

// Service owns all settlement state: the commitment store, the repositories,
// and the ledger client. One mutex serializes every reveal and the whole
// decide-then-persist sequence, so two requests carrying the same signature
// can never both pass the idempotency gate, and no two requests can settle
// against the same server seed.
type Service struct {
	mu     sync.Mutex
	runTx  func(ctx context.Context, fn func(*sql.Tx) error) error
	wagers wagers.Wagers
	stats  stats.Stats
	burns  burns.Burns
	ledger ledger.Client
	commit *fair.CommitmentStore
	cfg    Config
}

func New(db *sql.DB, lc ledger.Client, cfg Config) *Service {
	return &Service{
		runTx: func(ctx context.Context, fn func(*sql.Tx) error) error {
			return pgutils.WithTx(ctx, db, fn)
		},
		wagers: pgwagers.New(db),
		stats:  pgstats.New(db),
		burns:  pgburns.New(db),
		ledger: lc,
		commit: fair.NewCommitmentStore(),
		cfg:    cfg,
	}
}

// CommitHash returns the public hash of the seed the next settlement or
// preview flip will reveal.
func (s *Service) CommitHash() string {
	return s.commit.CurrentHash()
}

// PreviewFlip derives an outcome with the current seed without any wager
// attached. It rotates the commitment exactly like settlement does, so a
// previewed seed can never back a later bet.
func (s *Service) PreviewFlip(clientSeed string, nonce uint64) (*Reveal, error) {
	if clientSeed == "" {
		return nil, &InvalidRequestError{Reason: "missing clientSeed"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seed, hash := s.commit.Reveal()
	digest, result := fair.Derive(seed, clientSeed, nonce)

	return &Reveal{
		ServerSeed:     seed,
		ServerHash:     hash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Digest:         digest,
		Result:         result,
		NextServerHash: s.commit.CurrentHash(),
	}, nil
}

// Settle runs the full settlement state machine for one wager claim. The
// settlement lock is released before payout-confirmation polling, which only
// affects the PayoutConfirmed flag of the response.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	err := req.validate()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	res, err := s.settleLocked(ctx, req)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if res.Win && res.PayoutRef != "" {
		res.PayoutConfirmed = s.awaitPayout(ctx, res.PayoutRef)
	}

	return res, nil
}

//nolint:cyclop
func (s *Service) settleLocked(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	// Idempotency gate. A payout-pending row also counts: its payout may
	// already be on the wire, so the wager must never be re-decided.
	_, err := s.wagers.Get(ctx, req.Signature)
	if err == nil {
		return nil, ErrAlreadySettled
	}
	if !errors.Is(err, wagers.ErrWagerNotFound) {
		return nil, fmt.Errorf("check processed set: %w", err)
	}

	house := s.ledger.HouseAddress()

	vw, err := verify.Verify(ctx, s.ledger, house, req.Signature, req.ExpectedLamports)
	if err != nil {
		return nil, err
	}

	reserve, err := s.ledger.Balance(ctx, house)
	if err != nil {
		return nil, fmt.Errorf("read house balance: %w", err)
	}
	maxStake := MaxStake(reserve)
	if req.ExpectedLamports > maxStake {
		return nil, &StakeExceedsCapError{Claimed: req.ExpectedLamports, MaxStake: maxStake}
	}

	// The seed is bound to this settlement from here on; rotation happens
	// inside Reveal before anything else can observe the store.
	seed, hash := s.commit.Reveal()
	digest, result := fair.Derive(seed, req.ClientSeed, req.Nonce)
	win := result == req.Side

	reveal := Reveal{
		ServerSeed:     seed,
		ServerHash:     hash,
		ClientSeed:     req.ClientSeed,
		Nonce:          req.Nonce,
		Digest:         digest,
		Result:         result,
		NextServerHash: s.commit.CurrentHash(),
	}

	rec := &wagers.Record{
		Ref:        req.Signature,
		Payer:      vw.Payer,
		Lamports:   vw.Lamports,
		ClientSeed: req.ClientSeed,
		Nonce:      req.Nonce,
		ServerSeed: seed,
		ServerHash: hash,
		Digest:     digest,
		Result:     string(result),
		Side:       string(req.Side),
		Win:        win,
	}

	if !win {
		rec.Status = wagers.StatusSettled

		err = s.runTx(ctx, func(tx *sql.Tx) error {
			err := s.wagers.Insert(tx, rec)
			if err != nil {
				return fmt.Errorf("insert wager: %w", err)
			}

			return s.stats.AddWagered(tx, req.ExpectedLamports)
		})
		if err != nil {
			return nil, fmt.Errorf("persist loss: %w", err)
		}

		return &SettleResult{Reveal: reveal, Win: false}, nil
	}

	payout := int64(math.Floor(float64(req.ExpectedLamports) * payoutMultiplier))

	balance, err := s.ledger.Balance(ctx, house)
	if err != nil {
		return nil, fmt.Errorf("read house balance: %w", err)
	}
	if balance < payout+payoutFeeBuffer {
		return nil, ErrInsufficientHouseFunds
	}

	// Durable payout intent before the broadcast: if we crash between
	// sending and marking settled, the pending row keeps the gate closed
	// and the wager is never paid twice.
	rec.Status = wagers.StatusPayoutPending
	rec.PayoutLamports = payout

	err = s.runTx(ctx, func(tx *sql.Tx) error {
		return s.wagers.Insert(tx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("persist payout intent: %w", err)
	}

	payoutRef, err := s.ledger.SubmitTransfer(ctx, vw.Payer, payout)
	if err != nil {
		// The broadcast is known to have failed, so the ref can be
		// reopened for a retry.
		derr := s.wagers.DeletePending(ctx, req.Signature)
		if derr != nil {
			slog.Error("failed to reopen wager after broadcast failure",
				"signature", req.Signature, "error", derr)
		}

		return nil, fmt.Errorf("%w: %v", ErrPayoutSubmitFailed, err)
	}

	err = s.runTx(ctx, func(tx *sql.Tx) error {
		err := s.wagers.MarkSettled(tx, req.Signature, payoutRef)
		if err != nil {
			return fmt.Errorf("mark settled: %w", err)
		}
		err = s.stats.AddWagered(tx, req.ExpectedLamports)
		if err != nil {
			return fmt.Errorf("add wagered: %w", err)
		}

		return s.stats.AddPaidOut(tx, payout, payoutRef)
	})
	if err != nil {
		// The payout is already on the wire; the pending row still
		// blocks any re-decision, so report the win rather than fail
		// a request whose money has moved.
		slog.Error("payout sent but final settlement write failed",
			"signature", req.Signature, "payout", payoutRef, "error", err)
	}

	return &SettleResult{
		Reveal:         reveal,
		Win:            true,
		PayoutLamports: payout,
		PayoutRef:      payoutRef,
	}, nil
}

// awaitPayout polls for payout confirmation within a hard attempt budget.
func (s *Service) awaitPayout(ctx context.Context, payoutRef string) bool {
	for attempt := 0; attempt < s.cfg.ConfirmAttempts; attempt++ {
		ok, err := s.ledger.ConfirmTransfer(ctx, payoutRef)
		if err != nil {
			slog.Warn("payout confirmation poll failed", "payout", payoutRef, "error", err)
			return false
		}
		if ok {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.cfg.ConfirmInterval):
		}
	}

	return false
}

// HouseExposure returns the live reserve and the largest single stake the
// house will accept against it.
func (s *Service) HouseExposure(ctx context.Context) (reserve, maxStake int64, err error) {
	reserve, err = s.ledger.Balance(ctx, s.ledger.HouseAddress())
	if err != nil {
		return 0, 0, fmt.Errorf("read house balance: %w", err)
	}

	return reserve, MaxStake(reserve), nil
}

// MaxStake is the exposure cap for a given reserve.
func MaxStake(reserve int64) int64 {
	m := reserve / maxStakeDivisor
	if m < 0 {
		return 0
	}
	return m
}

// StatsSummary reads the durable totals plus a live reserve balance.
func (s *Service) StatsSummary(ctx context.Context) (*Summary, error) {
	hs, err := s.stats.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	balance, err := s.ledger.Balance(ctx, s.ledger.HouseAddress())
	if err != nil {
		return nil, fmt.Errorf("read house balance: %w", err)
	}

	return &Summary{
		TotalWageredLamports: hs.TotalWageredLamports,
		TotalPaidLamports:    hs.TotalPaidLamports,
		LastPayoutRef:        hs.LastPayoutRef,
		HouseBalanceLamports: balance,
	}, nil
}

// RecentBurns returns the latest burns and the countdown to the next one,
// anchored at the newest burn plus the configured interval.
func (s *Service) RecentBurns(ctx context.Context, limit int) (*BurnFeed, error) {
	list, err := s.burns.Latest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read burns: %w", err)
	}

	feed := &BurnFeed{
		Burns:           list,
		IntervalSeconds: int64(s.cfg.BurnInterval / time.Second),
	}

	if len(list) > 0 {
		next := list[0].BurnedAt.Add(s.cfg.BurnInterval)
		remaining := int64(math.Ceil(time.Until(next).Seconds()))
		if remaining < 0 {
			remaining = 0
		}
		feed.NextBurnAt = &next
		feed.SecondsRemaining = &remaining
	}

	return feed, nil
}
