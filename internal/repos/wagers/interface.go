package wagers

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrDuplicateWager = errors.New("wager already recorded")
	ErrWagerNotFound  = errors.New("wager not found")
)

// Status of a wager record. A row exists for every decided wager; win rows
// pass through payout_pending between the payout-intent commit and the
// broadcast result.
type Status string

const (
	StatusPayoutPending Status = "payout_pending"
	StatusSettled       Status = "settled"
)

// Record is one settled (or payout-pending) wager. The transaction reference
// is the primary key, which is what makes settlement at-most-once. Rows are
// append-only except for the pending→settled transition.
type Record struct {
	Ref        string
	Payer      string
	Lamports   int64
	ClientSeed string
	Nonce      uint64
	ServerSeed string
	ServerHash string
	Digest     string
	Result     string
	Side       string
	Win        bool
	Status     Status

	PayoutLamports int64
	PayoutRef      *string

	CreatedAt time.Time
}

type Wagers interface {
	// Get returns the record for ref or ErrWagerNotFound.
	Get(ctx context.Context, ref string) (*Record, error)

	// Insert appends a record; a reused ref yields ErrDuplicateWager.
	Insert(tx *sql.Tx, rec *Record) error

	// MarkSettled moves a payout-pending record to settled with its
	// payout reference.
	MarkSettled(tx *sql.Tx, ref, payoutRef string) error

	// DeletePending removes a payout-pending record whose broadcast is
	// known to have failed, re-opening the ref for a retry.
	DeletePending(ctx context.Context, ref string) error
}
