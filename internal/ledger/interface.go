// Package ledger defines the narrow chain-access capability the settlement
// flow needs. Addresses and transaction references cross this boundary as
// base58 strings so callers stay decoupled from any particular SDK.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrTxNotFound means the reference is unknown to the ledger at the
	// required commitment level; callers may retry later.
	ErrTxNotFound = errors.New("transaction not found")
)

// Transfer is one native-transfer instruction inside a transaction.
type Transfer struct {
	Source      string
	Destination string
	Lamports    int64
}

// Transaction is the subset of a finalized ledger transaction the verifier
// reasons about.
type Transaction struct {
	Ref       string
	Failed    bool // recorded on-chain but errored
	FeePayer  string
	Transfers []Transfer
}

// Client is the chain capability surface: confirmed reads plus the single
// payout write. Implementations must be safe for concurrent use.
type Client interface {
	// FetchTransaction returns the confirmed transaction for ref, or
	// ErrTxNotFound if the ledger has not finalized it yet.
	FetchTransaction(ctx context.Context, ref string) (*Transaction, error)

	// Balance returns the confirmed lamport balance of address.
	Balance(ctx context.Context, address string) (int64, error)

	// SubmitTransfer signs and broadcasts a native transfer of lamports
	// from the house account to the given address, returning the
	// transaction reference.
	SubmitTransfer(ctx context.Context, to string, lamports int64) (string, error)

	// ConfirmTransfer reports whether ref has reached confirmed status.
	// A false result with nil error means "not yet".
	ConfirmTransfer(ctx context.Context, ref string) (bool, error)

	// HouseAddress is the base58 address payouts are drawn from and
	// wagers must be paid to.
	HouseAddress() string
}
