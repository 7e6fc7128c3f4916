// Package verify checks a claimed house payment against the ledger. It is
// read-only and safe to call repeatedly while a caller polls for
// confirmation; every rejection carries a distinct sentinel so callers can
// tell retryable conditions from permanent ones.
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/fliphouse/internal/ledger"
)

var (
	// ErrNotConfirmed: the ledger has not finalized the transaction yet.
	// Retryable; every other rejection below is permanent for the ref.
	ErrNotConfirmed = errors.New("transaction not found or not confirmed yet")

	ErrOnChainFailure = errors.New("transaction failed on-chain")
	ErrNoPayment      = errors.New("no transfer to house found in transaction")
	ErrAmbiguousPayer = errors.New("multiple payer sources in transaction")
	ErrPayerMismatch  = errors.New("fee payer does not match transfer source")
)

// AmountMismatchError reports both sides of a claimed/found disagreement.
type AmountMismatchError struct {
	Found   int64
	Claimed int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("incorrect amount: found %d lamports, expected %d", e.Found, e.Claimed)
}

// VerifiedWager is only ever produced by Verify after every check passed.
type VerifiedWager struct {
	Payer    string
	Lamports int64
	Ref      string
}

// Verify confirms that ref is a finalized, successful transaction containing
// native transfers to house summing to exactly claimed lamports, all funded
// by a single source that is also the transaction's fee payer.
func Verify(ctx context.Context, lc ledger.Client, house, ref string, claimed int64) (*VerifiedWager, error) {
	tx, err := lc.FetchTransaction(ctx, ref)
	if err != nil {
		if errors.Is(err, ledger.ErrTxNotFound) {
			return nil, ErrNotConfirmed
		}

		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	if tx.Failed {
		return nil, ErrOnChainFailure
	}

	// Sum transfers into the house, tracking distinct sources.
	sources := make(map[string]bool)
	var found int64
	for _, tr := range tx.Transfers {
		if tr.Destination != house {
			continue
		}
		sources[tr.Source] = true
		found += tr.Lamports
	}

	if len(sources) == 0 {
		return nil, ErrNoPayment
	}
	if len(sources) > 1 {
		return nil, ErrAmbiguousPayer
	}

	if found != claimed {
		return nil, &AmountMismatchError{Found: found, Claimed: claimed}
	}

	var payer string
	for s := range sources {
		payer = s
	}

	// A third party must not be able to buy someone else's identity by
	// funding the transfer on their behalf.
	if tx.FeePayer != "" && tx.FeePayer != payer {
		return nil, ErrPayerMismatch
	}

	return &VerifiedWager{
		Payer:    payer,
		Lamports: found,
		Ref:      ref,
	}, nil
}
