package stats

import (
	"context"
	"database/sql"
)

// HouseStats are running aggregate counters. They only ever grow; the paid
// total covers both payouts and keeper burns, which draw on the same reserve.
type HouseStats struct {
	TotalWageredLamports int64
	TotalPaidLamports    int64
	LastPayoutRef        *string
}

type Stats interface {
	Get(ctx context.Context) (*HouseStats, error)

	// AddWagered increases the wagered total; called once per settled wager.
	AddWagered(tx *sql.Tx, lamports int64) error

	// AddPaidOut increases the paid total and records the payout reference.
	AddPaidOut(tx *sql.Tx, lamports int64, payoutRef string) error
}
