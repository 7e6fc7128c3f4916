package stats

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/fliphouse/internal/repos/stats"
)

var _ stats.Stats = (*statsRepo)(nil)

// The stats table holds exactly one row, seeded by migration.
type statsRepo struct{ db *sql.DB }

func New(db *sql.DB) *statsRepo {
	return &statsRepo{db: db}
}

func (r *statsRepo) Get(ctx context.Context) (*stats.HouseStats, error) {
	var hs stats.HouseStats

	err := r.db.QueryRowContext(ctx, `
		SELECT total_wagered_lamports, total_paid_lamports, last_payout_ref
		FROM house_stats
		WHERE id = 1
	`).Scan(&hs.TotalWageredLamports, &hs.TotalPaidLamports, &hs.LastPayoutRef)
	if err != nil {
		return nil, fmt.Errorf("get house stats: %w", err)
	}

	return &hs, nil
}

func (r *statsRepo) AddWagered(tx *sql.Tx, lamports int64) error {
	_, err := tx.Exec(`
		UPDATE house_stats
		SET total_wagered_lamports = total_wagered_lamports + $1
		WHERE id = 1
	`, lamports)
	if err != nil {
		return fmt.Errorf("add wagered: %w", err)
	}

	return nil
}

func (r *statsRepo) AddPaidOut(tx *sql.Tx, lamports int64, payoutRef string) error {
	_, err := tx.Exec(`
		UPDATE house_stats
		SET total_paid_lamports = total_paid_lamports + $1,
		    last_payout_ref = $2
		WHERE id = 1
	`, lamports, payoutRef)
	if err != nil {
		return fmt.Errorf("add paid out: %w", err)
	}

	return nil
}
