package burns

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/fliphouse/internal/repos/burns"
)

var _ burns.Burns = (*burnsRepo)(nil)

type burnsRepo struct{ db *sql.DB }

func New(db *sql.DB) *burnsRepo {
	return &burnsRepo{db: db}
}

func (r *burnsRepo) Insert(ctx context.Context, txRef string, lamports int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO burns (tx_ref, lamports)
		VALUES ($1, $2)
	`, txRef, lamports)
	if err != nil {
		return fmt.Errorf("insert burn: %w", err)
	}

	return nil
}

func (r *burnsRepo) Latest(ctx context.Context, limit int) ([]burns.Burn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tx_ref, lamports, burned_at
		FROM burns
		ORDER BY burned_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list burns: %w", err)
	}
	defer rows.Close()

	var out []burns.Burn
	for rows.Next() {
		var b burns.Burn
		err = rows.Scan(&b.ID, &b.TxRef, &b.Lamports, &b.BurnedAt)
		if err != nil {
			return nil, fmt.Errorf("scan burn: %w", err)
		}
		out = append(out, b)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate burns: %w", err)
	}

	return out, nil
}
