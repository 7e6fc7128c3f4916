package wagers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/fliphouse/internal/repos/wagers"
)

var _ wagers.Wagers = (*wagersRepo)(nil)

type wagersRepo struct{ db *sql.DB }

func New(db *sql.DB) *wagersRepo {
	return &wagersRepo{db: db}
}

func (r *wagersRepo) Get(ctx context.Context, ref string) (*wagers.Record, error) {
	rec := wagers.Record{Ref: ref}

	err := r.db.QueryRowContext(ctx, `
		SELECT payer, lamports, client_seed, nonce, server_seed, server_hash,
		       digest, result, side, win, status, payout_lamports, payout_ref, created_at
		FROM wagers
		WHERE transaction_ref = $1
	`, ref).Scan(
		&rec.Payer, &rec.Lamports, &rec.ClientSeed, &rec.Nonce, &rec.ServerSeed,
		&rec.ServerHash, &rec.Digest, &rec.Result, &rec.Side, &rec.Win,
		&rec.Status, &rec.PayoutLamports, &rec.PayoutRef, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wagers.ErrWagerNotFound
		}

		return nil, fmt.Errorf("get wager: %w", err)
	}

	return &rec, nil
}

func (r *wagersRepo) Insert(tx *sql.Tx, rec *wagers.Record) error {
	_, err := tx.Exec(`
		INSERT INTO wagers (
			transaction_ref, payer, lamports, client_seed, nonce,
			server_seed, server_hash, digest, result, side, win,
			status, payout_lamports, payout_ref
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rec.Ref, rec.Payer, rec.Lamports, rec.ClientSeed, rec.Nonce,
		rec.ServerSeed, rec.ServerHash, rec.Digest, rec.Result, rec.Side,
		rec.Win, rec.Status, rec.PayoutLamports, rec.PayoutRef,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return wagers.ErrDuplicateWager
			}
		}

		return fmt.Errorf("insert wager: %w", err)
	}

	return nil
}

func (r *wagersRepo) MarkSettled(tx *sql.Tx, ref, payoutRef string) error {
	res, err := tx.Exec(`
		UPDATE wagers
		SET status = $2, payout_ref = $3
		WHERE transaction_ref = $1
		  AND status = $4
	`, ref, wagers.StatusSettled, payoutRef, wagers.StatusPayoutPending)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return wagers.ErrWagerNotFound
	}

	return nil
}

func (r *wagersRepo) DeletePending(ctx context.Context, ref string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM wagers
		WHERE transaction_ref = $1
		  AND status = $2
	`, ref, wagers.StatusPayoutPending)
	if err != nil {
		return fmt.Errorf("delete pending wager: %w", err)
	}

	return nil
}
