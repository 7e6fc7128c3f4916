package wagers

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/fastprodman/fliphouse/internal/infra/pgtestutil"
	"github.com/fastprodman/fliphouse/internal/repos/wagers"
)

func testRecord(ref string) *wagers.Record {
	return &wagers.Record{
		Ref:        ref,
		Payer:      "PLaYeR11111111111111111111111111111111111111",
		Lamports:   100_000_000,
		ClientSeed: "seed",
		Nonce:      3,
		ServerSeed: "aa",
		ServerHash: "bb",
		Digest:     "cc",
		Result:     "HEADS",
		Side:       "HEADS",
		Win:        true,
		Status:     wagers.StatusPayoutPending,

		PayoutLamports: 195_000_000,
	}
}

func insertIn(t *testing.T, db *sql.DB, rec *wagers.Record) error {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	repo := New(db)
	err = repo.Insert(tx, rec)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return nil
}

func TestWagers_InsertAndGet(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	rec := testRecord("sig_roundtrip")
	err := insertIn(t, db, rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.Get(context.Background(), "sig_roundtrip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Payer != rec.Payer || got.Lamports != rec.Lamports ||
		got.Nonce != rec.Nonce || got.Status != wagers.StatusPayoutPending ||
		!got.Win || got.PayoutLamports != rec.PayoutLamports {
		t.Fatalf("record mismatch: %+v", got)
	}
	if got.PayoutRef != nil {
		t.Fatalf("payout ref should be unset, got %v", *got.PayoutRef)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not populated")
	}
}

func TestWagers_DuplicateRefRejected(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	err := insertIn(t, db, testRecord("sig_dup"))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err = insertIn(t, db, testRecord("sig_dup"))
	if !errors.Is(err, wagers.ErrDuplicateWager) {
		t.Fatalf("want ErrDuplicateWager, got %v", err)
	}
}

func TestWagers_GetMissing(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	_, err := repo.Get(context.Background(), "sig_nope")
	if !errors.Is(err, wagers.ErrWagerNotFound) {
		t.Fatalf("want ErrWagerNotFound, got %v", err)
	}
}

func TestWagers_MarkSettled(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	err := insertIn(t, db, testRecord("sig_settle"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	err = repo.MarkSettled(tx, "sig_settle", "payout_sig_1")
	if err != nil {
		t.Fatalf("mark settled: %v", err)
	}
	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.Get(context.Background(), "sig_settle")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != wagers.StatusSettled {
		t.Fatalf("status = %s, want settled", got.Status)
	}
	if got.PayoutRef == nil || *got.PayoutRef != "payout_sig_1" {
		t.Fatalf("payout ref = %v, want payout_sig_1", got.PayoutRef)
	}

	// Settled rows are immutable: a second transition must not match.
	tx2, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx2.Rollback()

	err = repo.MarkSettled(tx2, "sig_settle", "payout_sig_2")
	if !errors.Is(err, wagers.ErrWagerNotFound) {
		t.Fatalf("second mark settled: want ErrWagerNotFound, got %v", err)
	}
}

func TestWagers_DeletePending(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	ctx := context.Background()

	err := insertIn(t, db, testRecord("sig_abort"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = repo.DeletePending(ctx, "sig_abort")
	if err != nil {
		t.Fatalf("delete pending: %v", err)
	}

	_, err = repo.Get(ctx, "sig_abort")
	if !errors.Is(err, wagers.ErrWagerNotFound) {
		t.Fatalf("record should be gone, got %v", err)
	}

	// Re-inserting after an aborted broadcast is allowed.
	err = insertIn(t, db, testRecord("sig_abort"))
	if err != nil {
		t.Fatalf("re-insert after delete: %v", err)
	}

	// DeletePending never touches settled rows.
	loss := testRecord("sig_keep")
	loss.Win = false
	loss.Status = wagers.StatusSettled
	loss.PayoutLamports = 0
	err = insertIn(t, db, loss)
	if err != nil {
		t.Fatalf("insert settled: %v", err)
	}

	err = repo.DeletePending(ctx, "sig_keep")
	if err != nil {
		t.Fatalf("delete pending on settled: %v", err)
	}

	_, err = repo.Get(ctx, "sig_keep")
	if err != nil {
		t.Fatalf("settled record must survive: %v", err)
	}
}
