package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/fliphouse/internal/api"
	"github.com/fastprodman/fliphouse/internal/infra/logging"
	"github.com/fastprodman/fliphouse/internal/infra/pgutils"
	"github.com/fastprodman/fliphouse/internal/ledger/solanarpc"
	"github.com/fastprodman/fliphouse/internal/services/settlement"
	"github.com/fastprodman/fliphouse/pkg/envconf"
	"github.com/fastprodman/fliphouse/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(_ context.Context) error {
		slog.Info("Close db pool")

		return dbConns.Close()
	})

	ledgerClient, err := solanarpc.New(cfg.Ledger.RPCURL, cfg.Ledger.HouseKeyPath)
	if err != nil {
		return fmt.Errorf("init ledger client: %w", err)
	}

	slog.Info("House wallet loaded", "address", ledgerClient.HouseAddress())

	settlementSrv := settlement.New(dbConns, ledgerClient, settlement.Config{
		ConfirmAttempts: cfg.Ledger.ConfirmAttempts,
		ConfirmInterval: cfg.Ledger.ConfirmInterval,
		BurnInterval:    cfg.BurnInterval,
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, settlementSrv)

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
