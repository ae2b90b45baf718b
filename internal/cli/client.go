package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/bebetter/internal/app"
	"github.com/roach88/bebetter/internal/ledger"
	"github.com/roach88/bebetter/internal/remote"
)

// clientRun is the body of a command that works on the local ledger.
type clientRun func(ctx context.Context, a *app.App, f *OutputFormatter) error

// withApp opens the client, runs fn, then waits for outstanding sync
// requests before closing so changes made by fn reach the server.
func withApp(opts *RootOptions, cmd *cobra.Command, fn clientRun) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "could not load config", err)
	}

	formatter.VerboseLog("Opening %s storage in %s", cfg.Client.Storage, cfg.Client.DataDir)
	a, err := app.Open(cfg.Client)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "could not open local storage", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing client", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runErr := fn(ctx, a, formatter)

	// Bound the drain by the worst case of one retried request.
	drain := cfg.Client.RequestTimeout * time.Duration(cfg.Client.MaxRetries+1)
	waitCtx, cancel := context.WithTimeout(ctx, drain)
	defer cancel()
	if err := a.Wait(waitCtx); err != nil {
		slog.Warn("sync still in flight at exit", "error", err)
	}

	return runErr
}

// failApp maps client errors to output codes and exit codes.
func failApp(f *OutputFormatter, err error) error {
	var apiErr *remote.APIError
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return f.Fail(ExitFailure, ErrCodeFunds, "not enough coins", err)
	case errors.Is(err, app.ErrUnknownTask):
		return f.Fail(ExitCommandError, ErrCodeUnknownTask, err.Error(), nil)
	case errors.Is(err, ledger.ErrTaskLimit),
		errors.Is(err, ledger.ErrTaskCompleted),
		errors.Is(err, ledger.ErrTaskExists):
		return f.Fail(ExitFailure, ErrCodeTaskPool, err.Error(), nil)
	case errors.Is(err, app.ErrNotSignedIn):
		return f.Fail(ExitFailure, ErrCodeNotSignedIn, "not signed in (run bebetter login)", nil)
	case errors.Is(err, remote.ErrUnauthorized):
		return f.Fail(ExitFailure, ErrCodeAuth, "invalid credentials or expired session", err)
	case errors.Is(err, app.ErrSyncFailed):
		return f.Fail(ExitFailure, ErrCodeSync, err.Error(), nil)
	case errors.As(err, &apiErr):
		return f.Fail(ExitFailure, ErrCodeRemote, apiErr.Message, err)
	default:
		return f.Fail(ExitFailure, ErrCodeRemote, "remote ledger unavailable", err)
	}
}
