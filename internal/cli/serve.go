package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/bebetter/internal/server"
	"github.com/roach88/bebetter/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port       int
	Database   string
	PruneEvery time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the remote ledger server",
		Long: `Run the bebetter HTTP API backed by SQLite.

The database is created on first start. The listen port comes from
--port, then the PORT environment variable, then the config file
(default 3000).

Example:
  bebetter serve
  bebetter serve --port 8080 --db ./data/bebetter.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (overrides config and PORT)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().DurationVar(&opts.PruneEvery, "prune-every", time.Hour, "interval for deleting expired sessions (0 disables)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "could not load config", err)
	}
	sc := cfg.Server
	if opts.Port != 0 {
		sc.Port = opts.Port
	}
	if opts.Database != "" {
		sc.DBPath = opts.Database
	}

	if dir := filepath.Dir(sc.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStorage, "could not create database directory", err)
		}
	}

	slog.Info("opening database", "path", sc.DBPath)
	st, err := store.Open(sc.DBPath,
		store.WithSessionTTL(sc.SessionTTL),
		store.WithStartingCoins(sc.StartingCoins),
	)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "could not open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	srv := server.New(st, server.Options{
		LoginRate:  sc.LoginRate,
		LoginBurst: sc.LoginBurst,
	})

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Server listening on %s\n", sc.Addr())
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}

	if err := srv.ListenAndServe(ctx, sc.Addr(), opts.PruneEvery); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeServer, "server error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
