package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vodsync/internal/daemon"
	"vodsync/internal/ledger"
	"vodsync/internal/syncer"
	"vodsync/internal/ytdlp"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var noDelay bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lock, err := daemon.AcquireLock(cfg.Paths.StateDir)
			if err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return fmt.Errorf("state directory %s is locked by another vodsync process; stop it or wait for its pass to finish", cfg.Paths.StateDir)
				}
				return err
			}
			defer lock.Unlock()

			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open tracking store: %w", err)
			}
			defer store.Close()

			client := ytdlp.NewCLI(ytdlp.WithBinary(cfg.Download.YtdlpBinary))
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := client.CheckInstalled(signalCtx); err != nil {
				return err
			}

			opts := []syncer.Option{}
			if noDelay {
				opts = append(opts, syncer.WithJitter(func() time.Duration { return 0 }))
			}
			sync := syncer.New(store, client, logger, opts...)

			result, err := sync.RunPass(signalCtx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d sources: %d downloaded, %d failed\n",
				len(result.Sources), result.Downloaded(), result.Failed())
			if result.Failed() > 0 {
				return fmt.Errorf("%d downloads failed", result.Failed())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "Skip the polite delay before each source listing")
	return cmd
}
