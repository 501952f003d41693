package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vodsync/internal/ledger"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Reset failed items so the next pass retries them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open tracking store: %w", err)
			}
			defer store.Close()

			reset, err := store.ResetFailed(cmd.Context(), source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed items\n", reset)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Only reset items belonging to this source URL")
	return cmd
}
