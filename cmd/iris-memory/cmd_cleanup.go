package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired conversation messages across all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("cleanup: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			// Cleanup is tenant-independent; any manager can run it.
			mgr := newConversationManager(st, "default", logger)
			removed, err := mgr.CleanupExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}

			fmt.Printf("%d expired messages removed\n", removed)
			return nil
		},
	}

	return cmd
}
