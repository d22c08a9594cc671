package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored counts for the tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("stats: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			stats, err := mgr.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("entities:      %d\n", stats.EntityCount)
			fmt.Printf("observations:  %d\n", stats.ObservationCount)
			fmt.Printf("relations:     %d\n", stats.RelationCount)
			fmt.Printf("user edits:    %d\n", stats.UserEditCount)
			fmt.Printf("live messages: %d\n", stats.LiveMessageCount)
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}
