package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Read and write the cached graph summary",
	}

	cmd.AddCommand(summaryGetCmd(), summarySaveCmd(), summaryEditsCmd())
	return cmd
}

func summaryGetCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the cached summary and its staleness",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("summary get: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			summary, err := mgr.GetSummary(cmd.Context())
			if err != nil {
				return fmt.Errorf("summary get: %w", err)
			}
			if summary == nil {
				fmt.Println("No summary saved.")
				return nil
			}

			fmt.Println(summary.Summary)
			fmt.Printf("\ngenerated: %s | entities: %d | observations: %d | user edits: %d | stale: %v\n",
				summary.GeneratedAt.Format("2006-01-02 15:04:05"),
				summary.EntityCount, summary.ObservationCount,
				summary.UserEditCount, summary.IsStale)
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}

func summarySaveCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "save [text]",
		Short: "Cache a summary of the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("summary save: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			if err := mgr.SaveSummary(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("summary save: %w", err)
			}

			fmt.Println("Summary saved.")
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}

func summaryEditsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "edits",
		Short: "List observations flagged as user-requested edits, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("summary edits: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			edits, err := mgr.GetUserEdits(cmd.Context())
			if err != nil {
				return fmt.Errorf("summary edits: %w", err)
			}

			for _, e := range edits {
				fmt.Printf("[%s] %s: %s\n",
					e.CreatedAt.Format("2006-01-02 15:04"), e.EntityName, truncate(e.Observation, 120))
			}
			if len(edits) == 0 {
				fmt.Println("No user edits recorded.")
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}
