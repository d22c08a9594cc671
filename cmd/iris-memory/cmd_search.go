package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search entities by name, type, and observation text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("search: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			results, err := mgr.SearchNodes(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			for i := range results {
				e := &results[i]
				fmt.Printf("[%d] %s [%s]\n", i+1, e.Name, e.EntityType)
				if len(e.Observations) > 0 {
					fmt.Printf("    %s\n", truncate(strings.Join(e.Observations, "; "), 120))
				}
			}

			if len(results) == 0 {
				fmt.Println("No results found.")
			}

			return nil
		},
	}

	userFlag(cmd, &user)
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	return cmd
}
