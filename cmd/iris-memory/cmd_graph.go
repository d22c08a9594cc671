package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/irislabs/iris-memory/internal/models"
)

func graphCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "graph [name...]",
		Short: "Dump the knowledge graph as JSON; with names, only those nodes and their relations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("graph: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)

			var kg *models.KnowledgeGraph
			if len(args) > 0 {
				kg, err = mgr.OpenNodes(cmd.Context(), args)
			} else {
				kg, err = mgr.ReadGraph(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(kg)
		},
	}

	userFlag(cmd, &user)
	return cmd
}
