package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irislabs/iris-memory/internal/mirror"
)

func mirrorCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Sync the tenant's knowledge graph into the Neo4j read model",
		Long: `Rebuilds the tenant's subgraph in Neo4j from the SQLite source of truth.
Requires mirror.enabled in config (or IRIS_MEMORY_MIRROR_ENABLED=true) plus
connection settings under the mirror section.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			if !cfg.Mirror.Enabled {
				return fmt.Errorf("mirror: not enabled; set mirror.enabled=true in config")
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("mirror: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			ctx := cmd.Context()
			mir, err := mirror.New(ctx, mirror.Config{
				URI:      cfg.Mirror.URI,
				Username: cfg.Mirror.Username,
				Password: cfg.Mirror.Password,
				Database: cfg.Mirror.Database,
			}, logger)
			if err != nil {
				return fmt.Errorf("mirror: %w", err)
			}
			defer func() { _ = mir.Close(ctx) }()

			mgr := newGraphManager(st, user, logger)
			kg, err := mgr.ReadGraph(ctx)
			if err != nil {
				return fmt.Errorf("mirror: reading graph: %w", err)
			}

			if err := mir.Sync(ctx, mgr.UserID(), kg); err != nil {
				return err
			}

			fmt.Printf("mirrored %d entities and %d relations for %s\n",
				len(kg.Entities), len(kg.Relations), mgr.UserID())
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}
