package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irislabs/iris-memory/internal/models"
)

func relationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relations",
		Short: "Create and delete directed typed relations between entities",
	}

	cmd.AddCommand(relationsCreateCmd(), relationsDeleteCmd())
	return cmd
}

func relationsCreateCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "create [from] [type] [to]",
		Short: "Create a relation (from)-[type]->(to)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("relations create: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			created, err := mgr.CreateRelations(cmd.Context(), []models.Relation{{
				From:         args[0],
				RelationType: args[1],
				To:           args[2],
			}})
			if err != nil {
				return fmt.Errorf("relations create: %w", err)
			}

			if len(created) == 0 {
				fmt.Println("Relation already exists.")
				return nil
			}
			for _, r := range created {
				fmt.Printf("(%s)-[%s]->(%s)\n", r.From, r.RelationType, r.To)
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}

func relationsDeleteCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "delete [from] [type] [to]",
		Short: "Delete a relation (from)-[type]->(to)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("relations delete: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			deleted, err := mgr.DeleteRelations(cmd.Context(), []models.Relation{{
				From:         args[0],
				RelationType: args[1],
				To:           args[2],
			}})
			if err != nil {
				return fmt.Errorf("relations delete: %w", err)
			}

			if len(deleted) == 0 {
				fmt.Println("No matching relation.")
				return nil
			}
			for _, r := range deleted {
				fmt.Printf("deleted (%s)-[%s]->(%s)\n", r.From, r.RelationType, r.To)
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}
