package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irislabs/iris-memory/internal/models"
)

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Create and delete knowledge-graph entities and observations",
	}

	cmd.AddCommand(
		entitiesCreateCmd(),
		entitiesDeleteCmd(),
		entitiesAddObsCmd(),
		entitiesDeleteObsCmd(),
	)
	return cmd
}

func entitiesCreateCmd() *cobra.Command {
	var (
		user       string
		entityType string
		obs        []string
		userEdit   bool
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create an entity with optional observations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("entities create: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			created, err := mgr.CreateEntities(cmd.Context(), []models.EntityInput{{
				Name:         args[0],
				EntityType:   entityType,
				Observations: obs,
			}}, userEdit)
			if err != nil {
				return fmt.Errorf("entities create: %w", err)
			}

			for _, e := range created {
				fmt.Printf("%s [%s] (%d observations added)\n", e.Name, e.EntityType, len(e.Observations))
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	cmd.Flags().StringVar(&entityType, "type", models.DefaultEntityType, "entity type label")
	cmd.Flags().StringArrayVar(&obs, "obs", nil, "observation to attach (repeatable)")
	cmd.Flags().BoolVar(&userEdit, "user-edit", false, "flag observations as user-requested edits")
	return cmd
}

func entitiesDeleteCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "delete [name...]",
		Short: "Delete entities, their observations, and touching relations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("entities delete: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			deleted, err := mgr.DeleteEntities(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("entities delete: %w", err)
			}

			for _, name := range deleted {
				fmt.Printf("deleted %s\n", name)
			}
			if len(deleted) == 0 {
				fmt.Println("No matching entities.")
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}

func entitiesAddObsCmd() *cobra.Command {
	var (
		user     string
		userEdit bool
	)

	cmd := &cobra.Command{
		Use:   "add-obs [entity] [observation...]",
		Short: "Add observations to an existing entity",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("entities add-obs: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			results, err := mgr.AddObservations(cmd.Context(), []models.ObservationInput{{
				EntityName: args[0],
				Contents:   args[1:],
			}}, userEdit)
			if err != nil {
				return fmt.Errorf("entities add-obs: %w", err)
			}

			for _, r := range results {
				if r.Error != "" {
					fmt.Printf("%s: %s\n", r.EntityName, r.Error)
					continue
				}
				fmt.Printf("%s: %d added\n", r.EntityName, len(r.Added))
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	cmd.Flags().BoolVar(&userEdit, "user-edit", false, "flag observations as user-requested edits")
	return cmd
}

func entitiesDeleteObsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "delete-obs [entity] [observation...]",
		Short: "Delete specific observations from an entity",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("entities delete-obs: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newGraphManager(st, user, logger)
			results, err := mgr.DeleteObservations(cmd.Context(), []models.ObservationDeletion{{
				EntityName:   args[0],
				Observations: args[1:],
			}})
			if err != nil {
				return fmt.Errorf("entities delete-obs: %w", err)
			}

			for _, r := range results {
				fmt.Printf("%s: %d deleted\n", r.EntityName, len(r.Deleted))
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}
