package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/irislabs/iris-memory/internal/conversation"
	"github.com/irislabs/iris-memory/internal/models"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the TTL-bounded conversation log",
	}

	cmd.AddCommand(historyAddCmd(), historyListCmd(), historyClearCmd())
	return cmd
}

func historyAddCmd() *cobra.Command {
	var (
		user       string
		ttlSeconds int64
	)

	cmd := &cobra.Command{
		Use:   "add [role] [content]",
		Short: "Append a conversation message (role: user|assistant)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("history add: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			ttl := time.Duration(cfg.Conversation.DefaultTTLHours) * time.Hour
			if cmd.Flags().Changed("ttl") {
				ttl = time.Duration(ttlSeconds) * time.Second
			}
			if ttl < 0 {
				ttl = conversation.DefaultTTL
			}

			mgr := newConversationManager(st, user, logger)
			msg, err := mgr.AddMessage(cmd.Context(), models.Role(args[0]), args[1], ttl)
			if err != nil {
				return fmt.Errorf("history add: %w", err)
			}

			fmt.Printf("%s (expires %s)\n", msg.ID, msg.ExpiresAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	userFlag(cmd, &user)
	cmd.Flags().Int64Var(&ttlSeconds, "ttl", 0, "message lifetime in seconds (default: configured TTL)")
	return cmd
}

func historyListCmd() *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent non-expired messages, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("history list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newConversationManager(st, user, logger)
			messages, err := mgr.GetHistory(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history list: %w", err)
			}

			for _, m := range messages {
				fmt.Printf("[%s] %s: %s\n",
					m.CreatedAt.Format("2006-01-02 15:04"), m.Role, truncate(m.Content, 120))
			}
			if len(messages) == 0 {
				fmt.Println("No messages.")
			}
			return nil
		},
	}

	userFlag(cmd, &user)
	cmd.Flags().IntVar(&limit, "limit", conversation.DefaultHistoryLimit, "max messages")
	return cmd
}

func historyClearCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all of the tenant's messages regardless of expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("history clear: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := newConversationManager(st, user, logger)
			removed, err := mgr.ClearHistory(cmd.Context())
			if err != nil {
				return fmt.Errorf("history clear: %w", err)
			}

			fmt.Printf("%d messages removed\n", removed)
			return nil
		},
	}

	userFlag(cmd, &user)
	return cmd
}
