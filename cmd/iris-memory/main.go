package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/irislabs/iris-memory/internal/config"
	"github.com/irislabs/iris-memory/internal/conversation"
	"github.com/irislabs/iris-memory/internal/graph"
	"github.com/irislabs/iris-memory/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "iris-memory",
		Short: "Iris Memory — persistent knowledge-graph memory for conversational agents",
		Long:  "Iris Memory keeps a per-tenant knowledge graph of entities, observations, and relations in SQLite, alongside a TTL-bounded conversation log and a cached graph summary.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		mcpCmd(),
		entitiesCmd(),
		relationsCmd(),
		graphCmd(),
		searchCmd(),
		summaryCmd(),
		historyCmd(),
		cleanupCmd(),
		mirrorCmd(),
		statsCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (*store.Store, error) {
	return store.Open(cfg.Database.Path, logger)
}

func newGraphManager(st *store.Store, userID string, logger *slog.Logger) *graph.Manager {
	return graph.NewManager(st, userID, logger)
}

func newConversationManager(st *store.Store, userID string, logger *slog.Logger) *conversation.Manager {
	return conversation.NewManager(st, userID, logger)
}

// userFlag registers the shared --user tenant flag.
func userFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "user", "default", "tenant id to operate on")
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
