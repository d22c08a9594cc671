package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/irislabs/iris-memory/internal/conversation"
	irismcp "github.com/irislabs/iris-memory/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  create_entities, delete_entities   — entity lifecycle
  add_observations, delete_observations
  create_relations, delete_relations
  read_graph, open_nodes, search_nodes
  get_summary, save_summary, get_user_edits
  add_message, get_history, clear_history, cleanup_expired

Every tool accepts an optional user_id to select the tenant (default: "default").

If the database cannot be opened at startup the server still starts;
individual tool calls will return MCP error responses on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			st, storeErr := newStore(logger)
			if storeErr != nil {
				// Log to stderr and continue with a nil store.
				// Tool calls will return per-call errors rather than crashing.
				logger.Error("mcp: failed to open store; tool calls requiring storage will fail",
					"error", storeErr)
			}

			defaultTTL := time.Duration(cfg.Conversation.DefaultTTLHours) * time.Hour
			if defaultTTL <= 0 {
				defaultTTL = conversation.DefaultTTL
			}

			srv := irismcp.NewServer(st, logger, defaultTTL)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: iris-memory MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
