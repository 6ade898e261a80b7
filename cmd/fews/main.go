// fews: the puzzle challenge and tic-tac-toe opponent.
//
// Progress through six gated puzzle steps is persisted per user; the
// tic-tac-toe opponent plays minimax blended with random moves by
// difficulty. Both are served over MCP (stdio) and over HTTP.
//
// Usage:
//
//	fews serve     # MCP server on stdio
//	fews web       # HTTP API and progress websocket
//	fews token     # mint a bearer token for the web API
//	fews version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/forthefews/fews/internal/config"
	"github.com/forthefews/fews/internal/identity"
	fewsserver "github.com/forthefews/fews/internal/server"
	"github.com/forthefews/fews/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "fews",
		Short:         "Gated puzzle progress and a tic-tac-toe opponent, over MCP and HTTP.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       fewsserver.Version,
	}
	config.Bind(root.PersistentFlags(), cfg)

	root.AddCommand(
		newServeCmd(cfg),
		newWebCmd(cfg),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Start the MCP server on stdin/stdout. Logs go to stderr.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "fews": {
        "command": "fews",
        "args": ["serve"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout is the MCP transport.
			logger := cfg.Logger(os.Stderr)

			c, cleanup, err := fewsserver.Build(*cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			go c.Games.Run(cmd.Context(), cfg.SessionTimeout, logger)

			logger.Info("fews: serving MCP on stdio", "version", fewsserver.Version, "store", cfg.Store)
			return server.ServeStdio(fewsserver.New(c),
				server.WithErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))
		},
	}
}

func newWebCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Start the HTTP API and progress websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := cfg.Logger(cmd.ErrOrStderr())

			c, cleanup, err := fewsserver.Build(*cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			ids, err := c.Identity.Provider()
			if err != nil {
				return fmt.Errorf("identity provider: %w", err)
			}

			go c.Games.Run(cmd.Context(), cfg.SessionTimeout, logger)

			return web.New(c, ids).Run(cmd.Context(), cfg.Addr())
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the web API (needs FEWS_AUTH_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := identity.LoadConfigFromEnv(nil)
			if err != nil {
				return err
			}
			if !ids.Authenticated() {
				return errors.New("FEWS_AUTH_SECRET is not set, the web API accepts any caller")
			}
			if user == "" {
				user = ids.UserID
			}
			if ttl <= 0 {
				return fmt.Errorf("invalid --ttl %s", ttl)
			}

			signer, err := identity.NewJWT(ids)
			if err != nil {
				return err
			}
			tok, err := signer.Sign(user, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id to put in the token (default: FEWS_USER_ID)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "fews v%s\n", fewsserver.Version)
}
