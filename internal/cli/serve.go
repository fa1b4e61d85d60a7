package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowmerge/internal/server"
	"github.com/matzehuels/flowmerge/pkg/prompt"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// =============================================================================
// prompt
// =============================================================================

func (c *CLI) promptCommand() *cobra.Command {
	var tools string
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the generation prompt for a tool catalog",
		Long: `Print the system prompt that asks a model for a workflow candidate.

The prompt describes the candidate format and lists the tools from --tools
(a JSON or YAML array), or from the tools file in the [merge] config
section. Without either the model is told no tools exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPrompt(tools)
		},
	}
	cmd.Flags().StringVar(&tools, "tools", "", "tool catalog file (JSON or YAML)")
	return cmd
}

func (c *CLI) runPrompt(toolsPath string) error {
	if toolsPath == "" {
		if cfg, err := c.loadConfig(); err == nil {
			toolsPath = cfg.Merge.Tools
		}
	}
	var tools []workflow.CatalogTool
	if toolsPath != "" {
		var err error
		tools, err = prompt.ReadTools(toolsPath)
		if err != nil {
			return err
		}
		c.Logger.Debug("loaded tool catalog", "path", toolsPath, "tools", len(tools))
	}
	_, err := fmt.Fprintln(c.out, prompt.Build(tools))
	return err
}

// =============================================================================
// serve
// =============================================================================

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API over the configured store and cache.

The server shuts down gracefully on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the layout cache")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	runner, cfg, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(runner, c.Logger, server.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		ReadTimeout:    cfg.Server.ReadTimeout,
	})
	c.Logger.Info("serving", "store", cfg.Store.Backend, "cache", cfg.Cache.Backend, "engine", runner.Options.LayoutEngine)
	return srv.ListenAndServe(ctx, addr)
}
