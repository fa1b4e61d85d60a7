// Package cli implements the flowmerge command-line interface.
//
// # Commands
//
//   - validate: check a candidate without touching any workflow
//   - merge: merge a candidate into a stored workflow as drafts
//   - import: create a workflow from a candidate
//   - layout, render: position and draw a stored workflow
//   - review: accept or reject drafts, interactively or by flag
//   - prompt: print the generation prompt for a tool catalog
//   - serve: run the HTTP API
//   - store, cache: inspect and clean up local state
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The root
// command attaches the logger to the command context so helpers that only
// receive a context can still log.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowmerge/internal/config"
	"github.com/matzehuels/flowmerge/pkg/buildinfo"
	"github.com/matzehuels/flowmerge/pkg/cache"
	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/materialize"
	"github.com/matzehuels/flowmerge/pkg/merge"
	"github.com/matzehuels/flowmerge/pkg/pipeline"
	"github.com/matzehuels/flowmerge/pkg/prompt"
	"github.com/matzehuels/flowmerge/pkg/store"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// stdinPath reads a candidate from standard input.
const stdinPath = "-"

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	out        io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowmerge",
		Short: "Flowmerge merges AI-generated workflow candidates into stored graphs",
		Long: `Flowmerge validates AI-generated workflow candidates, merges them into
stored workflow graphs as reviewable drafts or imports them as new workflows,
lays the result out and renders it.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/flowmerge/config.toml)")

	root.AddCommand(c.validateCommand())
	root.AddCommand(c.mergeCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.reviewCommand())
	root.AddCommand(c.promptCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.storeCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	c.Logger.Debug("config loaded", "store", cfg.Store.Backend, "cache", cfg.Cache.Backend, "engine", cfg.Layout.Engine)
	return cfg, nil
}

// newRunner opens the configured store and cache and builds a runner over
// them. The caller closes the runner.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, cfg, err
	}

	opts := cfg.PipelineOptions()
	if cfg.Merge.Tools != "" {
		tools, err := prompt.ReadTools(cfg.Merge.Tools)
		if err != nil {
			return nil, cfg, err
		}
		opts.Merge = append(opts.Merge, merge.WithMaterializeOptions(materialize.WithTools(tools)))
		c.Logger.Debug("loaded tool catalog", "path", cfg.Merge.Tools, "tools", len(tools))
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, cfg, err
	}

	var ch cache.Cache = cache.NewNullCache()
	if !noCache {
		ch, err = cache.Open(ctx, cfg.CacheConfig())
		if err != nil {
			c.Logger.Warn("cache unavailable, continuing without", "backend", cfg.Cache.Backend, "err", err)
			ch = cache.NewNullCache()
		}
	}

	// Redis applies its prefix itself; other backends scope through the keyer.
	var keyer cache.Keyer
	if cfg.Cache.Prefix != "" && cfg.Cache.Backend != cache.BackendRedis {
		keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), cfg.Cache.Prefix)
	}

	runner := pipeline.NewRunner(st, ch, keyer, c.Logger)
	if err := runner.Configure(opts); err != nil {
		runner.Close()
		return nil, cfg, err
	}
	return runner, cfg, nil
}

// =============================================================================
// Input Helpers
// =============================================================================

// readInput reads a candidate or tool file, or stdin for "-". The format
// flag wins over the file extension.
func readInput(ctx context.Context, path, format string) ([]byte, string, error) {
	if format == "" {
		format = workflow.FormatFromPath(path)
	}
	format = strings.ToLower(format)
	if format == "yml" {
		format = workflow.FormatYAML
	}
	if format != workflow.FormatJSON && format != workflow.FormatYAML {
		return nil, "", errors.New(errors.ErrCodeInvalidInput, "unknown input format %q (want json or yaml)", format)
	}

	var (
		data []byte
		err  error
	)
	if path == stdinPath {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	loggerFromContext(ctx).Debug("read input", "path", path, "format", format, "bytes", len(data))
	return data, format, nil
}

// workflowIDFromPath derives a workflow id from a file name.
func workflowIDFromPath(path string) string {
	if path == stdinPath {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
