package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowmerge/pkg/pipeline"
	"github.com/matzehuels/flowmerge/pkg/render"
)

// =============================================================================
// layout
// =============================================================================

func (c *CLI) layoutCommand() *cobra.Command {
	var (
		noCache   bool
		engine    string
		direction string
	)
	cmd := &cobra.Command{
		Use:   "layout [workflow]",
		Short: "Recompute node positions of a stored workflow",
		Long: `Recompute node positions of a stored workflow and save them.

Layouts are cached by graph shape and geometry, so repeated runs on an
unchanged graph are served from the cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], engine, direction, noCache)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the layout cache")
	cmd.Flags().StringVar(&engine, "engine", "", "layout engine: graphviz, layered (default: from config)")
	cmd.Flags().StringVar(&direction, "direction", "", "rank direction: LR, TB (default: from config)")
	return cmd
}

func (c *CLI) runLayout(ctx context.Context, id, engine, direction string, noCache bool) error {
	runner, _, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	if engine != "" || direction != "" {
		opts := runner.Options
		if engine != "" {
			opts.LayoutEngine = strings.ToLower(engine)
		}
		if direction != "" {
			opts.Layout.Direction = strings.ToUpper(direction)
		}
		if err := runner.Configure(opts); err != nil {
			return err
		}
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %s...", id))
	spinner.Start()
	res, err := runner.Layout(ctx, id)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	spinner.Stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	doc := res.Document
	if res.Stats.LayoutError != "" {
		printWarning("layout failed, positions unchanged: %s", res.Stats.LayoutError)
	} else {
		printSuccess("Layout complete for %s (v%d)", doc.ID, doc.Version)
	}
	printStats(len(doc.Nodes), len(doc.Edges), len(doc.Drafts()), res.Stats.LayoutCacheHit)
	return nil
}

// =============================================================================
// render
// =============================================================================

func (c *CLI) renderCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
	)
	cmd := &cobra.Command{
		Use:   "render [workflow]",
		Short: "Render a stored workflow as DOT or SVG",
		Long: `Render a stored workflow as Graphviz DOT or SVG.

Drafts are drawn dashed. Output goes to stdout unless -o is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != render.FormatDOT && format != render.FormatSVG {
				return fmt.Errorf("invalid format: %s (must be 'dot' or 'svg')", format)
			}
			return c.runRender(cmd.Context(), args[0], format, output, detailed)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", render.FormatDOT, "output format: dot, svg")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show node ids and kinds")
	return cmd
}

func (c *CLI) runRender(ctx context.Context, id, format, output string, detailed bool) error {
	runner, _, err := c.newRunner(ctx, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	doc, err := runner.Get(ctx, id)
	if err != nil {
		return err
	}
	out, err := render.Export(ctx, doc, format, render.Options{Detailed: detailed})
	if err != nil {
		return fmt.Errorf("render %s: %w", id, err)
	}

	if output == "" {
		_, err := c.out.Write(out)
		return err
	}
	if err := os.WriteFile(output, out, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}
	printSuccess("Rendered %s", id)
	printFile(output)
	return nil
}

// =============================================================================
// review
// =============================================================================

type reviewFlags struct {
	accept    []string
	reject    []string
	acceptAll bool
	rejectAll bool
}

func (f reviewFlags) empty() bool {
	return len(f.accept) == 0 && len(f.reject) == 0 && !f.acceptAll && !f.rejectAll
}

func (c *CLI) reviewCommand() *cobra.Command {
	var flags reviewFlags
	cmd := &cobra.Command{
		Use:   "review [workflow]",
		Short: "Accept or reject drafts of a stored workflow",
		Long: `Accept or reject drafts of a stored workflow.

Without flags an interactive list of drafts is shown. Rejecting a draft
removes it together with its edges and clears references to it from the
remaining nodes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReview(cmd.Context(), args[0], flags)
		},
	}
	cmd.Flags().StringSliceVar(&flags.accept, "accept", nil, "draft ids to accept")
	cmd.Flags().StringSliceVar(&flags.reject, "reject", nil, "draft ids to reject")
	cmd.Flags().BoolVar(&flags.acceptAll, "accept-all", false, "accept every draft")
	cmd.Flags().BoolVar(&flags.rejectAll, "reject-all", false, "reject every draft")
	cmd.MarkFlagsMutuallyExclusive("accept-all", "reject-all")
	return cmd
}

func (c *CLI) runReview(ctx context.Context, id string, flags reviewFlags) error {
	runner, _, err := c.newRunner(ctx, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	req := pipeline.ReviewRequest{
		WorkflowID: id,
		Accept:     flags.accept,
		Reject:     flags.reject,
		AcceptAll:  flags.acceptAll,
		RejectAll:  flags.rejectAll,
	}

	if flags.empty() {
		doc, err := runner.Get(ctx, id)
		if err != nil {
			return err
		}
		model := NewReviewModel(doc)
		if len(model.Drafts) == 0 {
			printInfo("%s has no drafts", id)
			return nil
		}
		final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
		if err != nil {
			return fmt.Errorf("review: %w", err)
		}
		m := final.(ReviewModel)
		if !m.Applied {
			printInfo("Review cancelled")
			return nil
		}
		req.Accept, req.Reject = m.Accepted(), m.Rejected()
		if len(req.Accept) == 0 && len(req.Reject) == 0 {
			printInfo("Nothing to apply")
			return nil
		}
	}

	res, err := runner.Review(ctx, req)
	if err != nil {
		return err
	}
	doc := res.Document
	printSuccess("Reviewed %s (v%d)", doc.ID, doc.Version)
	printKeyValue("accepted", fmt.Sprint(res.Accepted))
	printKeyValue("rejected", fmt.Sprint(len(res.Rejected.RemovedNodes)))
	if n := len(res.Rejected.RemovedEdges); n > 0 {
		printDetail("removed %d edges", n)
	}
	if n := len(res.Rejected.ClearedRefs); n > 0 {
		printDetail("cleared %d references to rejected nodes", n)
	}
	if remaining := len(doc.Drafts()); remaining > 0 {
		printWarning("%d drafts remain", remaining)
	}
	return nil
}
