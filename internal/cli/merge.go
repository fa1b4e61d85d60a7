package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/pipeline"
)

// candidateFlags are shared by commands that read a candidate file.
type candidateFlags struct {
	format  string
	noCache bool
}

func (f *candidateFlags) register(cmd *cobra.Command, withCache bool) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "candidate format: json, yaml (default: from file extension)")
	if withCache {
		cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the layout cache")
	}
}

// =============================================================================
// validate
// =============================================================================

func (c *CLI) validateCommand() *cobra.Command {
	var flags candidateFlags
	cmd := &cobra.Command{
		Use:   "validate [candidate.json|-]",
		Short: "Check a candidate without merging it",
		Long: `Check a candidate against the candidate schema.

Every problem is reported with its path, not just the first one. Use "-" to
read from stdin. The command exits non-zero when the candidate is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), args[0], flags)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (c *CLI) runValidate(ctx context.Context, path string, flags candidateFlags) error {
	data, format, err := readInput(ctx, path, flags.format)
	if err != nil {
		return err
	}
	issues := pipeline.Validate(data, format)
	if len(issues) == 0 {
		printSuccess("Valid candidate")
		printFile(path)
		return nil
	}
	printError("Invalid candidate (%d issues)", len(issues))
	printIssues(issues)
	return errors.New(errors.ErrCodeInvalidPayload, "%s: %d issues", path, len(issues))
}

// =============================================================================
// merge
// =============================================================================

func (c *CLI) mergeCommand() *cobra.Command {
	var (
		flags candidateFlags
		into  string
	)
	cmd := &cobra.Command{
		Use:   "merge [candidate.json|-] --into [workflow]",
		Short: "Merge a candidate into a stored workflow as drafts",
		Long: `Merge a candidate into a stored workflow.

New nodes are added as drafts that stay visible until they are accepted or
rejected with 'review'. Colliding ids are renamed and references to them are
rewritten. The workflow is created when it does not exist yet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMerge(cmd.Context(), args[0], into, flags)
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "workflow id to merge into (required)")
	_ = cmd.MarkFlagRequired("into")
	flags.register(cmd, true)
	return cmd
}

func (c *CLI) runMerge(ctx context.Context, path, into string, flags candidateFlags) error {
	data, format, err := readInput(ctx, path, flags.format)
	if err != nil {
		return err
	}

	runner, _, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	res, err := runner.Generate(ctx, pipeline.GenerateRequest{WorkflowID: into, Payload: data, Format: format})
	if err != nil {
		return reportCandidateError(err)
	}
	prog.done("Merge complete", "workflow", into)

	doc := res.Document
	printSuccess("Merged %d nodes and %d edges into %s (v%d)", len(res.Merge.Nodes), len(res.Merge.Edges), doc.ID, doc.Version)
	printReport(res.Merge.Report)
	printStats(len(doc.Nodes), len(doc.Edges), len(doc.Drafts()), res.Stats.LayoutCacheHit)
	if res.Stats.LayoutError != "" {
		printWarning("layout failed, positions unchanged: %s", res.Stats.LayoutError)
	}
	printNewline()
	printNextStep("Review drafts", "flowmerge review "+doc.ID)
	return nil
}

// =============================================================================
// import
// =============================================================================

func (c *CLI) importCommand() *cobra.Command {
	var (
		flags candidateFlags
		id    string
	)
	cmd := &cobra.Command{
		Use:   "import [candidate.json|-]",
		Short: "Create a workflow from a candidate",
		Long: `Create a new workflow from a candidate.

Imported nodes are reviewed immediately; nothing is left as a draft. The
workflow id defaults to the file name without its extension. Importing into
a workflow that already has nodes fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd.Context(), args[0], id, flags)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "workflow id (default: file name)")
	flags.register(cmd, true)
	return cmd
}

func (c *CLI) runImport(ctx context.Context, path, id string, flags candidateFlags) error {
	if id == "" {
		id = workflowIDFromPath(path)
	}
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "--id is required when reading from stdin")
	}

	data, format, err := readInput(ctx, path, flags.format)
	if err != nil {
		return err
	}

	runner, _, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	res, err := runner.Import(ctx, pipeline.ImportRequest{WorkflowID: id, Payload: data, Format: format})
	if err != nil {
		return reportCandidateError(err)
	}
	prog.done("Import complete", "workflow", id)

	doc := res.Document
	printSuccess("Imported %s (v%d)", doc.ID, doc.Version)
	printReport(res.Merge.Report)
	printStats(len(doc.Nodes), len(doc.Edges), 0, res.Stats.LayoutCacheHit)
	if res.Stats.LayoutError != "" {
		printWarning("layout failed: %s", res.Stats.LayoutError)
	}
	printNewline()
	printNextStep("Render", "flowmerge render "+doc.ID)
	return nil
}

// reportCandidateError prints validation issues carried by err, if any,
// and returns err.
func reportCandidateError(err error) error {
	if issues := candidate.Issues(err); len(issues) > 0 {
		printError("Invalid candidate (%d issues)", len(issues))
		printIssues(issues)
	}
	return err
}
