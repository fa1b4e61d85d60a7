package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// storeCommand creates the workflow store management command.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect stored workflows",
	}

	cmd.AddCommand(c.storeListCommand())
	cmd.AddCommand(c.storeGetCommand())
	cmd.AddCommand(c.storeDeleteCommand())

	return cmd
}

func (c *CLI) storeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStoreList(cmd.Context())
		},
	}
}

func (c *CLI) runStoreList(ctx context.Context) error {
	runner, _, err := c.newRunner(ctx, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	list, err := runner.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printInfo("No stored workflows")
		return nil
	}
	for _, s := range list {
		fmt.Fprintln(c.out, summaryLine(s))
	}
	return nil
}

func (c *CLI) storeGetCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "get [workflow]",
		Short: "Print a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStoreGet(cmd.Context(), args[0], format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", workflow.FormatJSON, "output format: json, yaml")
	return cmd
}

func (c *CLI) runStoreGet(ctx context.Context, id, format string) error {
	runner, _, err := c.newRunner(ctx, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	doc, err := runner.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := workflow.Marshal(doc, format)
	if err != nil {
		return err
	}
	_, err = c.out.Write(data)
	return err
}

func (c *CLI) storeDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [workflow]",
		Short: "Delete a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStoreDelete(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) runStoreDelete(ctx context.Context, id string) error {
	runner, _, err := c.newRunner(ctx, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	if err := runner.Delete(ctx, id); err != nil {
		return err
	}
	printSuccess("Deleted %s", id)
	return nil
}
