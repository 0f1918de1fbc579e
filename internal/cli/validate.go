package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gantry/internal/ctxutil"
	"github.com/mrz1836/gantry/internal/pipeline"
)

// AddValidateCommand adds the validate command to the root command.
func AddValidateCommand(root *cobra.Command) {
	root.AddCommand(newValidateCmd())
}

func newValidateCmd() *cobra.Command {
	var pipelineFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the pipeline file without running it",
		Long: `Parse the pipeline declaration and report structural problems:
missing or duplicate stage names, empty commands, unparseable environment
references, and invalid report paths.

Examples:
  gantry validate
  gantry validate --file ci/gantry.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), pipelineFile, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "file", "f", "", "pipeline file (default gantry.yaml)")

	return cmd
}

func runValidate(ctx context.Context, pipelineFile string, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	p, err := pipeline.Load(pipelineFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "pipeline %q is valid (%d stages)\n", p.Name, len(p.Stages))
	for i := range p.Stages {
		fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, p.Stages[i].Name, p.Stages[i].Environment)
	}
	return nil
}
