package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gantry/internal/config"
	"github.com/mrz1836/gantry/internal/ctxutil"
	"github.com/mrz1836/gantry/internal/engine"
	"github.com/mrz1836/gantry/internal/pipeline"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newStatusCmd(flags))
}

func newStatusCmd(flags *GlobalFlags) *cobra.Command {
	var (
		pipelineFile string
		pipelineName string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the most recent run result for the pipeline",
		Long: `Show the persisted result of the pipeline's most recent run.

The pipeline is identified by name, taken from the pipeline file in the
working directory unless --pipeline is given.

Examples:
  gantry status
  gantry status --pipeline tvb-tests
  gantry status --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), flags, pipelineFile, pipelineName, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "file", "f", "", "pipeline file (default gantry.yaml)")
	cmd.Flags().StringVarP(&pipelineName, "pipeline", "p", "", "pipeline name (overrides the pipeline file)")

	return cmd
}

func runStatus(ctx context.Context, flags *GlobalFlags, pipelineFile, pipelineName string, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	logger := GetLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}

	// Resolve the pipeline name from the declaration file unless given
	if pipelineName == "" {
		p, perr := pipeline.Load(pipelineFile)
		if perr != nil {
			return perr
		}
		pipelineName = p.Name
	}

	home, err := config.HomeDir(cfg)
	if err != nil {
		return err
	}

	store, err := engine.NewFileStore(home)
	if err != nil {
		return err
	}

	result, err := store.Latest(ctx, pipelineName)
	if err != nil {
		return err
	}

	return renderResult(w, flags.Output, result)
}
