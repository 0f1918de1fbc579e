package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gantry/internal/config"
	"github.com/mrz1836/gantry/internal/ctxutil"
	"github.com/mrz1836/gantry/internal/engine"
	"github.com/mrz1836/gantry/internal/env"
	"github.com/mrz1836/gantry/internal/errors"
	"github.com/mrz1836/gantry/internal/notify"
	"github.com/mrz1836/gantry/internal/pipeline"
	"github.com/mrz1836/gantry/internal/report"
)

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newRunCmd(flags))
}

func newRunCmd(flags *GlobalFlags) *cobra.Command {
	var pipelineFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the declared pipeline stages in order",
		Long: `Execute every stage of the pipeline declared in gantry.yaml.

Stages run strictly in declaration order, each inside its declared execution
environment. The first stage that exits non-zero (or whose environment cannot
be acquired) stops the run; remaining stages are skipped. The run result is
persisted, and a notification fires if the overall status changed since the
previous run.

The process exit code mirrors the pipeline outcome: 0 on success, 1 on failure.

Examples:
  gantry run
  gantry run --file ci/gantry.yaml
  gantry run --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd.Context(), flags, pipelineFile, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "file", "f", "", "pipeline file (default gantry.yaml)")

	return cmd
}

func runRun(ctx context.Context, flags *GlobalFlags, pipelineFile string, w io.Writer) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	logger := GetLogger()

	// Load runner config
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}

	// Load and validate the pipeline declaration
	p, err := pipeline.Load(pipelineFile)
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to get working directory")
	}

	// Stream stage output to the console for interactive text runs; JSON
	// and quiet runs only get the captured tail in the result.
	var stageOut io.Writer
	if flags.Output == OutputText && !flags.Quiet {
		stageOut = w
	}

	eng, err := buildEngine(cfg, workDir, stageOut)
	if err != nil {
		return err
	}

	result, err := eng.Run(ctx, p)
	if err != nil {
		return err
	}

	if err := renderResult(w, flags.Output, result); err != nil {
		return err
	}

	// Exit status mirrors the pipeline outcome
	if result.Failed() {
		return errors.ErrPipelineFailed
	}
	return nil
}

// buildEngine wires the engine from runner config: store, environment
// providers, report collector, and notification dispatcher. A non-nil
// stageOut receives stage command output as it is produced.
func buildEngine(cfg *config.Config, workDir string, stageOut io.Writer) (*engine.Engine, error) {
	logger := GetLogger()

	home, err := config.HomeDir(cfg)
	if err != nil {
		return nil, err
	}

	store, err := engine.NewFileStore(home)
	if err != nil {
		return nil, err
	}

	runner := &env.ExecRunner{}
	registry := env.NewRegistry(
		env.NewLocalProvider(runner, logger),
		env.NewDockerProvider(runner, cfg.Docker, logger),
	)

	collector := report.NewCollector(logger)

	var notifiers []notify.Notifier
	if cfg.Notifications.Bell {
		notifiers = append(notifiers, notify.NewBellNotifier())
	}
	if cfg.Notifications.Email.Enabled {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg.Notifications.Email))
	}
	dispatcher := notify.NewDispatcher(logger, cfg.Notifications.Quiet, notifiers...)

	engineCfg := engine.EngineConfig{
		StageTimeout:       cfg.Runner.StageTimeout,
		EnvironmentTimeout: cfg.Runner.EnvironmentTimeout,
		Workdir:            workDir,
	}

	opts := []engine.EngineOption{engine.WithDispatcher(dispatcher)}
	if stageOut != nil {
		opts = append(opts, engine.WithStageOutput(stageOut))
	}

	return engine.NewEngine(store, registry, collector, engineCfg, logger, opts...), nil
}
