package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/shipit-poc/internal/config"
	"github.com/yz4230/shipit-poc/internal/entity"
	"github.com/yz4230/shipit-poc/internal/gitops"
	"github.com/yz4230/shipit-poc/internal/history"
	"github.com/yz4230/shipit-poc/internal/image"
	"github.com/yz4230/shipit-poc/internal/orchestrator"
	"github.com/yz4230/shipit-poc/internal/pipeline"
	"github.com/yz4230/shipit-poc/internal/remote"
)

var rootFlags struct {
	verbose bool
	quiet   bool
	config  string
}

var rootCmd = &cobra.Command{
	Use:   "shipit [quick]",
	Short: "Deploy the containerized app in the current directory to one remote host over SSH",
	Long: `shipit runs the full deployment pipeline: commit and push local changes,
build the container image, stream it to the remote host, ship the compose
file and env file, stage and apply pending SQL migrations, restart the
stack, and report health.

Pass the literal argument "quick" to skip everything except a remote
restart and a health probe.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		mode := entity.DeployModeFull
		if len(args) == 1 && args[0] == "quick" {
			mode = entity.DeployModeQuick
		}

		cfg, err := config.Load(rootFlags.config)
		if err != nil {
			return err
		}
		if !cfg.HostConfigured() {
			return fmt.Errorf("no remote host configured: set SHIPIT_HOST or host in %s", rootFlags.config)
		}

		workdir, err := os.Getwd()
		if err != nil {
			return err
		}

		reporter, err := newReporter(cfg)
		if err != nil {
			return err
		}
		defer reporter.Close()

		opts := orchestrator.Options{
			Config:   cfg,
			Reporter: reporter,
			Source:   gitops.New(workdir),
			Runner:   remote.NewSSHRunner(cfg.Host),
			Ledger:   openLedger(cfg),
			WorkDir:  workdir,
		}

		if mode == entity.DeployModeFull {
			builder, err := image.NewDockerBuilder()
			if err != nil {
				return err
			}
			defer builder.Close()
			opts.Builder = builder
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = log.Logger.WithContext(ctx)

		orch := orchestrator.New(opts)
		if mode == entity.DeployModeQuick {
			return orch.Quick(ctx)
		}
		return orch.Full(ctx)
	},
}

func setupLogger() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if rootFlags.verbose {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}

func newReporter(cfg *config.DeployConfig) (pipeline.Reporter, error) {
	if !rootFlags.quiet {
		return pipeline.NewStreamReporter(os.Stdout), nil
	}
	deployLog, err := pipeline.OpenDeployLog(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	return pipeline.NewQuietReporter(os.Stdout, deployLog), nil
}

// openLedger is best-effort: a broken history DB degrades to no recording.
func openLedger(cfg *config.DeployConfig) history.DeploymentRepository {
	db, err := history.NewSQLiteDB(cfg.HistoryDB)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.HistoryDB).Msg("deployment history disabled")
		return nil
	}
	return history.NewDeploymentRepository(db)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("deployment failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.quiet, "quiet", "q", false, "One milestone line per stage; full output goes to the deploy log")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", config.DefaultOverrideFile, "Path to the override file")
	rootCmd.AddCommand(historyCmd)
}
