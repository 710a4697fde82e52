// Package orchestrator wires the deployment stages into the two entry points:
// the full build-transfer-restart-migrate pipeline and the restart-only quick
// mode. One deployment runs to completion at a time; there is no provision
// for concurrent invocations against the same host.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yz4230/shipit-poc/internal/config"
	"github.com/yz4230/shipit-poc/internal/entity"
	"github.com/yz4230/shipit-poc/internal/health"
	"github.com/yz4230/shipit-poc/internal/history"
	"github.com/yz4230/shipit-poc/internal/image"
	"github.com/yz4230/shipit-poc/internal/migrate"
	"github.com/yz4230/shipit-poc/internal/pipeline"
	"github.com/yz4230/shipit-poc/internal/remote"
	"github.com/yz4230/shipit-poc/internal/utils"
)

// RemoteEnvFileName is what the production env file is called on the remote
// side, whatever it is called locally.
const RemoteEnvFileName = ".env"

// SourceControl is the slice of gitops the pipeline needs.
type SourceControl interface {
	Sync(ctx context.Context, out io.Writer) error
	CommitArchive(ctx context.Context, out io.Writer, migrationsDir string) error
	HeadShortSHA(ctx context.Context) (string, error)
}

type Options struct {
	Config   *config.DeployConfig
	Reporter pipeline.Reporter
	Source   SourceControl
	Builder  image.Builder
	Runner   remote.Runner
	// Ledger records runs; nil disables recording, and ledger errors never
	// fail a deployment.
	Ledger history.DeploymentRepository
	// WorkDir is the repository root holding the compose file, env file and
	// migrations directory.
	WorkDir string
}

type Orchestrator struct {
	opts Options

	commitSHA string
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// Quick restarts the remote stack and probes health. No source sync, build or
// transfer happens in this mode.
func (o *Orchestrator) Quick(ctx context.Context) error {
	cfg := o.opts.Config
	record := o.beginRecord(ctx, entity.DeployModeQuick)
	started := time.Now()

	o.opts.Reporter.StageStart("restart-remote", "Restarting remote stack...")
	err := o.opts.Runner.Run(ctx, o.opts.Reporter.Sink(), remote.QuickRestartScript(cfg.RemoteDir))
	o.opts.Reporter.StageDone("restart-remote", err, true)
	if err != nil {
		o.finishRecord(ctx, record, entity.DeploymentStatusFailed, "restart-remote", false, started)
		return fmt.Errorf("stage restart-remote: %w", err)
	}

	status := health.Probe(ctx, o.opts.Runner, cfg.HealthURL())
	o.opts.Reporter.Statusf("Health: %s", status)
	o.finishRecord(ctx, record, entity.DeploymentStatusSuccess, "", status == health.StatusOK, started)
	return nil
}

// Full runs the complete pipeline. The returned error is non-nil only when a
// fatal stage failed; migration apply errors, archival errors and health
// outcomes are advisory.
func (o *Orchestrator) Full(ctx context.Context) error {
	cfg := o.opts.Config
	record := o.beginRecord(ctx, entity.DeployModeFull)
	started := time.Now()

	migrationsDir := filepath.Join(o.opts.WorkDir, cfg.MigrationsDir)
	pending, err := migrate.Pending(migrationsDir)
	if err != nil {
		o.finishRecord(ctx, record, entity.DeploymentStatusFailed, "stage-migrations", false, started)
		return err
	}

	runner := pipeline.NewRunner(o.opts.Reporter)
	results, err := runner.Run(ctx, o.stages(pending, migrationsDir))
	if err != nil {
		o.finishRecord(ctx, record, entity.DeploymentStatusFailed, failedStage(results), false, started)
		return err
	}

	status := health.Probe(ctx, o.opts.Runner, cfg.HealthURL())
	o.opts.Reporter.Statusf("Deployed %s to %s (app port %d) — health: %s", cfg.Image, cfg.Host, cfg.AppPort, status)
	o.finishRecord(ctx, record, entity.DeploymentStatusSuccess, "", status == health.StatusOK, started)
	return nil
}

func (o *Orchestrator) stages(pending []string, migrationsDir string) []pipeline.Stage {
	cfg := o.opts.Config
	noMigrations := func() bool { return len(pending) == 0 }

	return []pipeline.Stage{
		{
			Name:   "sync-source",
			Banner: "Syncing source...",
			Fatal:  false,
			Run: func(ctx context.Context, out io.Writer) error {
				return o.opts.Source.Sync(ctx, out)
			},
		},
		{
			Name:   "build-image",
			Banner: "Building image...",
			Fatal:  true,
			Run: func(ctx context.Context, out io.Writer) error {
				sha, err := o.opts.Source.HeadShortSHA(ctx)
				if err != nil {
					return err
				}
				o.commitSHA = sha
				return o.opts.Builder.Build(ctx, out, o.opts.WorkDir, cfg.Image, sha)
			},
		},
		{
			Name:   "ship-image",
			Banner: "Shipping image...",
			Fatal:  true,
			Run: func(ctx context.Context, out io.Writer) error {
				rc, err := o.opts.Builder.Save(ctx, cfg.Image)
				if err != nil {
					return err
				}
				defer rc.Close()
				return o.opts.Runner.RunWithInput(ctx, out, rc, remote.LoadImageCommand)
			},
		},
		{
			Name:   "ship-config",
			Banner: "Shipping config...",
			Fatal:  true,
			Run: func(ctx context.Context, out io.Writer) error {
				if err := o.opts.Runner.Run(ctx, out, remote.MkdirScript(cfg.RemoteDir)); err != nil {
					return err
				}
				composePath := filepath.Join(o.opts.WorkDir, cfg.ComposeFile)
				if err := o.opts.Runner.Copy(ctx, out, []string{composePath}, utils.EnsureSuffix(cfg.RemoteDir, "/")); err != nil {
					return err
				}
				envPath := filepath.Join(o.opts.WorkDir, cfg.EnvFile)
				if _, err := os.Stat(envPath); os.IsNotExist(err) {
					return nil
				}
				return o.opts.Runner.Copy(ctx, out, []string{envPath},
					cfg.RemoteDir+"/"+RemoteEnvFileName)
			},
		},
		{
			Name:   "stage-migrations",
			Banner: fmt.Sprintf("Staging %d migration(s)...", len(pending)),
			Fatal:  true,
			Skip:   noMigrations,
			Run: func(ctx context.Context, out io.Writer) error {
				remoteMigrations := cfg.RemoteDir + "/" + remote.MigrationsDirName
				if err := o.opts.Runner.Run(ctx, out, remote.MkdirScript(remoteMigrations)); err != nil {
					return err
				}
				locals := make([]string, len(pending))
				for i, name := range pending {
					locals[i] = filepath.Join(migrationsDir, name)
				}
				return o.opts.Runner.Copy(ctx, out, locals, remoteMigrations+"/")
			},
		},
		{
			Name:   "restart-remote",
			Banner: "Restarting remote stack...",
			Fatal:  true,
			Run: func(ctx context.Context, out io.Writer) error {
				script := remote.RestartScript{
					RemoteDir:     cfg.RemoteDir,
					DBContainer:   cfg.DBContainer,
					DBUser:        cfg.DBUser,
					DBName:        cfg.DBName,
					HasMigrations: len(pending) > 0,
				}
				return o.opts.Runner.Run(ctx, out, script.Render())
			},
		},
		{
			Name:   "archive-migrations",
			Banner: "Archiving migrations...",
			Fatal:  false,
			Skip:   noMigrations,
			Run: func(ctx context.Context, out io.Writer) error {
				if err := migrate.Archive(ctx, migrationsDir, pending); err != nil {
					return err
				}
				return o.opts.Source.CommitArchive(ctx, out, cfg.MigrationsDir)
			},
		},
	}
}

func (o *Orchestrator) beginRecord(ctx context.Context, mode entity.DeployMode) *entity.Deployment {
	if o.opts.Ledger == nil {
		return nil
	}
	dep := &entity.Deployment{
		RunID:  uuid.NewString(),
		Mode:   mode,
		Host:   o.opts.Config.Host,
		Image:  o.opts.Config.Image,
		Status: entity.DeploymentStatusRunning,
	}
	created, err := o.opts.Ledger.Create(ctx, dep)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("could not record deployment start")
		return nil
	}
	return created
}

func (o *Orchestrator) finishRecord(ctx context.Context, record *entity.Deployment, status entity.DeploymentStatus, failed string, healthy bool, started time.Time) {
	if record == nil {
		return
	}
	record.CommitSHA = o.commitSHA
	record.Healthy = healthy
	record.FailedStage = failed
	record.Finish(status, started)
	if _, err := o.opts.Ledger.Update(ctx, record); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("could not record deployment outcome")
	}
}

func failedStage(results []pipeline.Result) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Err != nil {
			return results[i].Stage
		}
	}
	return ""
}
