// Package pipeline runs an ordered list of named deployment stages through a
// single driver. The verbose/quiet distinction lives entirely in the Reporter
// given to the Runner; control flow is identical in both modes.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Stage is one unit of work in the deployment sequence.
type Stage struct {
	// Name identifies the stage in logs and failure banners.
	Name string
	// Banner is the operator-facing milestone line.
	Banner string
	// Fatal stages abort the pipeline on failure. Non-fatal stage errors
	// are reported and the pipeline keeps going.
	Fatal bool
	// Skip, when set and true, bypasses the stage entirely.
	Skip func() bool
	// Run does the work, writing any subprocess output to out.
	Run func(ctx context.Context, out io.Writer) error
}

// Result records the outcome of one stage.
type Result struct {
	Stage   string
	Skipped bool
	Err     error
}

// Runner executes stages sequentially, stopping at the first fatal failure.
type Runner struct {
	reporter Reporter
}

func NewRunner(reporter Reporter) *Runner {
	return &Runner{reporter: reporter}
}

// Run executes the stages in order. The returned error is non-nil only when a
// fatal stage failed; tolerated failures are visible in the results.
func (r *Runner) Run(ctx context.Context, stages []Stage) ([]Result, error) {
	log := zerolog.Ctx(ctx)
	results := make([]Result, 0, len(stages))

	for _, stage := range stages {
		if stage.Skip != nil && stage.Skip() {
			log.Debug().Str("stage", stage.Name).Msg("stage skipped")
			results = append(results, Result{Stage: stage.Name, Skipped: true})
			continue
		}

		r.reporter.StageStart(stage.Name, stage.Banner)
		err := stage.Run(ctx, r.reporter.Sink())
		r.reporter.StageDone(stage.Name, err, stage.Fatal)
		results = append(results, Result{Stage: stage.Name, Err: err})

		if err == nil {
			continue
		}
		if stage.Fatal {
			log.Error().Err(err).Str("stage", stage.Name).Msg("fatal stage failed")
			return results, fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		log.Warn().Err(err).Str("stage", stage.Name).Msg("stage failed, continuing")
	}

	return results, nil
}
