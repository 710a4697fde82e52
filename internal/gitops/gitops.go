// Package gitops wraps the git shell-outs the pipeline needs: syncing the
// working tree before a build and committing the migration archive afterward.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type execFunc func(ctx context.Context, dir string, out io.Writer, args ...string) (string, error)

// Git operates on one local working tree.
type Git struct {
	dir  string
	exec execFunc
}

func New(dir string) *Git {
	return &Git{dir: dir, exec: runGit}
}

// IsDirty reports whether the tree has uncommitted changes.
func (g *Git) IsDirty(ctx context.Context) (bool, error) {
	out, err := g.exec(ctx, g.dir, io.Discard, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// HeadShortSHA returns the abbreviated commit hash of HEAD.
func (g *Git) HeadShortSHA(ctx context.Context) (string, error) {
	out, err := g.exec(ctx, g.dir, io.Discard, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Sync stages and commits any local changes under a timestamped message, then
// pushes. A clean tree still pushes, so a previously committed but unpushed
// state ships too; git exits zero on "everything up-to-date".
func (g *Git) Sync(ctx context.Context, out io.Writer) error {
	log := zerolog.Ctx(ctx)

	dirty, err := g.IsDirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		if _, err := g.exec(ctx, g.dir, out, "add", "-A"); err != nil {
			return fmt.Errorf("git add: %w", err)
		}
		msg := fmt.Sprintf("deploy: %s UTC", time.Now().UTC().Format("2006-01-02 15:04:05"))
		if _, err := g.exec(ctx, g.dir, out, "commit", "-m", msg); err != nil {
			return fmt.Errorf("git commit: %w", err)
		}
		log.Info().Str("message", msg).Msg("committed local changes")
	}

	if _, err := g.exec(ctx, g.dir, out, "push"); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// CommitArchive records the movement of applied migrations as its own commit
// and pushes it. With nothing to record it is a no-op.
func (g *Git) CommitArchive(ctx context.Context, out io.Writer, migrationsDir string) error {
	dirty, err := g.IsDirty(ctx)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if _, err := g.exec(ctx, g.dir, out, "add", "-A", migrationsDir); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if _, err := g.exec(ctx, g.dir, out, "commit", "-m", "chore: archive applied migrations"); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if _, err := g.exec(ctx, g.dir, out, "push"); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func runGit(ctx context.Context, dir string, out io.Writer, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	cmd.Stdout = io.MultiWriter(&stdout, out)
	cmd.Stderr = out
	zerolog.Ctx(ctx).Debug().Strs("command", cmd.Args).Msg("executing git command")
	if err := cmd.Run(); err != nil {
		return stdout.String(), err
	}
	return stdout.String(), nil
}
