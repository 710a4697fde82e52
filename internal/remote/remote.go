// Package remote drives the deployment target through composed ssh and scp
// shell-outs. The transport is deliberately the system ssh binary so the
// operator's existing config, agent and known_hosts apply unchanged.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/rs/zerolog"
)

// Runner executes commands on, and copies files to, one remote host.
type Runner interface {
	// Run executes a shell script on the remote host, streaming combined
	// output to out.
	Run(ctx context.Context, out io.Writer, script string) error
	// RunWithInput executes a remote command with stdin wired to the given
	// reader. Used to pipe the saved image straight into docker load.
	RunWithInput(ctx context.Context, out io.Writer, stdin io.Reader, command string) error
	// Output executes a remote command and returns its stdout.
	Output(ctx context.Context, command string) (string, error)
	// Copy transfers local files to the remote target path (scp semantics:
	// target may be a directory or, for a single source, a file name).
	Copy(ctx context.Context, out io.Writer, locals []string, target string) error
}

// SSHRunner shells out to ssh/scp against a single host.
type SSHRunner struct {
	host string
}

func NewSSHRunner(host string) *SSHRunner {
	return &SSHRunner{host: host}
}

func (r *SSHRunner) Run(ctx context.Context, out io.Writer, script string) error {
	cmd := exec.CommandContext(ctx, "ssh", r.host, script)
	cmd.Stdout = out
	cmd.Stderr = out
	logCommand(ctx, cmd)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ssh %s: %w", r.host, err)
	}
	return nil
}

func (r *SSHRunner) RunWithInput(ctx context.Context, out io.Writer, stdin io.Reader, command string) error {
	cmd := exec.CommandContext(ctx, "ssh", r.host, command)
	cmd.Stdin = stdin
	cmd.Stdout = out
	cmd.Stderr = out
	logCommand(ctx, cmd)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ssh %s: %w", r.host, err)
	}
	return nil
}

func (r *SSHRunner) Output(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "ssh", r.host, command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	logCommand(ctx, cmd)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ssh %s: %w (stderr: %s)", r.host, err, stderr.String())
	}
	return stdout.String(), nil
}

func (r *SSHRunner) Copy(ctx context.Context, out io.Writer, locals []string, target string) error {
	args := append([]string{}, locals...)
	args = append(args, fmt.Sprintf("%s:%s", r.host, target))
	cmd := exec.CommandContext(ctx, "scp", args...)
	cmd.Stdout = out
	cmd.Stderr = out
	logCommand(ctx, cmd)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("scp to %s: %w", target, err)
	}
	return nil
}

func logCommand(ctx context.Context, cmd *exec.Cmd) {
	zerolog.Ctx(ctx).Debug().Strs("command", cmd.Args).Msg("executing remote command")
}
