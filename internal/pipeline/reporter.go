package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yz4230/shipit-poc/internal/utils"
)

// tailLineCount is how much of the captured log the quiet reporter surfaces
// when a fatal stage fails.
const tailLineCount = 20

// Reporter is the output strategy shared by both presentation modes.
type Reporter interface {
	// StageStart announces a stage to the operator.
	StageStart(name, banner string)
	// StageDone reports the stage outcome.
	StageDone(name string, err error, fatal bool)
	// Sink is where subprocess output goes.
	Sink() io.Writer
	// Statusf prints an operator-facing status line outside any stage.
	Statusf(format string, args ...any)
	Close() error
}

// StreamReporter prints banners and streams all subprocess output inline.
type StreamReporter struct {
	out io.Writer
}

func NewStreamReporter(out io.Writer) *StreamReporter {
	return &StreamReporter{out: out}
}

func (r *StreamReporter) StageStart(name, banner string) {
	fmt.Fprintf(r.out, "==> %s\n", banner)
}

func (r *StreamReporter) StageDone(name string, err error, fatal bool) {
	if err == nil {
		return
	}
	if fatal {
		fmt.Fprintf(r.out, "!! %s failed: %v\n", name, err)
		return
	}
	fmt.Fprintf(r.out, "-- %s: %v (continuing)\n", name, err)
}

func (r *StreamReporter) Sink() io.Writer { return r.out }

func (r *StreamReporter) Statusf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *StreamReporter) Close() error { return nil }

// QuietReporter prints one milestone line per stage and captures subprocess
// output in an append-only log file. On fatal failure it dumps the tail of
// that log so the operator sees what broke without scrolling through
// everything that worked.
type QuietReporter struct {
	out io.Writer
	log *DeployLog
}

func NewQuietReporter(out io.Writer, log *DeployLog) *QuietReporter {
	return &QuietReporter{out: out, log: log}
}

func (r *QuietReporter) StageStart(name, banner string) {
	fmt.Fprintf(r.out, "%s\n", banner)
	fmt.Fprintf(r.log, "\n### stage: %s\n", name)
}

func (r *QuietReporter) StageDone(name string, err error, fatal bool) {
	if err == nil {
		return
	}
	fmt.Fprintf(r.log, "### stage %s error: %v\n", name, err)
	if !fatal {
		fmt.Fprintf(r.out, "warning: %s: %v (continuing)\n", name, err)
		return
	}
	fmt.Fprintf(r.out, "FAILED: %s\n", name)
	for _, line := range r.log.Tail(tailLineCount) {
		fmt.Fprintf(r.out, "  | %s\n", line)
	}
	fmt.Fprintf(r.out, "full log: %s\n", r.log.Path())
}

func (r *QuietReporter) Sink() io.Writer { return r.log }

func (r *QuietReporter) Statusf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *QuietReporter) Close() error { return r.log.Close() }

// DeployLog is the append-only sink backing quiet mode. It is never consulted
// by the pipeline itself, only surfaced to the operator on failure.
type DeployLog struct {
	path string
	f    *os.File
}

func OpenDeployLog(path string) (*DeployLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open deploy log: %w", err)
	}
	return &DeployLog{path: path, f: f}, nil
}

func (l *DeployLog) Write(p []byte) (int, error) { return l.f.Write(p) }

func (l *DeployLog) Path() string { return l.path }

// Tail returns the last n lines currently in the log file.
func (l *DeployLog) Tail(n int) []string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	return utils.TailLines(strings.ReplaceAll(string(data), "\r\n", "\n"), n)
}

func (l *DeployLog) Close() error { return l.f.Close() }
