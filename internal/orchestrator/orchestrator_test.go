package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yz4230/shipit-poc/internal/config"
	"github.com/yz4230/shipit-poc/internal/pipeline"
)

type fakeRunner struct {
	cmds       []string
	healthBody string
	failOn     string
}

func (f *fakeRunner) record(kind, detail string) error {
	call := kind + ":" + detail
	f.cmds = append(f.cmds, call)
	if f.failOn != "" && strings.Contains(call, f.failOn) {
		return errors.New("exit status 1")
	}
	return nil
}

func (f *fakeRunner) Run(ctx context.Context, out io.Writer, script string) error {
	return f.record("ssh", script)
}

func (f *fakeRunner) RunWithInput(ctx context.Context, out io.Writer, stdin io.Reader, command string) error {
	io.Copy(io.Discard, stdin)
	return f.record("ssh-stdin", command)
}

func (f *fakeRunner) Output(ctx context.Context, command string) (string, error) {
	if err := f.record("output", command); err != nil {
		return "", err
	}
	if f.healthBody == "" {
		return "", errors.New("connection refused")
	}
	return f.healthBody, nil
}

func (f *fakeRunner) Copy(ctx context.Context, out io.Writer, locals []string, target string) error {
	return f.record("scp", strings.Join(locals, ",")+" -> "+target)
}

func (f *fakeRunner) joined() string { return strings.Join(f.cmds, "\n") }

type fakeSource struct {
	calls []string
}

func (f *fakeSource) Sync(ctx context.Context, out io.Writer) error {
	f.calls = append(f.calls, "sync")
	return nil
}

func (f *fakeSource) CommitArchive(ctx context.Context, out io.Writer, dir string) error {
	f.calls = append(f.calls, "commit-archive")
	return nil
}

func (f *fakeSource) HeadShortSHA(ctx context.Context) (string, error) {
	f.calls = append(f.calls, "sha")
	return "abc1234", nil
}

type fakeBuilder struct {
	builds   []string
	buildErr error
}

func (f *fakeBuilder) Build(ctx context.Context, out io.Writer, contextDir, tag, commitSHA string) error {
	f.builds = append(f.builds, tag+"@"+commitSHA)
	return f.buildErr
}

func (f *fakeBuilder) Save(ctx context.Context, tag string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("image-tar")), nil
}

func (f *fakeBuilder) Close() error { return nil }

type fixture struct {
	orch    *Orchestrator
	runner  *fakeRunner
	source  *fakeSource
	builder *fakeBuilder
	workdir string
	out     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	workdir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workdir, "docker-compose.yml"), []byte("services: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(filepath.Join(workdir, "no-override.yml"))
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		runner:  &fakeRunner{healthBody: `{"status":"ok"}`},
		source:  &fakeSource{},
		builder: &fakeBuilder{},
		workdir: workdir,
		out:     &bytes.Buffer{},
	}
	f.orch = New(Options{
		Config:   cfg,
		Reporter: pipeline.NewStreamReporter(f.out),
		Source:   f.source,
		Builder:  f.builder,
		Runner:   f.runner,
		WorkDir:  workdir,
	})
	return f
}

func (f *fixture) addMigrations(t *testing.T, names ...string) {
	t.Helper()
	dir := filepath.Join(f.workdir, "migrations")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestQuickModeOnlyRestartsAndProbes(t *testing.T) {
	f := newFixture(t)
	if err := f.orch.Quick(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(f.source.calls) != 0 {
		t.Errorf("quick mode touched source control: %v", f.source.calls)
	}
	if len(f.builder.builds) != 0 {
		t.Errorf("quick mode built an image: %v", f.builder.builds)
	}
	if len(f.runner.cmds) != 2 {
		t.Fatalf("quick mode issued %d remote commands; want restart + probe:\n%s", len(f.runner.cmds), f.runner.joined())
	}
	if !strings.Contains(f.runner.cmds[0], "docker compose restart") {
		t.Errorf("first command = %q; want restart", f.runner.cmds[0])
	}
	if !strings.Contains(f.runner.cmds[1], "curl") {
		t.Errorf("second command = %q; want health probe", f.runner.cmds[1])
	}
	if !strings.Contains(f.out.String(), "Health: OK") {
		t.Errorf("missing health status line:\n%s", f.out.String())
	}
}

func TestFullPipelineWithoutMigrations(t *testing.T) {
	f := newFixture(t)
	if err := f.orch.Full(context.Background()); err != nil {
		t.Fatal(err)
	}

	joined := f.runner.joined()
	if strings.Contains(joined, "migrations") {
		t.Errorf("no migrations pending, but remote migration commands issued:\n%s", joined)
	}
	if got := strings.Join(f.source.calls, ","); got != "sync,sha" {
		t.Errorf("source calls = %q; archival must be skipped", got)
	}
	if len(f.builder.builds) != 1 || f.builder.builds[0] != "myapp:latest@abc1234" {
		t.Errorf("builds = %v", f.builder.builds)
	}
	if !strings.Contains(joined, "ssh-stdin:docker load") {
		t.Errorf("image must stream into docker load:\n%s", joined)
	}
}

func TestFullPipelineStagesAndArchivesMigrations(t *testing.T) {
	f := newFixture(t)
	f.addMigrations(t, "002_b.sql", "001_a.sql")

	if err := f.orch.Full(context.Background()); err != nil {
		t.Fatal(err)
	}

	joined := f.runner.joined()
	if !strings.Contains(joined, "mkdir -p /home/deploy/app/migrations") {
		t.Errorf("remote migrations dir not created:\n%s", joined)
	}
	// Staged in lexical order.
	idx := strings.Index(joined, "001_a.sql")
	if idx < 0 || strings.Index(joined, "002_b.sql") < idx {
		t.Errorf("migrations not staged in lexical order:\n%s", joined)
	}
	if !strings.Contains(joined, "psql -U postgres -d appdb") {
		t.Errorf("restart script missing migration apply:\n%s", joined)
	}
	if got := strings.Join(f.source.calls, ","); !strings.Contains(got, "commit-archive") {
		t.Errorf("archival commit missing: %q", got)
	}

	// Local files moved to applied/.
	for _, name := range []string{"001_a.sql", "002_b.sql"} {
		if _, err := os.Stat(filepath.Join(f.workdir, "migrations", "applied", name)); err != nil {
			t.Errorf("%s not archived locally: %v", name, err)
		}
	}
}

func TestFullPipelineFatalBuildFailure(t *testing.T) {
	f := newFixture(t)
	f.builder.buildErr = errors.New("dockerfile syntax error")

	err := f.orch.Full(context.Background())
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if !strings.Contains(err.Error(), "build-image") {
		t.Errorf("error should name the failed stage: %v", err)
	}
	if len(f.runner.cmds) != 0 {
		t.Errorf("nothing must reach the remote host after a failed build:\n%s", f.runner.joined())
	}
}

func TestFullPipelineIsRepeatable(t *testing.T) {
	f := newFixture(t)
	for i := range 2 {
		if err := f.orch.Full(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
}

func TestFullPipelineUnreachableHealthIsAdvisory(t *testing.T) {
	f := newFixture(t)
	f.runner.healthBody = ""

	if err := f.orch.Full(context.Background()); err != nil {
		t.Fatalf("unreachable health must not fail the pipeline: %v", err)
	}
	if !strings.Contains(f.out.String(), "health: Starting") {
		t.Errorf("missing advisory health line:\n%s", f.out.String())
	}
}

func TestFullPipelineShipsEnvFileRenamed(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(filepath.Join(f.workdir, ".env.production"), []byte("A=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.orch.Full(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("scp:%s -> /home/deploy/app/.env", filepath.Join(f.workdir, ".env.production"))
	if !strings.Contains(f.runner.joined(), want) {
		t.Errorf("env file not shipped under generic name:\n%s", f.runner.joined())
	}
}
