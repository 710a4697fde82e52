package remote

import (
	"fmt"
	"strings"
	"time"
)

// Warm-up after compose up (lets the database accept connections; there is no
// readiness protocol to poll) and settle time after migrations.
const (
	WarmupDelay = 10 * time.Second
	SettleDelay = 5 * time.Second
)

// MigrationsDirName is the staging directory under the remote deploy dir.
const MigrationsDirName = "migrations"

// RestartScript renders the single remote session that restarts the stack and
// best-effort applies staged migrations.
type RestartScript struct {
	RemoteDir   string
	DBContainer string
	DBUser      string
	DBName      string
	// HasMigrations toggles the apply loop; when false no migrations were
	// staged and the script never touches the migrations directory.
	HasMigrations bool
}

// Render produces the shell script executed in one ssh session. Stack
// teardown tolerates "nothing running"; each migration's failure is logged
// and the loop keeps going, since reapplying an already-applied migration is
// an expected failure mode; staged files are removed regardless of outcome.
func (s RestartScript) Render() string {
	var b strings.Builder
	b.WriteString("set -e\n")
	fmt.Fprintf(&b, "cd %s\n", s.RemoteDir)
	b.WriteString("docker compose down --remove-orphans || true\n")
	b.WriteString("docker compose up -d\n")
	fmt.Fprintf(&b, "sleep %d\n", int(WarmupDelay.Seconds()))

	if s.HasMigrations {
		fmt.Fprintf(&b, "for f in %s/*.sql; do\n", MigrationsDirName)
		b.WriteString("  [ -e \"$f\" ] || continue\n")
		b.WriteString("  echo \"applying $f\"\n")
		fmt.Fprintf(&b, "  docker exec -i %s psql -U %s -d %s < \"$f\" || echo \"migration $f failed, continuing\"\n",
			s.DBContainer, s.DBUser, s.DBName)
		b.WriteString("done\n")
		fmt.Fprintf(&b, "rm -f %s/*.sql\n", MigrationsDirName)
	}

	fmt.Fprintf(&b, "sleep %d\n", int(SettleDelay.Seconds()))
	b.WriteString("docker image prune -f || true\n")
	return b.String()
}

// QuickRestartScript restarts the already-deployed stack without rebuilding
// or transferring anything.
func QuickRestartScript(remoteDir string) string {
	return fmt.Sprintf("cd %s && docker compose restart", remoteDir)
}

// MkdirScript ensures a remote directory exists.
func MkdirScript(dir string) string {
	return fmt.Sprintf("mkdir -p %s", dir)
}

// LoadImageCommand receives a docker image stream on stdin.
const LoadImageCommand = "docker load"
