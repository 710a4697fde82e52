// Package migrate manages the local migrations directory: pending *.sql files
// at its top level, applied ones archived under applied/. The archive plus
// version control is the only record of what ran; there is no tracking table,
// so migration authors own idempotence.
package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const AppliedDirName = "applied"

// Pending returns the top-level *.sql files in dir, sorted lexically so
// numeric-prefixed names apply in order. A missing directory means no pending
// migrations, not an error.
func Pending(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Archive moves the given pending files into dir/applied, creating the
// archive directory on first use. Files are moved unconditionally: a
// migration that failed remotely is archived too, since re-staging it on the
// next run would only repeat the failure.
func Archive(ctx context.Context, dir string, files []string) error {
	log := zerolog.Ctx(ctx)

	appliedDir := filepath.Join(dir, AppliedDirName)
	if err := os.MkdirAll(appliedDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", appliedDir, err)
	}

	for _, name := range files {
		src := filepath.Join(dir, name)
		dst := filepath.Join(appliedDir, name)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
		log.Debug().Str("file", name).Msg("archived migration")
	}

	return nil
}
