// Package health performs the advisory post-deploy probe. Its outcome is
// reported to the operator and never affects the process exit status.
package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/yz4230/shipit-poc/internal/remote"
)

type Status string

const (
	StatusOK       Status = "OK"
	StatusStarting Status = "Starting"
)

// healthyTokens are matched case-sensitively as literal substrings of the
// response body.
var healthyTokens = []string{"ok", "true", "healthy"}

// Classify reports whether a health endpoint body looks healthy.
func Classify(body string) bool {
	return lo.SomeBy(healthyTokens, func(token string) bool {
		return strings.Contains(body, token)
	})
}

// Probe requests the health URL from the remote host itself. An unreachable
// endpoint means "not yet healthy", never an error.
func Probe(ctx context.Context, runner remote.Runner, url string) Status {
	log := zerolog.Ctx(ctx)

	body, err := runner.Output(ctx, fmt.Sprintf("curl -fsS -m 10 %s", url))
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("health endpoint unreachable")
		return StatusStarting
	}
	if Classify(body) {
		return StatusOK
	}
	log.Debug().Str("body", body).Msg("health body did not match any healthy token")
	return StatusStarting
}
