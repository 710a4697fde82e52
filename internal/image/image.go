// Package image builds the application image through the Docker Engine API
// and exposes the saved image stream for piping to the remote host.
package image

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/go-archive"
	"github.com/rs/zerolog"
)

// Builder abstracts the local container build tool.
type Builder interface {
	// Build builds contextDir into an image tagged tag, writing build
	// progress to out. commitSHA and a UTC timestamp are passed as the
	// COMMIT_SHA and BUILD_TIME build args.
	Build(ctx context.Context, out io.Writer, contextDir, tag, commitSHA string) error
	// Save streams the built image as a tar archive.
	Save(ctx context.Context, tag string) (io.ReadCloser, error)
	Close() error
}

type DockerBuilder struct {
	cli *client.Client
}

func NewDockerBuilder() (*DockerBuilder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerBuilder{cli: cli}, nil
}

func (b *DockerBuilder) Build(ctx context.Context, out io.Writer, contextDir, tag, commitSHA string) error {
	log := zerolog.Ctx(ctx)

	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}
	defer buildContext.Close()

	buildTime := time.Now().UTC().Format(time.RFC3339)
	buildOptions := build.ImageBuildOptions{
		Tags: []string{tag},
		BuildArgs: map[string]*string{
			"COMMIT_SHA": &commitSHA,
			"BUILD_TIME": &buildTime,
		},
		Dockerfile: "Dockerfile",
		Remove:     true,
	}
	resp, err := b.cli.ImageBuild(ctx, buildContext, buildOptions)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("decode build output: %w", err)
		}
		if jm.Error != nil {
			return fmt.Errorf("build failed: %s", jm.Error.Message)
		}
		if stream := strings.TrimSpace(jm.Stream); stream != "" {
			fmt.Fprintln(out, stream)
		}
	}

	log.Info().Str("tag", tag).Str("commit", commitSHA).Msg("built image")
	return nil
}

func (b *DockerBuilder) Save(ctx context.Context, tag string) (io.ReadCloser, error) {
	rc, err := b.cli.ImageSave(ctx, []string{tag})
	if err != nil {
		return nil, fmt.Errorf("save image %s: %w", tag, err)
	}
	return rc, nil
}

func (b *DockerBuilder) Close() error { return b.cli.Close() }
