// Package image builds the TTS service image from the embedded recipe.
package image

import (
	"archive/tar"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"
)

// Dockerfile is the build recipe: a Python base with piper-tts installed
// and one voice model fetched at build time.
//
//go:embed Dockerfile
var Dockerfile []byte

// DefaultVoice is the voice baked into the image unless overridden.
const DefaultVoice = "en_US-lessac-medium"

type BuildOptions struct {
	Tag   string
	Voice string
	// NoCache forces the voice download to run again.
	NoCache bool
}

// Context returns a tar build context holding only the Dockerfile.
func Context() (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:    "Dockerfile",
		Mode:    0644,
		Size:    int64(len(Dockerfile)),
		ModTime: time.Unix(0, 0),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(Dockerfile); err != nil {
		return nil, fmt.Errorf("write Dockerfile: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

// Build sends the embedded recipe to the daemon and streams progress to out.
func Build(ctx context.Context, docker client.ImageAPIClient, opts BuildOptions, out io.Writer) error {
	buildCtx, err := Context()
	if err != nil {
		return err
	}

	voice := opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	resp, err := docker.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  "Dockerfile",
		Remove:      true,
		NoCache:     opts.NoCache,
		BuildArgs:   map[string]*string{"VOICE": &voice},
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("build image %s: %w", opts.Tag, err)
	}
	defer resp.Body.Close()

	fd, isTerm := term.GetFdInfo(out)
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, fd, isTerm, nil); err != nil {
		return fmt.Errorf("build image %s: %w", opts.Tag, err)
	}
	return nil
}
