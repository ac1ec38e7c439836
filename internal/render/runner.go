// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/pdf2md/internal/container"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	logExec(r.logger, name, args, time.Since(start), out.Len(), errb.String(), err)
	return out.Bytes(), errb.Bytes(), err
}

// containerRunner runs the poppler tools inside an image. The directory
// holding the source document is mounted read-only at mountPoint.
type containerRunner struct {
	rt     container.Runtime
	image  string
	mount  container.Mount
	logger *slog.Logger
}

const mountPoint = "/src"

func newContainerRunner(rt container.Runtime, image, hostPath string, logger *slog.Logger) (*containerRunner, string, error) {
	abs, err := filepath.Abs(hostPath)
	if err != nil {
		return nil, "", err
	}
	r := &containerRunner{
		rt:     rt,
		image:  image,
		mount:  container.Mount{Source: filepath.Dir(abs), Target: mountPoint, ReadOnly: true},
		logger: logger,
	}
	return r, mountPoint + "/" + filepath.Base(abs), nil
}

func (r *containerRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	var out, errb bytes.Buffer
	err := r.rt.Run(ctx, container.Invocation{
		Image:   r.image,
		Mounts:  []container.Mount{r.mount},
		Command: append([]string{name}, args...),
		Stdout:  &out,
		Stderr:  &errb,
	})
	logExec(r.logger, r.rt.Name()+" "+name, args, time.Since(start), out.Len(), errb.String(), err)
	return out.Bytes(), errb.Bytes(), err
}

func logExec(logger *slog.Logger, name string, args []string, dur time.Duration, outLen int, stderr string, err error) {
	if err != nil {
		logger.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(stderr, 8<<10),
		)
		return
	}
	logger.Debug("exec ok",
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", dur.Milliseconds(),
		"stdout_bytes", outLen,
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
