// Package gitcmd runs the external git client for repository jobs.
// The engine never speaks the git protocol itself; it spawns the
// binary and consults only the exit code, logging captured stderr for
// operators.
package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Client invokes a git executable. The zero value is not usable; build
// one with New.
type Client struct {
	gitPath string
	log     *slog.Logger
}

// New returns a Client running the executable at gitPath, resolved
// through PATH when not absolute. An empty gitPath means "git".
func New(gitPath string, logger *slog.Logger) *Client {
	if gitPath == "" {
		gitPath = "git"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gitPath: gitPath, log: logger}
}

// Clone clones uri into dest, as a mirror when mirror is set. It
// returns the subprocess exit code; err is non-nil only when the
// process could not run at all.
func (c *Client) Clone(ctx context.Context, uri, dest string, mirror bool) (int, error) {
	args := []string{"clone"}
	if mirror {
		args = append(args, "--mirror")
	}
	args = append(args, "--", uri, dest)
	return c.run(ctx, "", args...)
}

// FetchRemote runs an incremental fetch inside the existing clone at
// dir. It returns the subprocess exit code; err is non-nil only when
// the process could not run at all.
func (c *Client) FetchRemote(ctx context.Context, dir string) (int, error) {
	return c.run(ctx, dir, "fetch")
}

// run executes git with args. dir, when non-empty, becomes the process
// working directory. Stderr is captured and logged on non-zero exits
// so failures stay diagnosable even though only the code is consulted.
func (c *Client) run(ctx context.Context, dir string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		c.log.Debug("git exited non-zero",
			"args", strings.Join(args, " "),
			"dir", dir,
			"code", code,
			"stderr", strings.TrimSpace(stderr.String()),
		)
		return code, nil
	}
	return -1, fmt.Errorf("run git %s: %w", strings.Join(args, " "), err)
}
