package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

var (
	ErrNotRepository = errors.New("not a git repository")
	ErrGitMissing    = errors.New("git executable not found")
)

// Runner executes a command in dir and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Committer stages, commits and pushes changed paths with git.
type Committer struct {
	dir    string
	runner Runner
	log    *slog.Logger
}

func NewCommitter(dir string, runner Runner, log *slog.Logger) *Committer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Committer{dir: dir, runner: runner, log: log}
}

// Commit stages paths and records a commit with message.
func (c *Committer) Commit(ctx context.Context, message string, paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("git commit: no paths given")
	}
	if _, err := c.git(ctx, "status", "--porcelain"); err != nil {
		if errors.Is(err, ErrGitMissing) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNotRepository, err)
	}

	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := c.git(ctx, addArgs...); err != nil {
		return err
	}
	if _, err := c.git(ctx, "commit", "-m", message); err != nil {
		return err
	}
	c.log.Info("git commit created", "message", message, "paths", paths)
	return nil
}

// Push pushes the current branch to its upstream.
func (c *Committer) Push(ctx context.Context) error {
	if _, err := c.git(ctx, "push"); err != nil {
		return err
	}
	c.log.Info("git push complete")
	return nil
}

func (c *Committer) git(ctx context.Context, args ...string) ([]byte, error) {
	out, err := c.runner.Run(ctx, c.dir, "git", args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return out, ErrGitMissing
		}
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return out, fmt.Errorf("git %s: %w", args[0], err)
		}
		return out, fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}
	return out, nil
}
