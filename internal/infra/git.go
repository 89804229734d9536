package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// killWaitDelay bounds how long Wait keeps reading output after a kill.
const killWaitDelay = 2 * time.Second

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	// Output runs name in dir and returns stdout. Cancelling ctx kills the
	// process tree.
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct {
	pm domain.ProcessManager
}

// NewCommandRunner creates a runner that kills the whole process tree on cancel.
func NewCommandRunner(pm domain.ProcessManager) *RealCommandRunner {
	return &RealCommandRunner{pm: pm}
}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.Cancel = func() error {
		if r.pm != nil {
			if err := r.pm.KillTree(cmd.Process.Pid); err == nil {
				return nil
			}
		}
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = killWaitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.Bytes(), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}

// GitClient implements domain.VersionControl with the git CLI.
type GitClient struct {
	runner CommandRunner
	logger *zap.Logger
}

// NewGitClient creates a git client backed by real processes.
func NewGitClient(pm domain.ProcessManager, logger *zap.Logger) *GitClient {
	return NewGitClientWithRunner(NewCommandRunner(pm), logger)
}

// NewGitClientWithRunner creates a git client with an injected runner (for testing).
func NewGitClientWithRunner(runner CommandRunner, logger *zap.Logger) *GitClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitClient{runner: runner, logger: logger}
}

// IsRepository checks for a .git marker (directory, or file for worktrees/submodules).
func (g *GitClient) IsRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Revision returns HEAD of the working copy.
func (g *GitClient) Revision(ctx context.Context, dir string) (string, error) {
	out, err := g.runner.Output(ctx, dir, "git", "-C", dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to read revision: %w", err)
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", errors.New("failed to read revision: empty output")
	}
	return rev, nil
}

// Pull runs a quiet pull against the tracked upstream.
func (g *GitClient) Pull(ctx context.Context, dir string) error {
	g.logger.Debug("pulling upstream", zap.String("dir", dir))
	if _, err := g.runner.Output(ctx, dir, "git", "-C", dir, "pull", "--quiet"); err != nil {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

// Ensure GitClient implements domain.VersionControl.
var _ domain.VersionControl = (*GitClient)(nil)
