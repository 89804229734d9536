// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultFiles is the upstream layout an install is cloned from.
var DefaultFiles = map[string]string{
	"personas/strict.md":  "You are strict. No small talk.\n",
	"personas/gopnik.md":  "You are a gopnik. Squat and answer.\n",
	"src/index.ts":        "export const PersonasPlugin = async () => ({})\n",
	"commands/persona.md": "---\ndescription: Switch persona\n---\n",
}

// FakeUpstream is a bare git remote, a working copy used to publish changes
// to it, and an install clone that tracks it.
type FakeUpstream struct {
	Root     string
	BareDir  string // Remote
	WorkDir  string // Publisher's working copy
	CloneDir string // Installed upstream clone, the synchronizer's source
}

// NewFakeUpstream creates a new fake upstream rooted at root.
func NewFakeUpstream(root string) *FakeUpstream {
	return &FakeUpstream{
		Root:     root,
		BareDir:  filepath.Join(root, "upstream.git"),
		WorkDir:  filepath.Join(root, "work"),
		CloneDir: filepath.Join(root, "clone"),
	}
}

// Create initializes the remote with DefaultFiles and clones it.
func (f *FakeUpstream) Create() error {
	if err := git(f.Root, "init", "--bare", "--quiet", f.BareDir); err != nil {
		return err
	}
	if err := git(f.Root, "--git-dir", f.BareDir, "symbolic-ref", "HEAD", "refs/heads/main"); err != nil {
		return err
	}
	if err := git(f.Root, "init", "--quiet", f.WorkDir); err != nil {
		return err
	}
	if err := git(f.WorkDir, "checkout", "--quiet", "-b", "main"); err != nil {
		return err
	}
	if err := git(f.WorkDir, "remote", "add", "origin", f.BareDir); err != nil {
		return err
	}
	if err := f.Publish(DefaultFiles, "initial import"); err != nil {
		return err
	}
	return git(f.Root, "clone", "--quiet", f.BareDir, f.CloneDir)
}

// Publish writes files into the publisher's working copy, commits and pushes.
// An empty content removes the file.
func (f *FakeUpstream) Publish(files map[string]string, message string) error {
	for rel, content := range files {
		path := filepath.Join(f.WorkDir, filepath.FromSlash(rel))
		if content == "" {
			if err := git(f.WorkDir, "rm", "--quiet", rel); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}

	if err := git(f.WorkDir, "add", "--all"); err != nil {
		return err
	}
	if err := git(f.WorkDir, "commit", "--quiet", "-m", message); err != nil {
		return err
	}
	return git(f.WorkDir, "push", "--quiet", "origin", "main")
}

// CloneRevision returns HEAD of the install clone.
func (f *FakeUpstream) CloneRevision() (string, error) {
	out, err := gitOutput(f.CloneDir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// PublishedRevision returns HEAD of the remote.
func (f *FakeUpstream) PublishedRevision() (string, error) {
	out, err := gitOutput(f.Root, "--git-dir", f.BareDir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func git(dir string, args ...string) error {
	_, err := gitOutput(dir, args...)
	return err
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=fixture",
		"GIT_AUTHOR_EMAIL=fixture@example.com",
		"GIT_COMMITTER_NAME=fixture",
		"GIT_COMMITTER_EMAIL=fixture@example.com",
		"GIT_TERMINAL_PROMPT=0",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
