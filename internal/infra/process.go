// Package infra implements infrastructure concerns (filesystem, process, git, watching).
package infra

import (
	"errors"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// KillTree kills pid and every descendant, children first.
// git pull spawns helpers (git-remote-https, ssh) that would otherwise keep
// the output pipes open after the parent dies.
func (pm *ProcessManagerImpl) KillTree(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}

	var errs []error
	if children, err := p.Children(); err == nil {
		for _, child := range children {
			if err := pm.KillTree(int(child.Pid)); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := p.Kill(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
