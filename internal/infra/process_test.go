package infra

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKillTree_KillsChild verifies a spawned process is terminated
func TestKillTree_KillsChild(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not installed")
	}

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	pm := NewProcessManager()
	require.NoError(t, pm.KillTree(cmd.Process.Pid))

	select {
	case err := <-done:
		assert.Error(t, err, "killed process exits with a signal")
	case <-time.After(5 * time.Second):
		t.Fatal("process was not killed")
	}
}

// TestKillTree_UnknownPID returns an error
func TestKillTree_UnknownPID(t *testing.T) {
	pm := NewProcessManager()
	assert.Error(t, pm.KillTree(1<<22+12345))
}
