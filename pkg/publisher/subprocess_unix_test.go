//go:build unix

package publisher

import (
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubprocessStopKillsProcess(t *testing.T) {
	h, payloads, _ := newSubprocessForTest(t, helperConfig(t, "pid"))

	require.NoError(t, h.Start())
	payloads.waitFor(t, 1)
	pid, err := strconv.Atoi(payloads.get()[0])
	require.NoError(t, err)

	h.Stop()
	awaitDone(t, h)

	assert.NoError(t, h.Err())
	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH, "process must not outlive the handle")
	state := h.(*subprocessPublisher).ExitState()
	require.NotNil(t, state)
	assert.False(t, state.Exited(), "process was killed, not exited")
}

func TestSubprocessKillGraceEndsDetachedProcess(t *testing.T) {
	cfg := helperConfig(t, "detached")
	cfg.KillGrace = 50 * time.Millisecond
	h, payloads, _ := newSubprocessForTest(t, cfg)

	require.NoError(t, h.Start())
	// let the child close its streams so the monitor is left waiting to reap it
	time.Sleep(200 * time.Millisecond)
	h.Stop()
	awaitDone(t, h)

	assert.NoError(t, h.Err())
	assert.Empty(t, payloads.get())
	state := h.(*subprocessPublisher).ExitState()
	require.NotNil(t, state)
	assert.False(t, state.Exited(), "process was killed after the grace period")
}
