package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inlook-corpus/internal/stage"
)

func TestSelfTransitionAlwaysSucceeds(t *testing.T) {
	sm := stage.NewStateMachine("t", nil)
	require.NoError(t, sm.Transition(stage.StateUnloaded, "test", 1))
	assert.Equal(t, stage.StateUnloaded, sm.State())
}

func TestDefaultTransitionTable(t *testing.T) {
	sm := stage.NewStateMachine("t", nil)
	require.NoError(t, sm.Transition(stage.StateLoaded, "test", 1))
	require.NoError(t, sm.Transition(stage.StateReady, "test", 1))
	require.NoError(t, sm.Transition(stage.StateRunning, "test", 1))
	require.NoError(t, sm.Transition(stage.StateComplete, "test", 1))
	assert.Equal(t, stage.StateComplete, sm.State())
}

func TestFailedReachableFromAnyState(t *testing.T) {
	for _, from := range []stage.State{stage.StateUnloaded, stage.StateLoaded, stage.StateReady, stage.StateRunning, stage.StateComplete} {
		sm := stage.NewStateMachine("t", nil)
		// drive sm to `from` via the default table when possible; UNLOADED needs no driving.
		switch from {
		case stage.StateLoaded:
			require.NoError(t, sm.Transition(stage.StateLoaded, "t", 1))
		case stage.StateReady:
			require.NoError(t, sm.Transition(stage.StateLoaded, "t", 1))
			require.NoError(t, sm.Transition(stage.StateReady, "t", 1))
		case stage.StateRunning:
			require.NoError(t, sm.Transition(stage.StateLoaded, "t", 1))
			require.NoError(t, sm.Transition(stage.StateReady, "t", 1))
			require.NoError(t, sm.Transition(stage.StateRunning, "t", 1))
		case stage.StateComplete:
			require.NoError(t, sm.Transition(stage.StateLoaded, "t", 1))
			require.NoError(t, sm.Transition(stage.StateReady, "t", 1))
			require.NoError(t, sm.Transition(stage.StateRunning, "t", 1))
			require.NoError(t, sm.Transition(stage.StateComplete, "t", 1))
		}
		require.NoError(t, sm.Transition(stage.StateFailed, "t", 1), "FAILED must be reachable from %s", from)
	}
}

func TestFailedToUnloadedResetPath(t *testing.T) {
	sm := stage.NewStateMachine("t", nil)
	require.NoError(t, sm.Transition(stage.StateFailed, "t", 1))
	require.NoError(t, sm.Transition(stage.StateUnloaded, "t", 1))
	assert.Equal(t, stage.StateUnloaded, sm.State())
}

func TestUnlistedTransitionRejectedAndStateUnchanged(t *testing.T) {
	sm := stage.NewStateMachine("t", nil)
	err := sm.Transition(stage.StateRunning, "t", 1)
	assert.Error(t, err)
	assert.Equal(t, stage.StateUnloaded, sm.State(), "rejected transition must leave state unchanged")
}

func TestResetWalksFailedBackToLoaded(t *testing.T) {
	b := stage.NewBase("p", "p_1", map[string]interface{}{"type": "object"}, nil, nil)
	require.NoError(t, b.Transition(stage.StateFailed, "t", 1))
	require.NoError(t, b.Reset())
	assert.Equal(t, stage.StateLoaded, b.State())
}

func TestResetRejectedOutsideFailed(t *testing.T) {
	b := stage.NewBase("p", "p_1", map[string]interface{}{"type": "object"}, nil, nil)
	require.NoError(t, b.Transition(stage.StateReady, "t", 1))
	assert.Error(t, b.Reset())
	assert.Equal(t, stage.StateReady, b.State())
}

func TestAllowTransitionExtendsTable(t *testing.T) {
	sm := stage.NewStateMachine("t", nil)
	sm.AllowTransition(stage.StateUnloaded, stage.StateReady)
	require.NoError(t, sm.Transition(stage.StateReady, "t", 1))
}
