package hotreload

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, path, name string) {
	t.Helper()
	doc := map[string]interface{}{"name": name, "options": map[string]interface{}{}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestReloaderDetectsWorkflowFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	writeWorkflow(t, path, "root")

	r, err := New(Config{
		Enabled:          true,
		WatchInterval:    50 * time.Millisecond,
		DebounceInterval: 10 * time.Millisecond,
	}, path, "", nil)
	require.NoError(t, err)

	reloaded := make(chan json.RawMessage, 1)
	r.SetCallbacks(func(doc json.RawMessage) error {
		reloaded <- doc
		return nil
	}, nil)

	require.NoError(t, r.Start())
	defer r.Stop()

	writeWorkflow(t, path, "root-v2")

	select {
	case doc := <-reloaded:
		assert.Contains(t, string(doc), "root-v2")
	case <-time.After(3 * time.Second):
		t.Fatal("expected reload callback within timeout")
	}

	assert.EqualValues(t, 1, r.Stats().SuccessfulReloads)
}

func TestReloaderDisabledStartIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	writeWorkflow(t, path, "root")

	r, err := New(Config{Enabled: false}, path, "", nil)
	require.NoError(t, err)
	assert.NoError(t, r.Start())
	assert.NoError(t, r.Stop())
}

func TestTriggerReloadSkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	writeWorkflow(t, path, "root")

	r, err := New(Config{Enabled: true}, path, "", nil)
	require.NoError(t, err)

	calls := 0
	r.SetCallbacks(func(doc json.RawMessage) error {
		calls++
		return nil
	}, nil)

	require.NoError(t, r.TriggerReload())
	require.NoError(t, r.TriggerReload())
	assert.Equal(t, 0, calls)
}
