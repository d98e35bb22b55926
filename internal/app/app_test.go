package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, cfg map[string]interface{}) string {
	t.Helper()
	if _, ok := cfg["log_dir"]; !ok {
		cfg["log_dir"] = filepath.Join(dir, "logs")
	}
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNewAppWithNoWorkflowFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]interface{}{
		"app":         map[string]interface{}{"name": "test-app"},
		"control_api": map[string]interface{}{"enabled": false},
		"metrics":     map[string]interface{}{"enabled": false},
		"plugins":     map[string]interface{}{"workflow_file": filepath.Join(dir, "missing.json")},
	})

	app, err := New(path)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Nil(t, app.root)
	assert.Nil(t, app.controlAPI)
	assert.Nil(t, app.metricsServer)
}

func TestNewAppInstantiatesStageTree(t *testing.T) {
	dir := t.TempDir()
	workflowPath := filepath.Join(dir, "workflow.json")
	workflow := `{"name":"Serial","options":{"plugins":[]}}`
	require.NoError(t, os.WriteFile(workflowPath, []byte(workflow), 0o644))

	cfgPath := writeConfig(t, dir, map[string]interface{}{
		"control_api": map[string]interface{}{"enabled": false},
		"metrics":     map[string]interface{}{"enabled": false},
		"plugins":     map[string]interface{}{"workflow_file": workflowPath},
	})

	app, err := New(cfgPath)
	require.NoError(t, err)
	require.NotNil(t, app.root)
	assert.Equal(t, "root", app.root.InstanceID())
}

func TestNewAppEnablesControlAPIAndMetrics(t *testing.T) {
	dir := t.TempDir()
	workflowPath := filepath.Join(dir, "workflow.json")
	require.NoError(t, os.WriteFile(workflowPath, []byte(`{"name":"Serial","options":{"plugins":[]}}`), 0o644))

	cfgPath := writeConfig(t, dir, map[string]interface{}{
		"control_api": map[string]interface{}{"enabled": true, "host": "127.0.0.1", "port": 0},
		"metrics":     map[string]interface{}{"enabled": true, "host": "127.0.0.1", "port": 0},
		"plugins":     map[string]interface{}{"workflow_file": workflowPath},
	})

	app, err := New(cfgPath)
	require.NoError(t, err)
	assert.NotNil(t, app.controlAPI)
	assert.NotNil(t, app.metricsServer)
}

func TestIngestDirectoryPopulatesStore(t *testing.T) {
	dir := t.TempDir()
	emailPath := filepath.Join(dir, "email1.eml")
	require.NoError(t, os.WriteFile(emailPath, []byte("Subject: hi\r\n\r\nbody text\r\n"), 0o644))

	cfgPath := writeConfig(t, dir, map[string]interface{}{
		"control_api": map[string]interface{}{"enabled": false},
		"metrics":     map[string]interface{}{"enabled": false},
		"plugins":     map[string]interface{}{"workflow_file": filepath.Join(dir, "missing.json")},
	})

	app, err := New(cfgPath)
	require.NoError(t, err)

	results, err := app.IngestDirectory(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, 1, app.store.Size())
}

func TestRunWorkflowWithNoStageTreeFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, map[string]interface{}{
		"control_api": map[string]interface{}{"enabled": false},
		"metrics":     map[string]interface{}{"enabled": false},
		"plugins":     map[string]interface{}{"workflow_file": filepath.Join(dir, "missing.json")},
	})

	app, err := New(cfgPath)
	require.NoError(t, err)

	err = app.RunWorkflow()
	assert.Error(t, err)
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, map[string]interface{}{
		"control_api": map[string]interface{}{"enabled": false},
		"metrics":     map[string]interface{}{"enabled": false},
		"plugins":     map[string]interface{}{"workflow_file": filepath.Join(dir, "missing.json")},
	})

	app, err := New(cfgPath)
	require.NoError(t, err)
	assert.NoError(t, app.Stop())
}
