package controlapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
)

func newTestRoot(t *testing.T) *stage.Root {
	t.Helper()
	registry := stage.NewRegistry(nil)
	return stage.NewRoot("root-1", registry, nil)
}

func TestHandleHealth(t *testing.T) {
	s := NewServer("127.0.0.1:0", newTestRoot(t), store.New(), t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleStageTreeReportsRootNode(t *testing.T) {
	root := newTestRoot(t)
	s := NewServer("127.0.0.1:0", root, store.New(), t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodGet, "/stages", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var node stageNode
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &node))
	assert.Equal(t, stage.RootPluginName, node.CreateFunc)
	assert.Equal(t, "root-1", node.InstanceID)
	assert.NotNil(t, node.Schema)
}

func TestHandleStageTreeWithNilRoot(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, store.New(), t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodGet, "/stages", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleListWorkflows(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"name":"Serial","options":{"plugins":[]}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	s := NewServer("127.0.0.1:0", newTestRoot(t), store.New(), dir, nil)

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	files, ok := body["files"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"a.json"}, files)
}

func TestHandleSetActiveWorkflow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"name":"Serial","options":{"plugins":[]}}`), 0o644))

	s := NewServer("127.0.0.1:0", newTestRoot(t), store.New(), dir, nil)

	body, err := json.Marshal(setActiveWorkflowRequest{Filename: "a.json"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/workflows/active", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "a.json", s.activeFile)
}

func TestHandleSetActiveWorkflowMissingFile(t *testing.T) {
	s := NewServer("127.0.0.1:0", newTestRoot(t), store.New(), t.TempDir(), nil)

	body, err := json.Marshal(setActiveWorkflowRequest{Filename: "missing.json"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/workflows/active", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleEmailsDumpsStore(t *testing.T) {
	st := store.New()
	rec := email.New()
	rec.SetHeader("Subject", "hi")
	rec.SetStandardBody("body")
	rec.SetAttribute(email.AttrFileBytes, attrval.NewBinary([]byte("raw")))
	require.NoError(t, rec.Finalize())
	st.Insert(rec)

	s := NewServer("127.0.0.1:0", newTestRoot(t), st, t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodGet, "/emails", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var list []email.JSONView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "body", list[0].Body)

	req = httptest.NewRequest(http.MethodGet, "/emails?start=0&count=1", nil)
	rr = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCorrelationIDMiddlewareGeneratesID(t *testing.T) {
	s := NewServer("127.0.0.1:0", newTestRoot(t), store.New(), t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestEventHubBroadcastDropsWhenNoSubscribers(t *testing.T) {
	hub := newEventHub()
	assert.NotPanics(t, func() {
		hub.broadcast(transitionEvent{Plugin: "Serial", InstanceID: "s-1", From: "READY", To: "RUNNING"})
	})
}

func TestNotifyTransitionIsSafeWithNoSubscribers(t *testing.T) {
	s := NewServer("127.0.0.1:0", newTestRoot(t), store.New(), t.TempDir(), nil)
	assert.NotPanics(t, func() {
		s.NotifyTransition("Serial", "s-1", "READY", "RUNNING")
	})
}
