// Package controlapi implements the engine's thin HTTP/WebSocket control
// surface: a stage-tree dump, workflow file listing/activation, and a
// health check. The engine's core never depends on this package; it
// observes and drives the stage tree purely through the stage package's
// public interface.
package controlapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/config"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
)

// Server exposes the control surface over HTTP. The zero value is not
// usable; build one with NewServer.
type Server struct {
	httpServer  *http.Server
	rootMu      sync.RWMutex
	root        *stage.Root
	store       *store.Store
	workflowDir string
	activeFile  string
	log         *logrus.Entry
	events      *eventHub
}

// NewServer builds a control API server bound to addr, dumping root's
// tree, rendering st's records, and listing/activating workflow files
// under workflowDir.
func NewServer(addr string, root *stage.Root, st *store.Store, workflowDir string, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		root:        root,
		store:       st,
		workflowDir: workflowDir,
		log:         log,
		events:      newEventHub(),
	}

	router := mux.NewRouter()
	router.Use(correlationIDMiddleware)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stages", s.handleStageTree).Methods(http.MethodGet)
	router.HandleFunc("/emails", s.handleEmails).Methods(http.MethodGet)
	router.HandleFunc("/workflows", s.handleListWorkflows).Methods(http.MethodGet)
	router.HandleFunc("/workflows/active", s.handleSetActiveWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// SetRoot swaps the stage tree the server dumps. internal/app's hot
// reload callback calls this after rebuilding the tree from a changed
// workflow document so /stages reflects the new tree without a server
// restart.
func (s *Server) SetRoot(root *stage.Root) {
	s.rootMu.Lock()
	s.root = root
	s.rootMu.Unlock()
}

func (s *Server) currentRoot() *stage.Root {
	s.rootMu.RLock()
	defer s.rootMu.RUnlock()
	return s.root
}

// NotifyTransition broadcasts a stage state-transition event to every
// connected WebSocket client. The app's orchestration loop calls this
// after each stage.Root.Execute so operators can watch a run live.
func (s *Server) NotifyTransition(plugin, instanceID, from, to string) {
	s.events.broadcast(transitionEvent{
		Plugin:     plugin,
		InstanceID: instanceID,
		From:       from,
		To:         to,
		At:         time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// ListenAndServe starts the HTTP server; it blocks until the server
// stops (Shutdown or an unrecoverable error).
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// stageNode is the JSON shape of one node in a stage-tree dump. A node
// with no schema or config dumps them as empty objects, and a node whose
// factory is unknown dumps createFunc as "Not Loaded".
type stageNode struct {
	InstanceID string                 `json:"instanceID"`
	CreateFunc string                 `json:"createFunc"`
	State      string                 `json:"state"`
	Schema     map[string]interface{} `json:"schema"`
	Config     json.RawMessage        `json:"config"`
	Children   []stageNode            `json:"children"`
}

func dumpNode(s stage.Stage) stageNode {
	node := stageNode{
		InstanceID: s.InstanceID(),
		CreateFunc: s.PluginName(),
		State:      string(s.State()),
		Schema:     s.Schema(),
		Config:     s.Config(),
		Children:   []stageNode{},
	}
	if node.CreateFunc == "" {
		node.CreateFunc = "Not Loaded"
	}
	if node.Schema == nil {
		node.Schema = map[string]interface{}{}
	}
	if len(node.Config) == 0 {
		node.Config = json.RawMessage("{}")
	}
	if exec, ok := stage.AsExecutor(s); ok {
		for _, child := range exec.Children() {
			node.Children = append(node.Children, dumpNode(child))
		}
	}
	return node
}

func (s *Server) handleStageTree(w http.ResponseWriter, r *http.Request) {
	root := s.currentRoot()
	if root == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no workflow loaded"})
		return
	}
	writeJSON(w, http.StatusOK, dumpNode(root))
}

// handleEmails renders the store's records. With no query parameters it
// dumps every record; start/count select a page instead.
func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no store attached"})
		return
	}

	q := r.URL.Query()
	if q.Get("start") != "" || q.Get("count") != "" {
		start, _ := strconv.Atoi(q.Get("start"))
		count, err := strconv.Atoi(q.Get("count"))
		if err != nil || count <= 0 {
			count = 50
		}
		writeJSON(w, http.StatusOK, s.store.JSONPage(start, count))
		return
	}

	writeJSON(w, http.StatusOK, s.store.GetSimpleJSONList(s.store.FullView()))
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.workflowDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": s.activeFile, "files": files})
}

type setActiveWorkflowRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleSetActiveWorkflow(w http.ResponseWriter, r *http.Request) {
	var req setActiveWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	path := filepath.Join(s.workflowDir, req.Filename)
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workflow file not found"})
		return
	}
	if _, err := config.LoadWorkflowDocument(path); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.activeFile = req.Filename
	s.log.WithField("workflow_file", req.Filename).Info("active workflow file changed")
	writeJSON(w, http.StatusOK, map[string]string{"active": req.Filename})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.events.subscribe(conn, s.log)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
