// Package app wires the engine's components into a runnable process:
// load configuration, instantiate the stage tree from the active
// workflow document, run the file parser into the store, and expose
// the control API and metrics endpoints. Initialization is sequenced
// through New -> initializeComponents -> Start -> Run.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/config"
	"inlook-corpus/internal/controlapi"
	"inlook-corpus/internal/parser"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/hotreload"
)

// App coordinates the engine's components for one process lifetime: the
// loaded configuration, the email store, the instantiated stage tree,
// the ingestion parser, and the control/metrics HTTP servers.
type App struct {
	config *config.Config
	logger *logrus.Logger
	log    *logrus.Entry

	store  *store.Store
	rootMu sync.RWMutex
	root   *stage.Root

	controlAPI    *controlapi.Server
	metricsServer *http.Server
	reloader      *hotreload.Reloader

	ctx        context.Context
	cancel     context.CancelFunc
	configFile string
	wg         sync.WaitGroup
}

// New loads configFile (an empty path uses defaults plus environment
// overrides), then initializes every component. Initialization failures
// abort construction; New never returns a partially-wired App.
func New(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err == nil {
			logPath := filepath.Join(cfg.LogDir, "corpusctl.log")
			if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				logger.SetOutput(io.MultiWriter(os.Stdout, f))
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:     cfg,
		logger:     logger,
		log:        logrus.NewEntry(logger),
		store:      store.New(),
		ctx:        ctx,
		cancel:     cancel,
		configFile: configFile,
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeComponents performs ordered setup: the stage tree must exist
// before the control API can dump it, and the metrics server is
// independent of both.
func (app *App) initializeComponents() error {
	if err := app.initStageTree(); err != nil {
		return err
	}
	app.initControlAPI()
	app.initMetricsServer()
	app.initHotReload()
	return nil
}

// initStageTree loads the active workflow document and instantiates the
// tree it describes against the process-wide stage registry. A process
// with no configured workflow file starts with an empty tree; ingestion
// still runs, but Execute has nothing to drive.
func (app *App) initStageTree() error {
	if app.config.Plugins.Directory != "" {
		if _, err := os.Stat(app.config.Plugins.Directory); err == nil {
			stage.Default.LoadAll(app.config.Plugins.Directory)
		}
	}

	if app.config.Plugins.WorkflowFile == "" {
		app.log.Warn("no workflow file configured, stage tree left empty")
		return nil
	}
	if _, err := os.Stat(app.config.Plugins.WorkflowFile); err != nil {
		app.log.WithField("path", app.config.Plugins.WorkflowFile).Warn("workflow file not found, stage tree left empty")
		return nil
	}

	doc, err := config.LoadWorkflowDocument(app.config.Plugins.WorkflowFile)
	if err != nil {
		return fmt.Errorf("failed to load workflow document: %w", err)
	}

	root := stage.NewRoot("root", stage.Default, app.log)
	root.SetConfig(doc)
	if err := root.InstantiateRecursive(); err != nil {
		return fmt.Errorf("failed to instantiate stage tree: %w", err)
	}
	app.setRoot(root)
	return nil
}

func (app *App) setRoot(root *stage.Root) {
	app.rootMu.Lock()
	app.root = root
	app.rootMu.Unlock()
}

func (app *App) getRoot() *stage.Root {
	app.rootMu.RLock()
	defer app.rootMu.RUnlock()
	return app.root
}

func (app *App) initControlAPI() {
	if !app.config.ControlAPI.Enabled {
		return
	}
	addr := fmt.Sprintf("%s:%d", app.config.ControlAPI.Host, app.config.ControlAPI.Port)
	workflowDir := filepath.Dir(app.config.Plugins.WorkflowFile)
	app.controlAPI = controlapi.NewServer(addr, app.getRoot(), app.store, workflowDir, app.log)
}

// initHotReload wires a hotreload.Reloader to watch the active workflow
// file and plugin directory, rebuilding the stage tree in place when
// their content changes. Disabled by default (config.HotReloadConfig).
func (app *App) initHotReload() {
	if !app.config.HotReload.Enabled || app.config.Plugins.WorkflowFile == "" {
		return
	}

	reloader, err := hotreload.New(hotreload.Config{
		Enabled:          true,
		WatchInterval:    app.config.HotReload.WatchInterval,
		DebounceInterval: app.config.HotReload.DebounceInterval,
	}, app.config.Plugins.WorkflowFile, app.config.Plugins.Directory, app.log)
	if err != nil {
		app.log.WithError(err).Warn("failed to initialize hot reload, continuing without it")
		return
	}

	reloader.SetCallbacks(app.rebuildStageTree, func(err error) {
		app.log.WithError(err).Error("workflow hot reload failed")
	})
	app.reloader = reloader
}

// rebuildStageTree instantiates a fresh tree from doc and swaps it in
// for both App.Execute calls and the control API's dump/WebSocket
// surface. A bad document is rejected without disturbing the tree
// currently running.
func (app *App) rebuildStageTree(doc json.RawMessage) error {
	root := stage.NewRoot("root", stage.Default, app.log)
	root.SetConfig(doc)
	if err := root.InstantiateRecursive(); err != nil {
		return fmt.Errorf("failed to instantiate reloaded stage tree: %w", err)
	}
	app.setRoot(root)
	if app.controlAPI != nil {
		app.controlAPI.SetRoot(root)
	}
	return nil
}

func (app *App) initMetricsServer() {
	if !app.config.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(app.config.Metrics.Path, promhttp.Handler())
	app.metricsServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Metrics.Host, app.config.Metrics.Port),
		Handler: mux,
	}
}

// IngestDirectory walks dir, parsing every file into the store through a
// full-store view, and returns each file's outcome. This is the
// engine's entry point for populating the store before a stage tree run.
func (app *App) IngestDirectory(dir string) ([]parser.FileResult, error) {
	p := parser.New(app.store.FullView(), app.log)
	return p.WalkDirectory(dir)
}

// RunWorkflow executes the instantiated stage tree over the store's
// full view, notifying any connected control API clients of the root's
// own state transition after the run.
func (app *App) RunWorkflow() error {
	root := app.getRoot()
	if root == nil {
		return fmt.Errorf("no stage tree instantiated")
	}
	view := app.store.FullView()
	before := root.State()
	err := root.Execute(view)
	if app.controlAPI != nil {
		app.controlAPI.NotifyTransition(root.PluginName(), root.InstanceID(), string(before), string(root.State()))
	}
	return err
}

// Start brings up the control API and metrics servers in background
// goroutines. It does not block.
func (app *App) Start() error {
	app.log.Info("starting corpusctl")

	if app.metricsServer != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.log.WithField("addr", app.metricsServer.Addr).Info("starting metrics server")
			if err := app.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.log.WithError(err).Error("metrics server error")
			}
		}()
	}

	if app.controlAPI != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.log.Info("starting control API server")
			if err := app.controlAPI.ListenAndServe(); err != nil {
				app.log.WithError(err).Error("control API server error")
			}
		}()
	}

	if app.reloader != nil {
		if err := app.reloader.Start(); err != nil {
			app.log.WithError(err).Warn("failed to start hot reload watcher")
		}
	}

	app.log.Info("corpusctl started")
	return nil
}

// Stop performs graceful shutdown of the control API and metrics
// servers, waiting for their goroutines to return.
func (app *App) Stop() error {
	app.log.Info("stopping corpusctl")
	app.cancel()

	if app.reloader != nil {
		if err := app.reloader.Stop(); err != nil {
			app.log.WithError(err).Error("failed to stop hot reload watcher")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if app.controlAPI != nil {
		if err := app.controlAPI.Shutdown(shutdownCtx); err != nil {
			app.log.WithError(err).Error("failed to shut down control API server")
		}
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			app.log.WithError(err).Error("failed to shut down metrics server")
		}
	}

	app.wg.Wait()
	app.log.Info("corpusctl stopped")
	return nil
}

// Run ingests the configured input directory, executes the stage tree
// once, starts the control/metrics servers, and blocks until SIGINT or
// SIGTERM is received.
func (app *App) Run() error {
	if app.config.Parser.InputDirectory != "" {
		results, err := app.IngestDirectory(app.config.Parser.InputDirectory)
		if err != nil {
			return fmt.Errorf("failed to ingest input directory: %w", err)
		}
		app.log.WithField("files", len(results)).Info("ingestion complete")
	}

	if app.getRoot() != nil {
		if err := app.RunWorkflow(); err != nil {
			app.log.WithError(err).Error("workflow execution failed")
		}
	}

	if err := app.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	app.log.Info("shutdown signal received")
	return app.Stop()
}
