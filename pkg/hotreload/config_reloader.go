// Package hotreload watches the active workflow document and its
// plugin manifest directory for changes, and invokes a caller-supplied
// callback once a change is actually detected by content hash (not just
// an mtime bump). internal/app uses it to rebuild the stage tree
// without a process restart.
package hotreload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/config"
)

// Config controls a Reloader's watch behavior.
type Config struct {
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	WatchInterval    time.Duration `json:"watch_interval" yaml:"watch_interval"`
	DebounceInterval time.Duration `json:"debounce_interval" yaml:"debounce_interval"`
}

// Stats is a snapshot of a Reloader's reload counters.
type Stats struct {
	TotalReloads      int64     `json:"total_reloads"`
	SuccessfulReloads int64     `json:"successful_reloads"`
	FailedReloads     int64     `json:"failed_reloads"`
	LastReloadTime    time.Time `json:"last_reload_time"`
	LastError         string    `json:"last_error,omitempty"`
}

// Reloader watches workflowFile and every entry directly under
// pluginsDir for changes, reloading the workflow document and invoking
// onReload whenever its content hash actually changes.
type Reloader struct {
	cfg          Config
	workflowFile string
	pluginsDir   string
	log          *logrus.Entry

	watcher *fsnotify.Watcher

	hashMu      sync.Mutex
	currentHash string

	onReload      func(doc json.RawMessage) error
	onReloadError func(error)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	statsMu sync.Mutex
	stats   Stats
}

// New constructs a Reloader for workflowFile, also watching pluginsDir
// (pass "" to skip it). Defaults fill in zero-valued WatchInterval and
// DebounceInterval. The returned Reloader is not yet watching; call
// Start.
func New(cfg Config, workflowFile, pluginsDir string, log *logrus.Entry) (*Reloader, error) {
	if cfg.WatchInterval == 0 {
		cfg.WatchInterval = 5 * time.Second
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 500 * time.Millisecond
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	r := &Reloader{
		cfg:          cfg,
		workflowFile: workflowFile,
		pluginsDir:   pluginsDir,
		log:          log,
	}

	if hash, err := hashWorkflowFile(workflowFile); err == nil {
		r.currentHash = hash
	}

	return r, nil
}

// SetCallbacks registers the reload notification functions. onReload
// receives the freshly loaded workflow document; an error it returns is
// reported to onReloadError but does not stop watching.
func (r *Reloader) SetCallbacks(onReload func(doc json.RawMessage) error, onReloadError func(error)) {
	r.onReload = onReload
	r.onReloadError = onReloadError
}

// Start begins watching in background goroutines. A no-op, returning
// nil, if the reloader is disabled or already running.
func (r *Reloader) Start() error {
	if !r.cfg.Enabled {
		r.log.Debug("hot reload disabled")
		return nil
	}
	if r.running.Load() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	r.watcher = watcher

	if err := watcher.Add(filepath.Dir(r.workflowFile)); err != nil {
		r.log.WithError(err).WithField("path", r.workflowFile).Warn("failed to watch workflow file directory")
	}
	if r.pluginsDir != "" {
		if err := watcher.Add(r.pluginsDir); err != nil {
			r.log.WithError(err).WithField("path", r.pluginsDir).Warn("failed to watch plugins directory")
		}
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.wg.Add(2)
	go r.watchEvents()
	go r.periodicCheck()
	r.running.Store(true)

	r.log.WithField("workflow_file", r.workflowFile).Info("hot reload watching for changes")
	return nil
}

// Stop halts watching and waits for its goroutines to return. Safe to
// call even if Start was never called.
func (r *Reloader) Stop() error {
	if !r.running.Load() {
		return nil
	}
	r.cancel()
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	r.wg.Wait()
	r.running.Store(false)
	return nil
}

// TriggerReload forces an immediate reload attempt, bypassing the
// debounce. A document whose content hash is unchanged is still skipped
// without invoking onReload.
func (r *Reloader) TriggerReload() error {
	return r.performReload()
}

// Stats returns a snapshot of the reloader's counters.
func (r *Reloader) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Reloader) watchEvents() {
	defer r.wg.Done()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-r.ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if r.shouldProcess(event) {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(r.cfg.DebounceInterval)
				pending = true
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.WithError(err).Error("file watcher error")

		case <-debounce.C:
			if pending {
				pending = false
				if err := r.performReload(); err != nil {
					r.log.WithError(err).Error("workflow reload failed")
				}
			}
		}
	}
}

func (r *Reloader) periodicCheck() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			hash, err := hashWorkflowFile(r.workflowFile)
			if err != nil {
				continue
			}
			r.hashMu.Lock()
			changed := hash != r.currentHash
			r.hashMu.Unlock()
			if changed {
				if err := r.performReload(); err != nil {
					r.log.WithError(err).Error("periodic workflow reload failed")
				}
			}
		}
	}
}

func (r *Reloader) shouldProcess(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	absPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	workflowAbs, _ := filepath.Abs(r.workflowFile)
	if absPath == workflowAbs {
		return true
	}
	if r.pluginsDir != "" {
		pluginsAbs, _ := filepath.Abs(r.pluginsDir)
		if filepath.Dir(absPath) == pluginsAbs {
			return true
		}
	}
	return false
}

func (r *Reloader) performReload() error {
	r.statsMu.Lock()
	r.stats.TotalReloads++
	r.stats.LastReloadTime = time.Now()
	r.statsMu.Unlock()

	doc, err := config.LoadWorkflowDocument(r.workflowFile)
	if err != nil {
		r.recordFailure(err)
		return err
	}

	hash := hashBytes(doc)
	r.hashMu.Lock()
	unchanged := hash == r.currentHash
	r.hashMu.Unlock()
	if unchanged {
		return nil
	}

	if r.onReload != nil {
		if err := r.onReload(doc); err != nil {
			r.recordFailure(err)
			return err
		}
	}

	r.hashMu.Lock()
	r.currentHash = hash
	r.hashMu.Unlock()

	r.statsMu.Lock()
	r.stats.SuccessfulReloads++
	r.stats.LastError = ""
	r.statsMu.Unlock()

	r.log.WithField("workflow_file", r.workflowFile).Info("workflow document reloaded")
	return nil
}

func (r *Reloader) recordFailure(err error) {
	r.statsMu.Lock()
	r.stats.FailedReloads++
	r.stats.LastError = err.Error()
	r.statsMu.Unlock()
	if r.onReloadError != nil {
		r.onReloadError(err)
	}
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashWorkflowFile(path string) (string, error) {
	doc, err := config.LoadWorkflowDocument(path)
	if err != nil {
		return "", err
	}
	return hashBytes(doc), nil
}
