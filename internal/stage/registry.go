package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"weak"

	"github.com/sirupsen/logrus"

	"inlook-corpus/pkg/errors"
)

// Factory constructs a fresh stage instance given its minted instance ID.
// Factories return a stage already in UNLOADED or LOADED.
type Factory func(instanceID string) Stage

// Instance is the handle CreateInstance returns: the live stage plus its
// registry identity. The registry holds only a weak reference to an
// Instance, so when every handle a caller held is dropped and GC runs, the
// instance table entry is cleaned up automatically — "instances
// self-deregister on destruction" without any explicit Close/Release call.
type Instance struct {
	Stage
	pluginName string
}

// BoundPluginName returns the plugin name under which this instance was
// created. It always agrees with the embedded Stage's own PluginName.
func (i *Instance) BoundPluginName() string { return i.pluginName }

type instanceEntry struct {
	id  string
	ref weak.Pointer[Instance]
}

// Registry is the process-wide plugin_name -> {factory, live instances,
// declared interfaces} table.
type Registry struct {
	mu         sync.Mutex
	factories  map[string]Factory
	instances  map[string][]*instanceEntry
	interfaces map[string]map[string]bool
	counters   map[string]int64
	log        *logrus.Entry
}

// NewRegistry returns an empty registry. Most callers use Default.
func NewRegistry(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		factories:  make(map[string]Factory),
		instances:  make(map[string][]*instanceEntry),
		interfaces: make(map[string]map[string]bool),
		counters:   make(map[string]int64),
		log:        log,
	}
}

// Default is the process-wide registry domain adapters register
// themselves into during package init, per the "static build links all
// stages" design note.
var Default = NewRegistry(nil)

// Register binds pluginName to factory. At most one factory per plugin
// name; re-registration is rejected.
func (r *Registry) Register(pluginName string, factory Factory, interfaces ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[pluginName]; exists {
		return fmt.Errorf("stage: plugin %q already registered", pluginName)
	}
	r.factories[pluginName] = factory
	if len(interfaces) == 0 {
		interfaces = []string{"stage"}
	}
	set := make(map[string]bool, len(interfaces))
	for _, iface := range interfaces {
		set[iface] = true
	}
	r.interfaces[pluginName] = set
	return nil
}

// DeclareInterfaces appends iface tags to pluginName's declared set,
// idempotently.
func (r *Registry) DeclareInterfaces(pluginName string, ifaceTags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.interfaces[pluginName]
	if set == nil {
		set = make(map[string]bool)
		r.interfaces[pluginName] = set
	}
	for _, iface := range ifaceTags {
		set[iface] = true
	}
}

// CreateInstance mints a new instance ID ({plugin_name}_{counter}),
// constructs the stage via its factory, sets its config, and publishes a
// weak back-reference in the instance table.
func (r *Registry) CreateInstance(pluginName string, cfg []byte) (*Instance, error) {
	r.mu.Lock()
	factory, ok := r.factories[pluginName]
	if !ok {
		r.mu.Unlock()
		return nil, errors.UnknownPlugin("create_instance", pluginName)
	}
	r.counters[pluginName]++
	id := fmt.Sprintf("%s_%d", pluginName, r.counters[pluginName])
	r.mu.Unlock()

	st := factory(id)
	st.SetConfig(cfg)

	inst := &Instance{Stage: st, pluginName: pluginName}
	entry := &instanceEntry{id: id, ref: weak.Make(inst)}

	r.mu.Lock()
	r.instances[pluginName] = append(r.instances[pluginName], entry)
	r.mu.Unlock()

	runtime.AddCleanup(inst, func(pn string) { r.pruneDead(pn) }, pluginName)

	return inst, nil
}

// pruneDead drops instance-table entries whose weak reference has gone
// nil, i.e. every handle was dropped and collected.
func (r *Registry) pruneDead(pluginName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := r.instances[pluginName][:0]
	for _, e := range r.instances[pluginName] {
		if e.ref.Value() != nil {
			live = append(live, e)
		}
	}
	r.instances[pluginName] = live
}

// ListAvailable returns every registered plugin name.
func (r *Registry) ListAvailable() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}

// ListInstances returns the instance IDs of every currently live
// instance, across all plugins.
func (r *Registry) ListInstances() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, entries := range r.instances {
		for _, e := range entries {
			if e.ref.Value() != nil {
				out = append(out, e.id)
			}
		}
	}
	return out
}

// InstancesOf returns the instance IDs currently live for pluginName.
func (r *Registry) InstancesOf(pluginName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.instances[pluginName] {
		if e.ref.Value() != nil {
			out = append(out, e.id)
		}
	}
	return out
}

// FactoryOf returns the plugin name that created instanceID, if it is
// still live.
func (r *Registry) FactoryOf(instanceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pluginName, entries := range r.instances {
		for _, e := range entries {
			if e.id == instanceID && e.ref.Value() != nil {
				return pluginName, true
			}
		}
	}
	return "", false
}

// InterfacesOf returns the declared interface set for pluginName.
func (r *Registry) InterfacesOf(pluginName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.interfaces[pluginName]
	out := make([]string, 0, len(set))
	for iface := range set {
		out = append(out, iface)
	}
	return out
}

// LoadAll scans dir for plugin manifests and logs what it finds. A static
// build that links every stage and registers them in package init (the
// approach this engine takes; see DESIGN.md's "Dynamic-plugin loading"
// note) has nothing left to dynamically load, so this walks the tree only
// to surface unexpected or unregistered manifests — a failure to read any
// one entry is logged and does not abort the scan.
func (r *Registry) LoadAll(dir string) {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			r.log.WithError(err).WithField("path", path).Warn("failed to read plugin directory entry")
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		name := pluginNameFromManifestPath(path)
		r.mu.Lock()
		_, registered := r.factories[name]
		r.mu.Unlock()
		if !registered {
			r.log.WithField("plugin", name).WithField("path", path).
				Warn("plugin manifest found with no statically-linked factory")
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("dir", dir).Warn("plugin directory scan failed")
	}
}

func pluginNameFromManifestPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
