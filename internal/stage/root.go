package stage

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/errors"
)

// RootPluginName is the plugin name every workflow document's outer stage
// is instantiated under.
const RootPluginName = "Root"

type rootConfig struct {
	Name    string          `json:"name"`
	Options json.RawMessage `json:"options"`
}

// rootSchema matches the workflow document's outer shape: {name, options}.
var rootSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name":    map[string]interface{}{"type": "string"},
		"options": map[string]interface{}{"type": "object"},
	},
	"required": []interface{}{"name", "options"},
}

// Root is the tree's single entry point: it owns exactly one child,
// instantiated from its {name, options} config through the registry.
type Root struct {
	*Base
	registry *Registry
	child    Stage
}

// NewRoot constructs a Root instance bound to registry for child creation.
func NewRoot(instanceID string, registry *Registry, log *logrus.Entry) *Root {
	return &Root{
		Base:     NewBase(RootPluginName, instanceID, rootSchema, []string{"stage", "executor"}, log),
		registry: registry,
	}
}

// Children returns the root's single child, or nil if not yet instantiated.
func (r *Root) Children() []Stage {
	if r.child == nil {
		return nil
	}
	return []Stage{r.child}
}

// InstantiateRecursive validates config, instantiates the one named child
// through the registry, transitions to LOADED, recurses into the child,
// then transitions to READY.
func (r *Root) InstantiateRecursive() error {
	if err := r.Validate(); err != nil {
		return err
	}

	var cfg rootConfig
	if err := json.Unmarshal(r.Config(), &cfg); err != nil {
		_ = r.Transition(StateFailed, "Root.InstantiateRecursive", 0)
		return errors.ConfigInvalid("Root", "instantiate_recursive", err.Error())
	}

	inst, err := r.registry.CreateInstance(cfg.Name, cfg.Options)
	if err != nil {
		_ = r.Transition(StateFailed, "Root.InstantiateRecursive", 0)
		return err
	}
	r.child = inst

	if err := r.Transition(StateLoaded, "Root.InstantiateRecursive", 0); err != nil {
		return err
	}

	if err := r.child.InstantiateRecursive(); err != nil {
		_ = r.Transition(StateFailed, "Root.InstantiateRecursive", 0)
		return err
	}

	return r.Transition(StateReady, "Root.InstantiateRecursive", 0)
}

// Execute runs the child, commits deferred inserts, and reports the
// tree's overall success.
func (r *Root) Execute(v *store.View) error {
	if err := r.Transition(StateRunning, "Root.Execute", 0); err != nil {
		return err
	}
	if err := r.child.Execute(v); err != nil {
		_ = r.Transition(StateFailed, "Root.Execute", 0)
		return errors.ChildFailed(r.InstanceID(), r.child.InstanceID())
	}
	v.Commit()
	return r.Transition(StateComplete, "Root.Execute", 0)
}

// ExecuteOne runs Execute if id names the root's child; otherwise it is a
// no-op.
func (r *Root) ExecuteOne(v *store.View, id string) error {
	if r.child == nil || r.child.InstanceID() != id {
		return nil
	}
	return r.Execute(v)
}
