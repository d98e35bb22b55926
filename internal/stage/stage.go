package stage

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/store"
)

// Stage is the capability every node in the execution tree implements: a
// leaf or the outward face of a composite. Per the "capability interface"
// design (see DESIGN.md), child-management is a separate, optional
// capability (Executor), not part of this interface.
type Stage interface {
	PluginName() string
	InstanceID() string
	Schema() map[string]interface{}
	SetConfig(cfg json.RawMessage)
	Config() json.RawMessage
	Validate() error
	State() State
	Transition(to State, caller string, line int) error
	Reset() error
	InstantiateRecursive() error
	Execute(v *store.View) error
	InterfacesImplemented() []string
	InputAttributes() []string
	GeneratedAttributes() []string
}

// Executor is the additional capability composite stages expose: child
// management and targeted single-child execution.
type Executor interface {
	Stage
	Children() []Stage
	ExecuteOne(v *store.View, id string) error
}

// AsExecutor reports whether s also implements Executor, the idiomatic
// replacement for the source's virtual-dispatch downcasts. A registry
// *Instance handle is unwrapped first, so a composite created through
// Registry.CreateInstance is still recognized as an Executor.
func AsExecutor(s Stage) (Executor, bool) {
	if inst, ok := s.(*Instance); ok {
		s = inst.Stage
	}
	e, ok := s.(Executor)
	return e, ok
}

// Base provides the bookkeeping shared by every stage implementation:
// identity, schema/config storage, the lifecycle state machine, and
// declared interfaces/attributes. Concrete stages embed *Base and
// implement InstantiateRecursive and Execute themselves.
type Base struct {
	pluginName string
	instanceID string
	schema     map[string]interface{}
	config     json.RawMessage
	interfaces []string

	inputAttrs     []string
	generatedAttrs []string

	sm  *StateMachine
	Log *logrus.Entry
}

// NewBase constructs a Base already transitioned to LOADED, matching the
// "construction succeeded and schema is set" precondition for that
// transition.
func NewBase(pluginName, instanceID string, schema map[string]interface{}, interfaces []string, log *logrus.Entry) *Base {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if interfaces == nil {
		interfaces = []string{"stage"}
	}
	b := &Base{
		pluginName: pluginName,
		instanceID: instanceID,
		schema:     schema,
		interfaces: interfaces,
		sm:         NewStateMachine(instanceID, log),
		Log:        log.WithField("instance_id", instanceID),
	}
	_ = b.sm.Transition(StateLoaded, pluginName, 0)
	return b
}

func (b *Base) PluginName() string { return b.pluginName }
func (b *Base) InstanceID() string { return b.instanceID }

func (b *Base) Schema() map[string]interface{} { return b.schema }

func (b *Base) SetConfig(cfg json.RawMessage) { b.config = cfg }
func (b *Base) Config() json.RawMessage       { return b.config }

// Validate checks Config against the cleaned Schema. Failure transitions
// the stage to FAILED.
func (b *Base) Validate() error {
	if err := ValidateConfig(b.schema, b.config); err != nil {
		_ = b.sm.Transition(StateFailed, b.pluginName, 0)
		return err
	}
	return nil
}

func (b *Base) State() State { return b.sm.State() }

func (b *Base) Transition(to State, caller string, line int) error {
	return b.sm.Transition(to, caller, line)
}

// Reset walks a FAILED stage back through UNLOADED to LOADED so its
// config can be re-validated and its subtree re-instantiated. Called
// on a stage in any state other than FAILED or UNLOADED, it fails and
// leaves the state unchanged.
func (b *Base) Reset() error {
	if err := b.sm.Transition(StateUnloaded, b.pluginName, 0); err != nil {
		return err
	}
	return b.sm.Transition(StateLoaded, b.pluginName, 0)
}

// AllowTransition exposes the underlying state machine's extension point
// to composite stages that add states beyond the default table.
func (b *Base) AllowTransition(from, to State) { b.sm.AllowTransition(from, to) }

func (b *Base) InterfacesImplemented() []string {
	return append([]string(nil), b.interfaces...)
}

// DeclareInterfaces appends iface tags to the declared set, idempotently.
func (b *Base) DeclareInterfaces(ifaces ...string) {
	for _, iface := range ifaces {
		found := false
		for _, existing := range b.interfaces {
			if existing == iface {
				found = true
				break
			}
		}
		if !found {
			b.interfaces = append(b.interfaces, iface)
		}
	}
}

func (b *Base) InputAttributes() []string     { return append([]string(nil), b.inputAttrs...) }
func (b *Base) GeneratedAttributes() []string { return append([]string(nil), b.generatedAttrs...) }

// DeclareAttributes sets the advisory input/generated attribute sets.
func (b *Base) DeclareAttributes(input, generated []string) {
	b.inputAttrs = append([]string(nil), input...)
	b.generatedAttrs = append([]string(nil), generated...)
}

// InstantiateRecursive is the default leaf behavior: validate config and
// move to READY. Composite stages override this to also instantiate
// children before transitioning.
func (b *Base) InstantiateRecursive() error {
	if err := b.Validate(); err != nil {
		return err
	}
	return b.Transition(StateReady, b.pluginName, 0)
}
