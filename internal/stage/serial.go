package stage

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/errors"
)

// SerialPluginName is the plugin name the Serial composite registers
// itself under.
const SerialPluginName = "Serial"

type serialChildConfig struct {
	Name    string          `json:"name"`
	Options json.RawMessage `json:"options"`
}

type serialConfig struct {
	Plugins []serialChildConfig `json:"plugins"`
}

var serialSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"plugins": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":    map[string]interface{}{"type": "string"},
					"options": map[string]interface{}{"type": "object"},
				},
				"required": []interface{}{"name"},
			},
		},
	},
	"required": []interface{}{"plugins"},
}

// Serial is a composite stage that runs its children in insertion order,
// committing deferred inserts between each so later children observe
// earlier children's output.
type Serial struct {
	*Base
	registry *Registry
	order    []string
	children map[string]Stage
}

// NewSerial constructs a Serial instance bound to registry for child
// creation.
func NewSerial(instanceID string, registry *Registry, log *logrus.Entry) *Serial {
	return &Serial{
		Base:     NewBase(SerialPluginName, instanceID, serialSchema, []string{"stage", "executor"}, log),
		registry: registry,
		children: make(map[string]Stage),
	}
}

// Children returns the children in insertion order.
func (s *Serial) Children() []Stage {
	out := make([]Stage, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.children[id])
	}
	return out
}

// InstantiateRecursive validates config, instantiates every listed child
// through the registry (in document order), recurses into each, then
// transitions to READY.
func (s *Serial) InstantiateRecursive() error {
	if err := s.Validate(); err != nil {
		return err
	}

	var cfg serialConfig
	if err := json.Unmarshal(s.Config(), &cfg); err != nil {
		_ = s.Transition(StateFailed, "Serial.InstantiateRecursive", 0)
		return errors.ConfigInvalid("Serial", "instantiate_recursive", err.Error())
	}

	for _, childCfg := range cfg.Plugins {
		inst, err := s.registry.CreateInstance(childCfg.Name, childCfg.Options)
		if err != nil {
			_ = s.Transition(StateFailed, "Serial.InstantiateRecursive", 0)
			return err
		}
		s.order = append(s.order, inst.InstanceID())
		s.children[inst.InstanceID()] = inst
	}

	for _, id := range s.order {
		if err := s.children[id].InstantiateRecursive(); err != nil {
			_ = s.Transition(StateFailed, "Serial.InstantiateRecursive", 0)
			return err
		}
	}

	return s.Transition(StateReady, "Serial.InstantiateRecursive", 0)
}

// Execute runs every child in insertion order, committing the view
// between children. It aborts on the first failure.
func (s *Serial) Execute(v *store.View) error {
	if err := s.Transition(StateRunning, "Serial.Execute", 0); err != nil {
		return err
	}
	for _, id := range s.order {
		child := s.children[id]
		if err := child.Execute(v); err != nil {
			_ = s.Transition(StateFailed, "Serial.Execute", 0)
			return errors.ChildFailed(s.InstanceID(), id)
		}
		v.Commit()
	}
	return s.Transition(StateComplete, "Serial.Execute", 0)
}

// ExecuteOne runs only the child named id. If a preceding child has not
// reached COMPLETE, it refuses: the parent returns to READY and an error
// is returned. If id names no child, it is a no-op.
func (s *Serial) ExecuteOne(v *store.View, id string) error {
	for _, cid := range s.order {
		if cid == id {
			child := s.children[cid]
			if err := child.Execute(v); err != nil {
				_ = s.Transition(StateFailed, "Serial.ExecuteOne", 0)
				return errors.ChildFailed(s.InstanceID(), cid)
			}
			v.Commit()
			return nil
		}
		if s.children[cid].State() != StateComplete {
			_ = s.Transition(StateReady, "Serial.ExecuteOne", 0)
			return errors.ChildFailed(s.InstanceID(), cid)
		}
	}
	return nil
}
