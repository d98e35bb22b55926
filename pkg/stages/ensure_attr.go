package stages

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/email"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/errors"
)

// EnsureAttrPluginName is the plugin name this adapter registers under.
const EnsureAttrPluginName = "EnsureAttr"

type ensureAttrConfig struct {
	Key   string `json:"key"`
	Value string `json:"val"`
}

var ensureAttrSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"key": map[string]interface{}{"type": "string"},
		"val": map[string]interface{}{
			"type":        "string",
			"description": "If empty, only presence of key is checked, not its value.",
		},
	},
	"required": []interface{}{"key"},
}

// EnsureAttr fails (transitions to FAILED and returns an error) if any
// record in its view is missing the configured attribute key, or has a
// different value when val is set. This is the counterpart
// used to exercise Serial's ChildFailed propagation: a workflow that
// expects an upstream tagger to have run can assert it did.
type EnsureAttr struct {
	*stage.Base
	cfg ensureAttrConfig
}

// NewEnsureAttr constructs an EnsureAttr instance.
func NewEnsureAttr(instanceID string, log *logrus.Entry) *EnsureAttr {
	return &EnsureAttr{
		Base: stage.NewBase(EnsureAttrPluginName, instanceID, ensureAttrSchema, []string{"stage"}, log),
	}
}

func (e *EnsureAttr) InstantiateRecursive() error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := json.Unmarshal(e.Config(), &e.cfg); err != nil {
		_ = e.Transition(stage.StateFailed, "EnsureAttr.InstantiateRecursive", 0)
		return errors.ConfigInvalid(EnsureAttrPluginName, "instantiate_recursive", err.Error())
	}
	e.DeclareAttributes([]string{e.cfg.Key}, nil)
	return e.Transition(stage.StateReady, "EnsureAttr.InstantiateRecursive", 0)
}

func (e *EnsureAttr) Execute(v *store.View) error {
	if err := e.Transition(stage.StateRunning, "EnsureAttr.Execute", 0); err != nil {
		return err
	}

	var missing bool
	v.Each(func(r *email.Record) bool {
		av, ok := r.Attribute(e.cfg.Key)
		if !ok || (e.cfg.Value != "" && av.Render() != e.cfg.Value) {
			missing = true
			return false
		}
		return true
	})

	if missing {
		_ = e.Transition(stage.StateFailed, "EnsureAttr.Execute", 0)
		return errors.MalformedEmail("required attribute " + e.cfg.Key + " missing or mismatched")
	}

	return e.Transition(stage.StateComplete, "EnsureAttr.Execute", 0)
}
