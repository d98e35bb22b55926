package stages

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/errors"
)

// AttributeAdderPluginName is the plugin name this adapter registers under.
const AttributeAdderPluginName = "AddAttr"

type attributeAdderEntry struct {
	Key   string `json:"attributeKey"`
	Value string `json:"attributeVal"`
}

type attributeAdderConfig struct {
	Attributes []attributeAdderEntry `json:"attributes"`
}

var attributeAdderSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"attributes": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"attributeKey": map[string]interface{}{"type": "string"},
					"attributeVal": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"attributeKey", "attributeVal"},
			},
		},
	},
	"required": []interface{}{"attributes"},
}

// AttributeAdder stamps a fixed set of string attributes onto every
// record in its view.
type AttributeAdder struct {
	*stage.Base
	cfg attributeAdderConfig
}

// NewAttributeAdder constructs an AttributeAdder instance.
func NewAttributeAdder(instanceID string, log *logrus.Entry) *AttributeAdder {
	return &AttributeAdder{
		Base: stage.NewBase(AttributeAdderPluginName, instanceID, attributeAdderSchema, []string{"stage"}, log),
	}
}

func (a *AttributeAdder) InstantiateRecursive() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := json.Unmarshal(a.Config(), &a.cfg); err != nil {
		_ = a.Transition(stage.StateFailed, "AttributeAdder.InstantiateRecursive", 0)
		return errors.ConfigInvalid(AttributeAdderPluginName, "instantiate_recursive", err.Error())
	}
	generated := make([]string, len(a.cfg.Attributes))
	for i, e := range a.cfg.Attributes {
		generated[i] = e.Key
	}
	a.DeclareAttributes(nil, generated)
	return a.Transition(stage.StateReady, "AttributeAdder.InstantiateRecursive", 0)
}

func (a *AttributeAdder) Execute(v *store.View) error {
	if err := a.Transition(stage.StateRunning, "AttributeAdder.Execute", 0); err != nil {
		return err
	}
	v.Each(func(r *email.Record) bool {
		for _, e := range a.cfg.Attributes {
			r.SetAttribute(e.Key, attrval.NewString(e.Value))
		}
		return true
	})
	return a.Transition(stage.StateComplete, "AttributeAdder.Execute", 0)
}
