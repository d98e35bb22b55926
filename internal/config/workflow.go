package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	apperrors "inlook-corpus/pkg/errors"
)

// LoadWorkflowDocument reads the workflow document at path (JSON or
// YAML by extension) and returns it as canonical JSON, suitable for
// stage.Root.SetConfig / InstantiateRecursive.
//
// The Serial and Parallel executors use different field names for their
// child list (`plugins` and `plugin` respectively), an asymmetry kept
// for compatibility with existing persisted documents. Rather than
// rejecting a hand-edited document that used the "wrong" key for
// either executor, normalizeChildKey defensively accepts either key at
// every executor options object and rewrites it to the key that
// executor actually expects before the document reaches stage.Root.
func LoadWorkflowDocument(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.ConfigInvalid("config", "loadWorkflow", fmt.Sprintf("read %s: %v", path, err))
	}

	var doc map[string]interface{}
	if isYAMLExt(path) {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, apperrors.ConfigInvalid("config", "loadWorkflow", fmt.Sprintf("parse yaml %s: %v", path, err))
		}
		doc = normalizeYAMLMaps(doc).(map[string]interface{})
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, apperrors.ConfigInvalid("config", "loadWorkflow", fmt.Sprintf("parse json %s: %v", path, err))
		}
	}

	normalizeChildKey(doc)

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.ConfigInvalid("config", "loadWorkflow", fmt.Sprintf("re-encode %s: %v", path, err))
	}
	return out, nil
}

// normalizeYAMLMaps converts yaml.v2's map[interface{}]interface{} nodes
// into map[string]interface{} so the document round-trips through
// encoding/json, which cannot marshal interface{}-keyed maps.
func normalizeYAMLMaps(v interface{}) interface{} {
	switch node := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, val := range node {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLMaps(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, val := range node {
			out[k] = normalizeYAMLMaps(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, item := range node {
			out[i] = normalizeYAMLMaps(item)
		}
		return out
	default:
		return v
	}
}

// normalizeChildKey walks a workflow document's stage tree, rewriting
// each executor's options object to use the key its plugin actually
// requires: "plugins" for Serial, "plugin" for Parallel. A document
// using the other key for that plugin is accepted and rewritten in
// place; a document already using the right key is left untouched.
func normalizeChildKey(node interface{}) {
	obj, ok := node.(map[string]interface{})
	if !ok {
		if arr, ok := node.([]interface{}); ok {
			for _, item := range arr {
				normalizeChildKey(item)
			}
		}
		return
	}

	name, _ := obj["name"].(string)
	options, hasOptions := obj["options"].(map[string]interface{})

	if hasOptions {
		switch name {
		case "Serial":
			if v, ok := options["plugin"]; ok {
				if _, already := options["plugins"]; !already {
					options["plugins"] = v
				}
				delete(options, "plugin")
			}
		case "Parallel":
			if v, ok := options["plugins"]; ok {
				if _, already := options["plugin"]; !already {
					options["plugin"] = v
				}
				delete(options, "plugins")
			}
		}
	}

	for _, v := range obj {
		switch vv := v.(type) {
		case map[string]interface{}:
			normalizeChildKey(vv)
		case []interface{}:
			for _, item := range vv {
				normalizeChildKey(item)
			}
		}
	}
}
