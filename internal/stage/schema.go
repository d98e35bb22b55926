package stage

import (
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"inlook-corpus/pkg/errors"
)

// inlookHintPrefix marks schema keys that are private UI hints, not
// JSON-Schema vocabulary, and must not reach the validator.
const inlookHintPrefix = "_inlook_"

// Keyword sets for the post-cleaning schema walk. Grouped by the shape
// of the keyword's value: a nested schema, a map of schemas, a list of
// schemas, or a plain scalar/structural value.
var (
	schemaValueKeywords = keywordSet(
		"items", "additionalItems", "additionalProperties", "unevaluatedItems",
		"unevaluatedProperties", "contains", "propertyNames", "contentSchema",
		"not", "if", "then", "else",
	)
	schemaMapKeywords = keywordSet(
		"properties", "patternProperties", "$defs", "definitions", "dependentSchemas",
	)
	schemaListKeywords = keywordSet("allOf", "anyOf", "oneOf", "prefixItems")
	plainKeywords      = keywordSet(
		"$schema", "$id", "$ref", "$vocabulary", "$comment", "$anchor",
		"$dynamicRef", "$dynamicAnchor",
		"type", "enum", "const", "required", "dependentRequired",
		"minProperties", "maxProperties",
		"minItems", "maxItems", "uniqueItems", "minContains", "maxContains",
		"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum", "multipleOf",
		"minLength", "maxLength", "pattern", "format",
		"contentEncoding", "contentMediaType",
		"title", "description", "default", "examples", "deprecated",
		"readOnly", "writeOnly",
	)
)

func keywordSet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// firstUnknownKeyword walks a cleaned schema and returns the first key
// that is not a recognized JSON-Schema keyword, or "" if every key is
// known.
func firstUnknownKeyword(schema map[string]interface{}) string {
	for key, val := range schema {
		switch {
		case schemaValueKeywords[key]:
			if sub, ok := val.(map[string]interface{}); ok {
				if unknown := firstUnknownKeyword(sub); unknown != "" {
					return unknown
				}
			}
		case schemaMapKeywords[key]:
			if m, ok := val.(map[string]interface{}); ok {
				for _, subVal := range m {
					if sub, ok := subVal.(map[string]interface{}); ok {
						if unknown := firstUnknownKeyword(sub); unknown != "" {
							return unknown
						}
					}
				}
			}
		case schemaListKeywords[key]:
			if list, ok := val.([]interface{}); ok {
				for _, item := range list {
					if sub, ok := item.(map[string]interface{}); ok {
						if unknown := firstUnknownKeyword(sub); unknown != "" {
							return unknown
						}
					}
				}
			}
		case plainKeywords[key]:
		default:
			return key
		}
	}
	return ""
}

// CleanSchema returns a deep copy of schema with every object key
// beginning with "_inlook_" removed, recursively through nested objects
// and arrays.
func CleanSchema(schema map[string]interface{}) map[string]interface{} {
	cleaned, _ := cleanValue(schema).(map[string]interface{})
	return cleaned
}

func cleanValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if strings.HasPrefix(k, inlookHintPrefix) {
				continue
			}
			out[k] = cleanValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cleanValue(val)
		}
		return out
	default:
		return v
	}
}

// ValidateConfig validates cfg against schema after cleaning it. Failure
// returns a ConfigInvalid error carrying the validator's diagnostic as
// metadata.
//
// Cleaning only forgives keys carrying the "_inlook_" prefix. Any other
// key that is not a recognized JSON-Schema keyword is rejected here,
// before the schema reaches the validator, so a mistyped hint key (e.g.
// "inlook_check" with the underscore dropped) surfaces as ConfigInvalid
// instead of being silently ignored.
func ValidateConfig(schema map[string]interface{}, cfg json.RawMessage) error {
	cleaned := CleanSchema(schema)

	if key := firstUnknownKeyword(cleaned); key != "" {
		return errors.ConfigInvalid("stage", "validate", "unknown schema keyword: "+key).
			WithMetadata("keyword", key)
	}

	schemaBytes, err := json.Marshal(cleaned)
	if err != nil {
		return errors.ConfigInvalid("stage", "validate", "schema not serializable: "+err.Error())
	}

	var sch jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &sch); err != nil {
		return errors.ConfigInvalid("stage", "validate", "schema is not valid JSON-Schema: "+err.Error())
	}

	resolved, err := sch.Resolve(nil)
	if err != nil {
		return errors.ConfigInvalid("stage", "validate", "schema failed to resolve: "+err.Error())
	}

	// A stage declared without options carries an empty config; validate
	// it as an empty object, not JSON null.
	var instance interface{} = map[string]interface{}{}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &instance); err != nil {
			return errors.ConfigInvalid("stage", "validate", "config is not valid JSON: "+err.Error())
		}
	}

	if err := resolved.Validate(instance); err != nil {
		return errors.ConfigInvalid("stage", "validate", err.Error()).WithMetadata("validation_error", err.Error())
	}
	return nil
}
