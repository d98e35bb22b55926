package stages

import (
	"encoding/json"
	"regexp"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/email"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/errors"
)

// FilterPluginName is the plugin name this adapter registers under.
const FilterPluginName = "Filter"

type filterFieldValue struct {
	FilterValue string `json:"filterValue"`
}

type filterField struct {
	Value      string             `json:"value"`
	Outcome    string             `json:"outcome"`
	FilterBy   string             `json:"filterBy"`
	FilterVals []filterFieldValue `json:"filterVals"`
}

type filterEntry struct {
	Fields []filterField `json:"fields"`
}

type filterConfig struct {
	Filters []filterEntry `json:"filters"`
}

var filterSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"filters": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fields": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"value":    map[string]interface{}{"type": "string"},
								"outcome":  map[string]interface{}{"type": "string", "enum": []interface{}{"include", "exclude"}},
								"filterBy": map[string]interface{}{"type": "string", "enum": []interface{}{"string", "regex"}},
								"filterVals": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"filterValue": map[string]interface{}{"type": "string"},
										},
										"required": []interface{}{"filterValue"},
									},
								},
							},
							"required": []interface{}{"value", "outcome", "filterBy", "filterVals"},
						},
					},
				},
				"required": []interface{}{"fields"},
			},
		},
	},
	"required": []interface{}{"filters"},
}

// Filter removes records from its view that fail any configured field
// filter. Removal is active: a record that fails a filter is taken out
// of the backing store immediately, not just hidden from the view.
type Filter struct {
	*stage.Base
	cfg filterConfig
}

// NewFilter constructs a Filter instance.
func NewFilter(instanceID string, log *logrus.Entry) *Filter {
	return &Filter{
		Base: stage.NewBase(FilterPluginName, instanceID, filterSchema, []string{"stage"}, log),
	}
}

func (f *Filter) InstantiateRecursive() error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := json.Unmarshal(f.Config(), &f.cfg); err != nil {
		_ = f.Transition(stage.StateFailed, "Filter.InstantiateRecursive", 0)
		return errors.ConfigInvalid(FilterPluginName, "instantiate_recursive", err.Error())
	}
	return f.Transition(stage.StateReady, "Filter.InstantiateRecursive", 0)
}

// fieldValues returns the candidate strings a filter field with the
// given name should be matched against, per-record.
func fieldValues(r *email.Record, field string) []string {
	switch field {
	case "headerKey":
		out := make([]string, 0)
		for _, h := range r.Headers() {
			out = append(out, h.Key)
		}
		return out
	case "headerVal":
		out := make([]string, 0)
		for _, h := range r.Headers() {
			out = append(out, h.Value)
		}
		return out
	case "attributeKey":
		out := make([]string, 0, len(r.Attributes()))
		for k := range r.Attributes() {
			out = append(out, k)
		}
		return out
	case "attributeVal":
		out := make([]string, 0, len(r.Attributes()))
		for _, v := range r.Attributes() {
			out = append(out, v.Render())
		}
		return out
	case "body":
		return []string{r.BodyText()}
	default:
		return nil
	}
}

func matchesAny(candidates []string, filterBy string, filterVals []filterFieldValue) bool {
	for _, want := range filterVals {
		if filterBy == "regex" {
			re, err := regexp.Compile(want.FilterValue)
			if err != nil {
				continue
			}
			for _, c := range candidates {
				if re.MatchString(c) {
					return true
				}
			}
			continue
		}
		for _, c := range candidates {
			if c == want.FilterValue {
				return true
			}
		}
	}
	return false
}

// recordSurvives reports whether r passes every configured field filter.
func (f *Filter) recordSurvives(r *email.Record) bool {
	for _, entry := range f.cfg.Filters {
		for _, field := range entry.Fields {
			candidates := fieldValues(r, field.Value)
			matched := matchesAny(candidates, field.FilterBy, field.FilterVals)
			remove := (field.Outcome == "include" && !matched) || (field.Outcome == "exclude" && matched)
			if remove {
				return false
			}
		}
	}
	return true
}

// Execute evaluates every record against the configured filters and
// removes the ones that fail. Removal candidates are collected first
// and removed after the full scan, so mutating the store mid-iteration
// never skews View.Each's index walk.
func (f *Filter) Execute(v *store.View) error {
	if err := f.Transition(stage.StateRunning, "Filter.Execute", 0); err != nil {
		return err
	}

	var toRemove []*email.Record
	v.Each(func(r *email.Record) bool {
		if !f.recordSurvives(r) {
			toRemove = append(toRemove, r)
		}
		return true
	})

	for _, r := range toRemove {
		v.RemoveEmail(r)
	}

	return f.Transition(stage.StateComplete, "Filter.Execute", 0)
}
