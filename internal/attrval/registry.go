package attrval

import (
	"fmt"
	"sync"
)

// Factory parses a payload (the text following the first ':' in a
// serialized attribute) into a Value. It returns an error if payload
// cannot be parsed as that variant; Registry.Deserialize reports any such
// error as a malformed-attribute error.
type Factory func(tag, payload string) (Value, error)

// Registry is the process-wide type-tag table described in the stage
// design: tags are bound to factories once at program start, and
// Deserialize resolves a persisted string back into a Value.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry. Most callers use Default instead.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds tag to factory. Re-registering an already-bound tag is
// rejected, matching the "at most one factory per plugin name"-style
// invariant used elsewhere in the engine.
func (r *Registry) Register(tag string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[tag]; exists {
		return fmt.Errorf("attrval: tag %q already registered", tag)
	}
	r.factories[tag] = factory
	return nil
}

// Deserialize splits s on the first ':', looks up the resulting tag, and
// invokes its factory on the remainder.
func (r *Registry) Deserialize(s string) (Value, error) {
	tag, payload, _ := split(s, ':')

	r.mu.RLock()
	factory, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, unknownTypeErr(tag)
	}

	v, err := factory(tag, payload)
	if err != nil {
		return nil, malformedErr(tag, payload)
	}
	return v, nil
}

// Tags lists every registered type tag, for introspection and tests.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for t := range r.factories {
		tags = append(tags, t)
	}
	return tags
}

// Default is the process-wide registry populated by this package's init
// with the eight built-in variants. Domain adapters that introduce new
// attribute kinds call Default.Register during their own init.
var Default = NewRegistry()

func init() {
	mustRegister(TagString, decodeString)
	mustRegister(TagBoolean, decodeBoolean)
	mustRegister(TagInteger, decodeInteger)
	mustRegister(TagDouble, decodeDouble)
	mustRegister(TagBinary, decodeBinary)
	mustRegister(TagCharVector, decodeCharVector)
	mustRegister(TagStringIntPair, decodeStringIntPair)
	mustRegister(TagStringFloatPairVector, decodeStringFloatPairVector)
}

func mustRegister(tag string, f Factory) {
	if err := Default.Register(tag, f); err != nil {
		panic(err)
	}
}

// Deserialize parses a serialized attribute using the default registry.
func Deserialize(s string) (Value, error) {
	return Default.Deserialize(s)
}
