// Package attrval implements the engine's typed, self-describing attribute
// value system: a closed set of variants (text, boolean, integer, double,
// byte sequence, character sequence, a (text,int) pair, and an ordered
// sequence of (text,float) pairs), each serializable to and parseable from
// a `<type-tag>:<payload>` string through a process-wide tag registry.
package attrval

import "inlook-corpus/pkg/errors"

// Value is the capability every attribute variant implements. Serialize
// always includes the leading type tag; Render is for display only and is
// not guaranteed to round-trip through Deserialize.
type Value interface {
	Tag() string
	Render() string
	Serialize() string
	Clone() Value
}

// Equal compares two values by their serialized form, which is how the
// store and tests judge attribute equality: two values are the same
// attribute iff they'd produce the same persisted bytes.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Serialize() == b.Serialize()
}

// split divides s on the first occurrence of sep, returning (s, "", false)
// if sep does not occur.
func split(s string, sep byte) (head, tail string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// unknownTypeErr and malformedErr wrap pkg/errors constructors so callers
// in this package don't repeat component/operation literals everywhere.
func unknownTypeErr(tag string) error {
	return errors.UnknownAttributeType(tag)
}

func malformedErr(tag, payload string) error {
	return errors.MalformedAttribute(tag, payload)
}
