package attrval

import "strings"

// TagCharVector is the type tag for a character-sequence attribute value.
const TagCharVector = "AttributeBagCharVector"

// CharVector is a sequence of individual characters, serialized with ';'
// as the element separator (per the engine's "vectors separated by ;"
// convention). It renders as the joined string.
type CharVector struct {
	Chars []string
}

// NewCharVector constructs a character-vector attribute value from a
// string, splitting it into one element per rune.
func NewCharVector(s string) *CharVector {
	runes := []rune(s)
	chars := make([]string, len(runes))
	for i, r := range runes {
		chars[i] = string(r)
	}
	return &CharVector{Chars: chars}
}

func (c *CharVector) Tag() string    { return TagCharVector }
func (c *CharVector) Render() string { return strings.Join(c.Chars, "") }

func (c *CharVector) Serialize() string {
	return TagCharVector + ":" + strings.Join(c.Chars, ";")
}

func (c *CharVector) Clone() Value {
	cp := make([]string, len(c.Chars))
	copy(cp, c.Chars)
	return &CharVector{Chars: cp}
}

func decodeCharVector(_, payload string) (Value, error) {
	if payload == "" {
		return &CharVector{Chars: nil}, nil
	}
	return &CharVector{Chars: strings.Split(payload, ";")}, nil
}
