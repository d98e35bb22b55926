package attrval

import "encoding/base64"

// TagBinary is the type tag for an opaque byte-sequence attribute value.
const TagBinary = "AttributeBagBinary"

// Binary holds an arbitrary byte sequence. It serializes as base64 so the
// payload never collides with the ':'/';' separators used by other
// variants.
type Binary struct {
	Value []byte
}

// NewBinary constructs a byte-sequence attribute value.
func NewBinary(v []byte) *Binary {
	cp := make([]byte, len(v))
	copy(cp, v)
	return &Binary{Value: cp}
}

func (b *Binary) Tag() string    { return TagBinary }
func (b *Binary) Render() string { return base64.StdEncoding.EncodeToString(b.Value) }

func (b *Binary) Serialize() string {
	return TagBinary + ":" + base64.StdEncoding.EncodeToString(b.Value)
}

func (b *Binary) Clone() Value {
	cp := make([]byte, len(b.Value))
	copy(cp, b.Value)
	return &Binary{Value: cp}
}

func decodeBinary(_, payload string) (Value, error) {
	v, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	return &Binary{Value: v}, nil
}
