package attrval

import "strconv"

// TagInteger is the type tag for a signed 64-bit integer attribute value.
const TagInteger = "AttributeBagInteger"

// Integer is a signed integer attribute value.
type Integer struct {
	Value int64
}

// NewInteger constructs an integer attribute value.
func NewInteger(v int64) *Integer { return &Integer{Value: v} }

func (i *Integer) Tag() string       { return TagInteger }
func (i *Integer) Render() string    { return strconv.FormatInt(i.Value, 10) }
func (i *Integer) Serialize() string { return TagInteger + ":" + strconv.FormatInt(i.Value, 10) }
func (i *Integer) Clone() Value      { return &Integer{Value: i.Value} }

func decodeInteger(_, payload string) (Value, error) {
	v, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return nil, err
	}
	return &Integer{Value: v}, nil
}
