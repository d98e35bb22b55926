package attrval

import "strconv"

// TagDouble is the type tag for a 64-bit floating point attribute value.
const TagDouble = "AttributeBagDouble"

// Double is a floating point attribute value.
type Double struct {
	Value float64
}

// NewDouble constructs a double attribute value.
func NewDouble(v float64) *Double { return &Double{Value: v} }

func (d *Double) Tag() string       { return TagDouble }
func (d *Double) Render() string    { return strconv.FormatFloat(d.Value, 'g', -1, 64) }
func (d *Double) Serialize() string { return TagDouble + ":" + strconv.FormatFloat(d.Value, 'g', -1, 64) }
func (d *Double) Clone() Value      { return &Double{Value: d.Value} }

func decodeDouble(_, payload string) (Value, error) {
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return nil, err
	}
	return &Double{Value: v}, nil
}
