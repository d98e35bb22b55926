package attrval

// TagString is the type tag for a plain text attribute value.
const TagString = "AttributeBagString"

// String is a plain text attribute value.
type String struct {
	Value string
}

// NewString constructs a text attribute value.
func NewString(v string) *String { return &String{Value: v} }

func (s *String) Tag() string       { return TagString }
func (s *String) Render() string    { return s.Value }
func (s *String) Serialize() string { return TagString + ":" + s.Value }
func (s *String) Clone() Value      { return &String{Value: s.Value} }

func decodeString(_, payload string) (Value, error) {
	return &String{Value: payload}, nil
}
