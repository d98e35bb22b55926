package email

// JSONView is the rendering the store's get_simple_json_list operation
// produces for each element: the content hash, multipart flag, headers as
// an ordered list, flattened body text, and each attribute's serialized
// form keyed by attribute name.
type JSONView struct {
	UniqueHash  uint64            `json:"unique_hash"`
	IsMultipart bool              `json:"is_multipart"`
	Headers     []HeaderEntry     `json:"headers"`
	Body        string            `json:"body"`
	Attributes  map[string]string `json:"attributes"`
}

// JSON renders r per the store's simple JSON list contract. It panics if r
// has not been finalized; callers always finalize before a record reaches
// a view.
func (r *Record) JSON() JSONView {
	hash, ok := r.ContentHash()
	if !ok {
		panic("email: JSON called on an unfinalized record")
	}
	attrs := make(map[string]string, len(r.attrs))
	for k, v := range r.attrs {
		attrs[k] = v.Serialize()
	}
	return JSONView{
		UniqueHash:  hash,
		IsMultipart: r.isMultipart,
		Headers:     r.Headers(),
		Body:        r.BodyText(),
		Attributes:  attrs,
	}
}
