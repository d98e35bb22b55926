// Package email implements the canonical in-memory email record (C2): an
// ordered header map, a standard-or-multipart body, a typed attribute
// bag, and a content hash used as the record's equality key.
package email

import (
	"github.com/cespare/xxhash/v2"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/pkg/errors"
)

// AttrFileBytes is the attribute key under which the raw source bytes are
// stored; Finalize hashes this attribute's payload to produce the record's
// content hash.
const AttrFileBytes = "File bytes"

// Record is one parsed email: headers, body, attribute bag, and (once
// Finalize has run) a content hash. The zero value is not usable; build
// one with New.
type Record struct {
	headerKeys  []string
	headers     map[string]string
	body        Body
	isMultipart bool
	attrs       map[string]attrval.Value

	hashSet     bool
	contentHash uint64
}

// New returns an empty record ready for headers, a body, and attributes to
// be set on it.
func New() *Record {
	return &Record{
		headers: make(map[string]string),
		attrs:   make(map[string]attrval.Value),
	}
}

// SetHeader sets key to value. A later call with the same key overwrites
// the value but keeps the key's original position, matching the "ordered,
// single-valued, later sets overwrite" header contract.
func (r *Record) SetHeader(key, value string) {
	if _, exists := r.headers[key]; !exists {
		r.headerKeys = append(r.headerKeys, key)
	}
	r.headers[key] = value
}

// Header returns the value for key and whether it was set.
func (r *Record) Header(key string) (string, bool) {
	v, ok := r.headers[key]
	return v, ok
}

// Headers returns the headers in insertion order. The returned slice is a
// fresh copy; mutating it does not affect the record.
func (r *Record) Headers() []HeaderEntry {
	out := make([]HeaderEntry, len(r.headerKeys))
	for i, k := range r.headerKeys {
		out[i] = HeaderEntry{Key: k, Value: r.headers[k]}
	}
	return out
}

// HeaderEntry is one (key, value) pair in header insertion order.
type HeaderEntry struct {
	Key   string
	Value string
}

// SetStandardBody sets a non-multipart text body.
func (r *Record) SetStandardBody(text string) {
	r.body = StandardBody{Text: text}
	r.isMultipart = false
}

// SetMultipartBody sets a multipart body from its ordered parts.
func (r *Record) SetMultipartBody(parts []Part) {
	cp := make([]Part, len(parts))
	for i, p := range parts {
		cp[i] = p.Clone()
	}
	r.body = MultipartBody{Parts: cp}
	r.isMultipart = true
}

// Body returns the record's body. It is nil until a Set*Body call.
func (r *Record) Body() Body { return r.body }

// IsMultipart reports whether the body variant is multipart. It always
// agrees with the concrete type of Body, per the C2 invariant.
func (r *Record) IsMultipart() bool { return r.isMultipart }

// BodyText renders the body as a single string: the standard body's text,
// or the multipart body's parts joined by newlines. Used by the store's
// JSON rendering, which flattens body to a single text field regardless of
// variant.
func (r *Record) BodyText() string {
	if r.body == nil {
		return ""
	}
	return r.body.text()
}

// SetAttribute stores value under key, overwriting any prior value for
// key. Insertion order of the attribute bag is not observable externally.
func (r *Record) SetAttribute(key string, value attrval.Value) {
	r.attrs[key] = value
}

// Attribute returns the value stored under key and whether it is present.
func (r *Record) Attribute(key string) (attrval.Value, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// Attributes returns a shallow copy of the attribute bag (values are not
// cloned; callers that mutate a returned value must clone it first).
func (r *Record) Attributes() map[string]attrval.Value {
	cp := make(map[string]attrval.Value, len(r.attrs))
	for k, v := range r.attrs {
		cp[k] = v
	}
	return cp
}

// Finalize computes the record's content hash from the AttrFileBytes
// attribute. It is idempotent: once set, the hash is never recomputed,
// even if AttrFileBytes changes afterward.
func (r *Record) Finalize() error {
	if r.hashSet {
		return nil
	}
	av, ok := r.attrs[AttrFileBytes]
	if !ok {
		return errors.MalformedEmail("missing " + AttrFileBytes + " attribute at finalize")
	}
	bin, ok := av.(*attrval.Binary)
	if !ok {
		return errors.MalformedEmail(AttrFileBytes + " attribute is not a binary value")
	}
	r.contentHash = xxhash.Sum64(bin.Value)
	r.hashSet = true
	return nil
}

// ContentHash returns the record's content hash and whether Finalize has
// run. Equality between two records is defined by this hash.
func (r *Record) ContentHash() (uint64, bool) {
	return r.contentHash, r.hashSet
}

// Equal reports whether r and other have the same content hash. Two
// unfinalized records are never equal.
func (r *Record) Equal(other *Record) bool {
	if other == nil || !r.hashSet || !other.hashSet {
		return false
	}
	return r.contentHash == other.contentHash
}

// Clone returns a deep copy: headers, body, and every attribute value are
// independently owned by the clone.
func (r *Record) Clone() *Record {
	cp := New()
	cp.headerKeys = append([]string(nil), r.headerKeys...)
	for k, v := range r.headers {
		cp.headers[k] = v
	}
	cp.body = cloneBody(r.body)
	cp.isMultipart = r.isMultipart
	for k, v := range r.attrs {
		cp.attrs[k] = v.Clone()
	}
	cp.hashSet = r.hashSet
	cp.contentHash = r.contentHash
	return cp
}
