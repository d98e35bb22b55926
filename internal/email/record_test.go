package email_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
)

func finalized(t *testing.T, bytes []byte) *email.Record {
	t.Helper()
	r := email.New()
	r.SetAttribute(email.AttrFileBytes, attrval.NewBinary(bytes))
	require.NoError(t, r.Finalize())
	return r
}

func TestHeaderOrderAndOverwrite(t *testing.T) {
	r := email.New()
	r.SetHeader("From", "a@b")
	r.SetHeader("Subject", "hi")
	r.SetHeader("From", "c@d")

	got := r.Headers()
	require.Len(t, got, 2)
	assert.Equal(t, "From", got[0].Key)
	assert.Equal(t, "c@d", got[0].Value)
	assert.Equal(t, "Subject", got[1].Key)
}

func TestStandardBody(t *testing.T) {
	r := email.New()
	r.SetStandardBody("hello")
	assert.False(t, r.IsMultipart())
	assert.Equal(t, "hello", r.BodyText())
}

func TestMultipartBody(t *testing.T) {
	r := email.New()
	r.SetMultipartBody([]email.Part{
		{Headers: map[string][]string{"Content-Type": {"text/plain"}}, Body: "part1"},
	})
	assert.True(t, r.IsMultipart())
	parts := r.Body().(email.MultipartBody).Parts
	require.Len(t, parts, 1)
	assert.Equal(t, []string{"text/plain"}, parts[0].Headers["Content-Type"])
	assert.Equal(t, "part1", parts[0].Body)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	r := finalized(t, []byte("hello world"))
	first, _ := r.ContentHash()

	r.SetAttribute(email.AttrFileBytes, attrval.NewBinary([]byte("different")))
	require.NoError(t, r.Finalize())
	second, _ := r.ContentHash()

	assert.Equal(t, first, second, "finalize must not recompute the hash once set")
}

func TestFinalizeRequiresFileBytes(t *testing.T) {
	r := email.New()
	err := r.Finalize()
	assert.Error(t, err)
}

func TestEqualByContentHash(t *testing.T) {
	a := finalized(t, []byte("same bytes"))
	b := finalized(t, []byte("same bytes"))
	c := finalized(t, []byte("different bytes"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestCloneIsDeep(t *testing.T) {
	r := email.New()
	r.SetHeader("Subject", "hi")
	r.SetMultipartBody([]email.Part{{Headers: map[string][]string{"K": {"v"}}, Body: "p1"}})
	r.SetAttribute("k", attrval.NewString("orig"))
	r.SetAttribute(email.AttrFileBytes, attrval.NewBinary([]byte("x")))
	require.NoError(t, r.Finalize())

	clone := r.Clone()
	clone.SetHeader("Subject", "changed")
	clone.SetAttribute("k", attrval.NewString("changed"))
	clone.Body().(email.MultipartBody).Parts[0].Headers["K"][0] = "mutated"

	subj, _ := r.Header("Subject")
	assert.Equal(t, "hi", subj, "cloning must not alias headers")

	origAttr, _ := r.Attribute("k")
	assert.Equal(t, "orig", origAttr.Render(), "cloning must not alias attribute values")

	origParts := r.Body().(email.MultipartBody).Parts
	assert.Equal(t, "v", origParts[0].Headers["K"][0], "cloning must not alias body parts")

	origHash, _ := r.ContentHash()
	cloneHash, _ := clone.ContentHash()
	assert.Equal(t, origHash, cloneHash)
}

func TestJSONView(t *testing.T) {
	r := finalized(t, []byte("x"))
	r.SetHeader("From", "a@b")
	r.SetStandardBody("body text")
	r.SetAttribute("k", attrval.NewString("v"))

	j := r.JSON()
	assert.Equal(t, "body text", j.Body)
	assert.False(t, j.IsMultipart)
	assert.Equal(t, "AttributeBagString:v", j.Attributes["k"])
	require.Len(t, j.Headers, 1)
	assert.Equal(t, "From", j.Headers[0].Key)
}
