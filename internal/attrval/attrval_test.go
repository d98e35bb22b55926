package attrval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inlook-corpus/internal/attrval"
	apperrors "inlook-corpus/pkg/errors"
)

func roundTrip(t *testing.T, v attrval.Value) attrval.Value {
	t.Helper()
	got, err := attrval.Deserialize(v.Serialize())
	require.NoError(t, err)
	return got
}

func TestRoundTrip(t *testing.T) {
	cases := []attrval.Value{
		attrval.NewString("hello world"),
		attrval.NewString(""),
		attrval.NewBoolean(true),
		attrval.NewBoolean(false),
		attrval.NewInteger(-42),
		attrval.NewInteger(0),
		attrval.NewDouble(3.14159),
		attrval.NewBinary([]byte{0x00, 0x01, 0xff, 0x10}),
		attrval.NewCharVector("abc"),
		attrval.NewStringIntPair("count", 7),
		attrval.NewStringIntPair("has:colon", -3),
		attrval.NewStringFloatPairVector([]attrval.StringFloatPair{
			{Key: "english", Value: 0.91},
			{Key: "french", Value: 0.05},
		}),
	}

	for _, v := range cases {
		got := roundTrip(t, v)
		assert.Equal(t, v.Serialize(), got.Serialize(), "round trip of %s", v.Serialize())
	}
}

func TestDeserializeUnknownTag(t *testing.T) {
	_, err := attrval.Deserialize("NotARealTag:payload")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnknownAttributeType, appErr.Code)
}

func TestDeserializeMalformedPayload(t *testing.T) {
	_, err := attrval.Deserialize(attrval.TagInteger + ":not-a-number")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeMalformedAttribute, appErr.Code)
}

func TestBooleanSerializesAsDigit(t *testing.T) {
	assert.Equal(t, "AttributeBagBoolean:1", attrval.NewBoolean(true).Serialize())
	assert.Equal(t, "AttributeBagBoolean:0", attrval.NewBoolean(false).Serialize())
}

func TestCloneIsIndependent(t *testing.T) {
	orig := attrval.NewBinary([]byte{1, 2, 3})
	clone := orig.Clone().(*attrval.Binary)
	clone.Value[0] = 99
	assert.Equal(t, byte(1), orig.Value[0], "mutating the clone must not affect the original")
}

func TestRegisterRejectsDuplicateTag(t *testing.T) {
	r := attrval.NewRegistry()
	require.NoError(t, r.Register("dup", func(tag, payload string) (attrval.Value, error) {
		return attrval.NewString(payload), nil
	}))
	err := r.Register("dup", func(tag, payload string) (attrval.Value, error) {
		return attrval.NewString(payload), nil
	})
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	a := attrval.NewString("x")
	b := attrval.NewString("x")
	c := attrval.NewString("y")
	assert.True(t, attrval.Equal(a, b))
	assert.False(t, attrval.Equal(a, c))
}
