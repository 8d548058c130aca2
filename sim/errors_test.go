package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidTopology: "InvalidTopology",
		KindInvalidPolicy:   "InvalidPolicy",
		KindInvalidRate:     "InvalidRate",
		KindNoRoute:         "NoRoute",
		KindUnknownNode:     "UnknownNode",
		Kind(99):            "Unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestError_Is(t *testing.T) {
	err := newErrorf(KindNoRoute, "no port to %s", "g3")
	assert.True(t, Is(err, KindNoRoute))
	assert.False(t, Is(err, KindInvalidRate))
	assert.False(t, Is(nil, KindNoRoute))
}

func TestNewError_MatchesInternalConstructor(t *testing.T) {
	err := NewError(KindInvalidPolicy, "bad %s", "entry")
	assert.Equal(t, KindInvalidPolicy, err.Kind)
	assert.Equal(t, "bad entry", err.Msg)
	assert.Equal(t, "InvalidPolicy: bad entry", err.Error())
}
