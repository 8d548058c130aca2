package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID_IntAndString(t *testing.T) {
	assert.Equal(t, ChunkID("7"), NewIntChunkID(7))
	assert.Equal(t, ChunkID("grad-0"), NewChunkID("grad-0"))
	assert.Equal(t, "grad-0", NewChunkID("grad-0").String())
}

func TestParseRate_Max(t *testing.T) {
	r, err := ParseRate("Max")
	require.NoError(t, err)
	bps, useMax := r.Resolve()
	assert.True(t, useMax)
	assert.Equal(t, 0.0, bps)

	r2, err := ParseRate("  max  ")
	require.NoError(t, err)
	_, useMax2 := r2.Resolve()
	assert.True(t, useMax2)
}

func TestParseRate_Numeric(t *testing.T) {
	for _, v := range []any{float64(1e9), int(1e9), "1000000000"} {
		r, err := ParseRate(v)
		require.NoError(t, err)
		bps, useMax := r.Resolve()
		assert.False(t, useMax)
		assert.Equal(t, 1e9, bps)
	}
}

func TestParseRate_RejectsNonPositiveOrGarbage(t *testing.T) {
	for _, v := range []any{0.0, -5.0, "not-a-rate", struct{}{}} {
		_, err := ParseRate(v)
		require.Error(t, err)
		assert.True(t, Is(err, KindInvalidPolicy))
	}
}

func TestPacket_NextHopAndAdvance(t *testing.T) {
	p := &Packet{Path: []string{"a", "b", "c"}, HopIdx: 0}

	hop, ok := p.NextHop()
	require.True(t, ok)
	assert.Equal(t, "b", hop)

	p.Advance()
	assert.Equal(t, 1, p.HopIdx)

	hop, ok = p.NextHop()
	require.True(t, ok)
	assert.Equal(t, "c", hop)

	p.Advance()
	_, ok = p.NextHop()
	assert.False(t, ok, "no next hop once at the end of the path")
}

func TestPacket_Bits(t *testing.T) {
	p := &Packet{SizeBytes: 1500}
	assert.Equal(t, int64(12000), p.Bits())
}
