package sim

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ChunkID identifies a logical data object copied between GPUs by one or
// more transmissions. The source policy format allows integer or string
// chunk identifiers; both are normalized to ChunkID (a tagged string) so map
// keys hash consistently throughout the kernel.
type ChunkID string

// NewChunkID wraps a string chunk identifier.
func NewChunkID(s string) ChunkID { return ChunkID(s) }

// NewIntChunkID wraps an integer chunk identifier.
func NewIntChunkID(n int64) ChunkID { return ChunkID(strconv.FormatInt(n, 10)) }

func (c ChunkID) String() string { return string(c) }

// TxID identifies one transmission: a chunk moving from one src GPU to one
// dst GPU.
type TxID struct {
	Chunk ChunkID
	Src   string
	Dst   string
}

func (t TxID) String() string { return fmt.Sprintf("%s:%s->%s", t.Chunk, t.Src, t.Dst) }

// Rate is a policy/schedule rate: either a positive bps value, or the
// sentinel "use the link's max rate" (spelled "Max", case-insensitive, in
// PolicyEntry inputs).
type Rate struct {
	bps    float64
	useMax bool
}

// MaxRate returns the "use line rate" sentinel.
func MaxRate() Rate { return Rate{useMax: true} }

// BpsRate returns a fixed bps rate.
func BpsRate(bps float64) Rate { return Rate{bps: bps} }

// ParseRate accepts a positive number (bps) or the case-insensitive,
// trimmed string "Max".
func ParseRate(v any) (Rate, error) {
	switch x := v.(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(x), "max") {
			return MaxRate(), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return Rate{}, newErrorf(KindInvalidPolicy, "invalid rate string %q: use a number (bps) or %q", x, "Max")
		}
		return validateRate(f)
	case float64:
		return validateRate(x)
	case int:
		return validateRate(float64(x))
	default:
		return Rate{}, newErrorf(KindInvalidPolicy, "invalid rate value %v (%T)", v, v)
	}
}

func validateRate(f float64) (Rate, error) {
	if !math.IsFinite(f) || f <= 0 {
		return Rate{}, newErrorf(KindInvalidPolicy, "rate must be > 0, got %v", f)
	}
	return BpsRate(f), nil
}

// Resolve returns the effective bps and whether the max-rate sentinel is set.
func (r Rate) Resolve() (bps float64, useMax bool) { return r.bps, r.useMax }

// Packet is the quantum of transfer along a path. It is created by the
// policy engine at rule fire and mutated only by Advance as it is forwarded
// hop by hop.
type Packet struct {
	TxID  TxID
	Chunk ChunkID

	Seq          int
	TotalPackets int

	SizeBytes int

	Path   []string
	HopIdx int

	QPID        int
	Rate        Rate
	CreatedTime float64
}

// NextHop returns the node after the current hop, or "" if the packet has
// already reached the end of its path.
func (p *Packet) NextHop() (string, bool) {
	if p.HopIdx+1 >= len(p.Path) {
		return "", false
	}
	return p.Path[p.HopIdx+1], true
}

// Advance moves the packet to the next hop in its path.
func (p *Packet) Advance() { p.HopIdx++ }

// Bits returns the packet's payload size in bits (header bytes are a Port
// concern, added at service-time computation, not carried on the packet).
func (p *Packet) Bits() int64 { return int64(p.SizeBytes) * 8 }
