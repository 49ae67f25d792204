// internal/codec/codec.go
package codec

// Bit-level conversion between 16-bit registers and IO bits.
// Pure functions. No IO.

// WordBits is the number of IO bits packed into one register.
const WordBits = 16

// DecodeWord unpacks a register into 16 bits.
// Bit 0 (LSB) corresponds to IO index 1.
func DecodeWord(w uint16) [WordBits]bool {
	var out [WordBits]bool
	for i := 0; i < WordBits; i++ {
		out[i] = w&(1<<uint(i)) != 0
	}
	return out
}

// EncodeWord packs up to 16 bits into a register (bit 0 = LSB).
// Extra bits are ignored.
func EncodeWord(bits []bool) uint16 {
	var w uint16
	for i, v := range bits {
		if i >= WordBits {
			break
		}
		if v {
			w |= 1 << uint(i)
		}
	}
	return w
}

// ---- CAPABILITY WORDS ----

// Capability is what one group of a board exposes.
// Immutable once discovered.
type Capability struct {
	Group  int // 1-based
	DI     int
	DO     int
	AI     int
	AO     int
	Serial int
}

// DecodeCapability splits the two capability registers of a group.
//
// w0: bits 0–7 DI count, bits 8–15 DO count.
// w1: bits 0–3 serial ports, bits 4–7 AI count, bits 8–15 AO count.
func DecodeCapability(group int, w0, w1 uint16) Capability {
	return Capability{
		Group:  group,
		DI:     int(w0 & 0x00FF),
		DO:     int(w0 >> 8),
		Serial: int(w1 & 0x000F),
		AI:     int((w1 >> 4) & 0x000F),
		AO:     int(w1 >> 8),
	}
}

// ---- COUNTERS ----

// WordOrder selects how a two-register pulse counter is combined.
type WordOrder int

const (
	// LowFirst: first register holds the low 16 bits.
	LowFirst WordOrder = iota
	// HighFirst: first register holds the high 16 bits.
	HighFirst
)

// ParseWordOrder maps the config spelling to a WordOrder.
func ParseWordOrder(s string) (WordOrder, bool) {
	switch s {
	case "", "low_first":
		return LowFirst, true
	case "high_first":
		return HighFirst, true
	default:
		return LowFirst, false
	}
}

func (o WordOrder) String() string {
	if o == HighFirst {
		return "high_first"
	}
	return "low_first"
}

// CombineCounter builds a 32-bit counter from two consecutive registers
// a (lower address) and b.
func CombineCounter(a, b uint16, order WordOrder) uint32 {
	if order == HighFirst {
		return uint32(a)<<16 | uint32(b)
	}
	return uint32(b)<<16 | uint32(a)
}
