// internal/codec/layout.go
package codec

// Board register layout.
// These values define the protocol and MUST NOT be configurable.

// ---- GROUP GEOMETRY ----

// GroupStride is the address distance between two groups.
const GroupStride = 100

// ---- CAPABILITY ----

// CapabilityBase is the capability register of group 1.
const CapabilityBase = 1001

// CapabilityWords is the number of registers read per group at discovery.
const CapabilityWords = 2

// ---- DIGITAL STATES ----

// StateWords is the number of registers read per group per state poll
// (word 1 = DI bits, word 2 = DO bits).
const StateWords = 2

// ---- COUNTERS ----

// counterBases is one well-known counter base per group slot.
// Not derivable from GroupStride (group 1 differs).
var counterBases = [...]uint16{8, 103, 203}

// ---- ADDRESS MATH ----

// CapabilityAddress returns the capability register of group slot i (0-based).
func CapabilityAddress(slot int) uint16 {
	return uint16(CapabilityBase + slot*GroupStride)
}

// StateAddress returns the first DI/DO state register of group g (1-based).
func StateAddress(group int) uint16 {
	return uint16((group - 1) * GroupStride)
}

// CounterAddress returns the counter base of group g (1-based).
// ok is false when the board layout defines no counters for that group.
func CounterAddress(group int) (addr uint16, ok bool) {
	if group < 1 || group > len(counterBases) {
		return 0, false
	}
	return counterBases[group-1], true
}

// CoilAddress returns the coil of output index (1-based) in group g.
func CoilAddress(group, index int) uint16 {
	return uint16((group-1)*GroupStride + (index - 1))
}
