// internal/status/constants.go
package status

// Group health codes.
// These values are published verbatim and MUST NOT be renumbered.

// HealthUnknown represents a group not read yet.
const HealthUnknown uint16 = 0

// HealthOK represents a group whose last read succeeded.
const HealthOK uint16 = 1

// HealthError represents a group whose last read failed.
// Cached points of the group are stale but kept.
const HealthError uint16 = 2

// HealthDisabled represents a group whose capability discovery failed.
// No points of that group are servable.
const HealthDisabled uint16 = 4

// ConsecutiveErrorsMax caps the error counter (it must not wrap).
const ConsecutiveErrorsMax = 65535

// HealthName returns the published name of a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
