// internal/status/snapshot.go
package status

import "encoding/json"

// Snapshot is the health of one board group.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Group             int
	Health            uint16
	LastErrorCode     uint16
	ConsecutiveErrors uint16
	LastError         string
}

type snapshotJSON struct {
	Group             int    `json:"group"`
	Health            string `json:"health"`
	LastErrorCode     uint16 `json:"last_error_code"`
	ConsecutiveErrors uint16 `json:"consecutive_errors"`
	LastError         string `json:"last_error,omitempty"`
}

// Encode renders a snapshot as the JSON status payload.
func Encode(s Snapshot) []byte {
	b, _ := json.Marshal(snapshotJSON{
		Group:             s.Group,
		Health:            HealthName(s.Health),
		LastErrorCode:     s.LastErrorCode,
		ConsecutiveErrors: s.ConsecutiveErrors,
		LastError:         s.LastError,
	})
	return b
}
