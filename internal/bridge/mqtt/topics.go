// internal/bridge/mqtt/topics.go
package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic layout (prefix defaults to "iopoints"):
//
//	<prefix>/<board>/<point>          retained "0" / "1"
//	<prefix>/<board>/<point>/count    retained counter value
//	<prefix>/<board>/<point>/set      inbound command
//	<prefix>/<board>/<point>/result   write outcome JSON
//	<prefix>/<board>/status/<group>   retained group health JSON
//	<prefix>/bridge/status            retained online / offline (LWT)
type Topics struct {
	Prefix string
}

func (t Topics) Point(board, id string) string {
	return t.Prefix + "/" + board + "/" + id
}

func (t Topics) Count(board, id string) string {
	return t.Point(board, id) + "/count"
}

func (t Topics) Set(board, id string) string {
	return t.Point(board, id) + "/set"
}

func (t Topics) Result(board, id string) string {
	return t.Point(board, id) + "/result"
}

func (t Topics) GroupStatus(board string, group int) string {
	return t.Prefix + "/" + board + "/status/" + strconv.Itoa(group)
}

// SetFilter matches every set command of one board.
func (t Topics) SetFilter(board string) string {
	return t.Prefix + "/" + board + "/+/set"
}

func (t Topics) BridgeStatus() string {
	return t.Prefix + "/bridge/status"
}

// ParseSet extracts the point id from a set command topic of board.
func (t Topics) ParseSet(board, topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/"+board+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedCommand, topic)
	}
	id, ok := strings.CutSuffix(rest, "/set")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedCommand, topic)
	}
	return id, nil
}

// ParseValue accepts 0|1|true|false|on|off (case-insensitive, trimmed).
func ParseValue(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
}
