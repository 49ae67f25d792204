// internal/bridge/mqtt/bridge.go
package mqtt

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/tamzrod/modbus-iopoints/internal/point"
	"github.com/tamzrod/modbus-iopoints/internal/state"
	"github.com/tamzrod/modbus-iopoints/internal/status"
	"github.com/tamzrod/modbus-iopoints/internal/writer"
)

// Broker is the subset of Client the bridge needs.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, h MessageHandler) error
}

// Board is the subset of board.Board the bridge drives.
type Board interface {
	ID() string
	Subscribe(fn func(state.Update)) (cancel func())
	OnStatusChange(fn func(status.Snapshot))
	GroupStatus() []status.Snapshot
	SetPoint(id string, value bool) (*writer.Pending, error)
}

// Bridge mirrors one board onto MQTT topics.
type Bridge struct {
	broker Broker
	topics Topics
	board  string
	log    *slog.Logger
}

// NewBridge creates a bridge for one board. Call Attach to start it.
func NewBridge(broker Broker, prefix, boardID string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		broker: broker,
		topics: Topics{Prefix: prefix},
		board:  boardID,
		log:    log,
	}
}

// Attach publishes point changes and group health of b and routes set
// commands into b.SetPoint. Write outcomes are not hooked here; pass
// them to PublishOutcome.
//
// The current health of every group is published once, so transitions
// that happened before Attach (discovery) are not lost.
func (br *Bridge) Attach(b Board) (cancel func(), err error) {
	cancel = b.Subscribe(br.PublishUpdate)
	b.OnStatusChange(br.PublishStatus)
	for _, s := range b.GroupStatus() {
		br.PublishStatus(s)
	}

	err = br.broker.Subscribe(br.topics.SetFilter(br.board), func(topic string, payload []byte) error {
		return br.handleSet(b, topic, payload)
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return cancel, nil
}

func (br *Bridge) handleSet(b Board, topic string, payload []byte) error {
	id, err := br.topics.ParseSet(br.board, topic)
	if err != nil {
		return err
	}
	v, err := ParseValue(payload)
	if err != nil {
		return err
	}

	if _, err := b.SetPoint(id, v); err != nil {
		// rejected synchronously; report it like any other outcome
		br.publishResult(id, resultPayload{Desired: v, State: "rejected", Error: err.Error()})
		return err
	}
	br.log.Debug("set command accepted", "board", br.board, "point", id, "value", v)
	return nil
}

// ---- PUBLISHERS ----

// PublishUpdate publishes one point change, retained.
func (br *Bridge) PublishUpdate(u state.Update) {
	topic := br.topics.Point(br.board, u.ID.String())
	if err := br.broker.Publish(topic, []byte(u.ValueString()), true); err != nil {
		br.log.Warn("publish point failed", "topic", topic, "error", err)
	}
}

// PublishCounters publishes changed counters, retained.
func (br *Bridge) PublishCounters(counters map[point.ID]uint32) {
	for id, n := range counters {
		topic := br.topics.Count(br.board, id.String())
		if err := br.broker.Publish(topic, []byte(strconv.FormatUint(uint64(n), 10)), true); err != nil {
			br.log.Warn("publish counter failed", "topic", topic, "error", err)
		}
	}
}

// PublishStatus publishes a group health transition, retained.
func (br *Bridge) PublishStatus(s status.Snapshot) {
	topic := br.topics.GroupStatus(br.board, s.Group)
	if err := br.broker.Publish(topic, status.Encode(s), true); err != nil {
		br.log.Warn("publish status failed", "topic", topic, "error", err)
	}
}

type resultPayload struct {
	Desired  bool   `json:"desired"`
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
	Finished string `json:"finished,omitempty"`
}

// PublishOutcome publishes the terminal result of a write.
func (br *Bridge) PublishOutcome(o writer.Outcome) {
	p := resultPayload{
		Desired:  o.Desired,
		State:    o.Phase.String(),
		Attempts: o.Writes,
	}
	if o.Err != nil {
		p.Error = o.Err.Error()
	}
	if !o.Finished.IsZero() {
		p.Finished = o.Finished.UTC().Format(time.RFC3339Nano)
	}
	br.publishResult(o.ID.String(), p)
}

func (br *Bridge) publishResult(id string, p resultPayload) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	topic := br.topics.Result(br.board, id)
	if err := br.broker.Publish(topic, data, false); err != nil {
		br.log.Warn("publish result failed", "topic", topic, "error", err)
	}
}
