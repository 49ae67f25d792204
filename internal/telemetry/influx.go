// internal/telemetry/influx.go
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	cfg "github.com/tamzrod/modbus-iopoints/internal/config"
	"github.com/tamzrod/modbus-iopoints/internal/point"
)

// Measurement layout.
const (
	Measurement = "di_counter"
	tagBoard    = "board"
	tagPoint    = "point"
	fieldCount  = "count"
)

const (
	defaultConnectTimeout  = 10 * time.Second
	defaultBatchSize       = 100
	defaultFlushIntervalMs = 1000
)

var (
	ErrDisabled         = errors.New("telemetry: influxdb disabled")
	ErrConnectionFailed = errors.New("telemetry: influxdb connection failed")
)

// Sink writes counter samples through the non-blocking WriteAPI.
// Safe for concurrent use.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      *slog.Logger
}

// Connect pings the server and prepares the batched writer.
func Connect(c cfg.InfluxDBConfig, log *slog.Logger) (*Sink, error) {
	if !c.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = slog.Default()
	}

	batch := c.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := c.FlushIntervalMs
	if flush <= 0 {
		flush = defaultFlushIntervalMs
	}

	client := influxdb2.NewClientWithOptions(
		c.URL,
		c.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flush)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	s := &Sink{
		client:   client,
		writeAPI: client.WriteAPI(c.Org, c.Bucket),
		log:      log,
	}
	go s.drainErrors(s.writeAPI.Errors())
	return s, nil
}

func (s *Sink) drainErrors(errs <-chan error) {
	for err := range errs {
		s.log.Warn("influxdb write failed", "error", err)
	}
}

// WriteCounters queues one sample per counter. Never blocks on the network.
func (s *Sink) WriteCounters(board string, counters map[point.ID]uint32, at time.Time) {
	for _, p := range CounterPoints(board, counters, at) {
		s.writeAPI.WritePoint(p)
	}
}

// Close flushes pending samples and releases the client.
func (s *Sink) Close() error {
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}

// CounterPoints builds the samples for one counter poll, ordered by point.
func CounterPoints(board string, counters map[point.ID]uint32, at time.Time) []*write.Point {
	ids := make([]point.ID, 0, len(counters))
	for id := range counters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Index < b.Index
	})

	out := make([]*write.Point, 0, len(ids))
	for _, id := range ids {
		out = append(out, influxdb2.NewPoint(
			Measurement,
			map[string]string{tagBoard: board, tagPoint: id.String()},
			map[string]interface{}{fieldCount: int64(counters[id])},
			at,
		))
	}
	return out
}
