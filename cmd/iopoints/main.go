// cmd/iopoints/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/modbus-iopoints/internal/board"
	"github.com/tamzrod/modbus-iopoints/internal/bridge/mqtt"
	"github.com/tamzrod/modbus-iopoints/internal/config"
	"github.com/tamzrod/modbus-iopoints/internal/journal"
	"github.com/tamzrod/modbus-iopoints/internal/logging"
	"github.com/tamzrod/modbus-iopoints/internal/poller"
	"github.com/tamzrod/modbus-iopoints/internal/telemetry"
	"github.com/tamzrod/modbus-iopoints/internal/writer"
)

// set at build time via -ldflags "-X main.version=..."
var version = "dev"

const journalWriteTimeout = 2 * time.Second

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: iopoints <config.yaml>")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// sinks are the optional outputs shared by every board.
type sinks struct {
	mqtt    *mqtt.Client
	prefix  string
	influx  *telemetry.Sink
	journal *journal.Journal
}

func run(ctx context.Context, cfgPath string) error {
	log := logging.Default()

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	log = logging.New(cfg.IOPoints.Logging, version)
	defer log.Close()
	log.Info("starting iopoints", "config", cfgPath, "boards", len(cfg.IOPoints.Boards))

	// --------------------
	// Shared outputs
	// --------------------

	s, closeSinks, err := openSinks(cfg.IOPoints, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	// --------------------
	// Build + start every board
	// --------------------

	boards, err := startBoards(cfg.IOPoints.Boards, func(bc config.BoardConfig) (*board.Board, error) {
		return board.Build(bc, log.With("board", bc.ID).Logger)
	})
	if err != nil {
		return err
	}
	defer closeBoards(boards)

	type pipeline struct {
		board  *board.Board
		bridge *mqtt.Bridge
	}
	var pipelines []pipeline

	for _, b := range boards {
		blog := log.With("board", b.ID())

		var bridge *mqtt.Bridge
		if s.mqtt != nil {
			bridge = mqtt.NewBridge(s.mqtt, s.prefix, b.ID(), blog.Logger)
			unsubscribe, err := bridge.Attach(b)
			if err != nil {
				return fmt.Errorf("mqtt attach failed (board=%s): %w", b.ID(), err)
			}
			defer unsubscribe()
		}

		b.OnWriteResult(func(o writer.Outcome) {
			blog.Info("write finished",
				"point", o.ID.String(),
				"desired", o.Desired,
				"state", o.Phase.String(),
				"attempts", o.Writes,
			)
			if bridge != nil {
				bridge.PublishOutcome(o)
			}
			if s.journal != nil {
				jctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
				defer cancel()
				if err := s.journal.Record(jctx, o); err != nil {
					blog.Warn("journal write failed", "error", err)
				}
			}
		})

		pipelines = append(pipelines, pipeline{board: b, bridge: bridge})
	}

	// --------------------
	// Run per-board pipelines
	// --------------------

	g, gctx := errgroup.WithContext(ctx)

	for _, pl := range pipelines {
		// ---- channel between poller and outputs ----
		out := make(chan poller.PollResult)

		g.Go(func() error {
			pl.board.Run(gctx, out)
			return nil
		})
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case res := <-out:
					handleResult(res, pl.bridge, s.influx)
				}
			}
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown signal received, cleaning up")
	return nil
}

func handleResult(res poller.PollResult, bridge *mqtt.Bridge, influx *telemetry.Sink) {
	if res.Kind != poller.KindCounters || len(res.Counters) == 0 {
		return
	}
	if bridge != nil {
		bridge.PublishCounters(res.Counters)
	}
	if influx != nil {
		influx.WriteCounters(res.BoardID, res.Counters, res.At)
	}
}

func openSinks(c config.IOPointsConfig, log *logging.Logger) (*sinks, func(), error) {
	s := &sinks{prefix: c.MQTT.TopicPrefix}
	var closers []func()

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if c.MQTT.Enabled {
		cl, err := mqtt.Connect(c.MQTT, log.With("component", "mqtt").Logger)
		if err != nil {
			return nil, nil, err
		}
		s.mqtt = cl
		closers = append(closers, func() { cl.Close() })
		log.Info("mqtt connected", "broker", c.MQTT.Broker)
	}

	if c.InfluxDB.Enabled {
		sink, err := telemetry.Connect(c.InfluxDB, log.With("component", "influxdb").Logger)
		if err != nil {
			// counter history is best-effort
			log.Warn("influxdb unavailable, counter telemetry disabled", "error", err)
		} else {
			s.influx = sink
			closers = append(closers, func() { sink.Close() })
		}
	}

	if c.Journal.Path != "" {
		j, err := journal.Open(c.Journal.Path)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		s.journal = j
		closers = append(closers, func() { j.Close() })
		log.Info("write journal opened", "path", c.Journal.Path)
	}

	return s, closeAll, nil
}
