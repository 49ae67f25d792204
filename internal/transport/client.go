// internal/transport/client.go
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Client is a single Modbus connection to one board.
// Reads and coil writes share one handler, so requests are serialized.
type Client struct {
	mu      sync.Mutex
	handler handler
	client  modbus.Client
}

// handler is what both goburrow TCP and RTU handlers provide.
type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Config is minimal transport config.
// Exactly one of Endpoint (TCP) or Serial (RTU) is used.
type Config struct {
	Endpoint string
	Serial   *SerialConfig
	UnitID   uint8
	Timeout  time.Duration
}

// SerialConfig describes an RTU line.
type SerialConfig struct {
	Device   string
	BaudRate int
	DataBits int
	Parity   string // "N", "E", "O"
	StopBits int
}

// New builds an unconnected client. Call Connect before use.
func New(cfg Config) (*Client, error) {
	c := &Client{}

	switch {
	case cfg.Serial != nil:
		if cfg.Serial.Device == "" {
			return nil, errors.New("transport: serial device required")
		}
		h := modbus.NewRTUClientHandler(cfg.Serial.Device)
		h.BaudRate = cfg.Serial.BaudRate
		h.DataBits = cfg.Serial.DataBits
		h.Parity = cfg.Serial.Parity
		h.StopBits = cfg.Serial.StopBits
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		c.handler = h

	case cfg.Endpoint != "":
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		c.handler = h

	default:
		return nil, errors.New("transport: endpoint or serial device required")
	}

	c.client = modbus.NewClient(c.handler)
	return c, nil
}

// Connect opens the underlying connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.handler.Connect(); err != nil {
		return fmt.Errorf("transport: connect: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ReadHoldingRegisters reads qty registers starting at addr (FC 3).
func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	if qty == 0 {
		return nil, nil
	}

	c.mu.Lock()
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	regs := unpackRegisters(raw)
	if len(regs) < int(qty) {
		return nil, fmt.Errorf("transport: short read: got=%d want=%d", len(regs), qty)
	}
	return regs, nil
}

// WriteSingleCoil sets one coil (FC 5).
func (c *Client) WriteSingleCoil(addr uint16, on bool) error {
	var v uint16
	if on {
		v = 0xFF00
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.client.WriteSingleCoil(addr, v)
	return err
}

// ---- helpers (pure geometry) ----

// Modbus register memory order (BIG-ENDIAN)
func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
