// internal/bridge/mqtt/client.go
package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	cfg "github.com/tamzrod/modbus-iopoints/internal/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 30 * time.Second
	defaultMaxReconnect      = 30 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// MessageHandler receives inbound messages. Returned errors are logged.
type MessageHandler func(topic string, payload []byte) error

// Client wraps a paho client: LWT, auto-reconnect and re-subscription.
// Safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	topics Topics
	qos    byte
	log    *slog.Logger

	subMu sync.Mutex
	subs  map[string]MessageHandler
}

// Connect dials the broker and publishes the online status.
// Assumes config has already passed Validate and Normalize.
func Connect(c cfg.MQTTConfig, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	cl := &Client{
		topics: Topics{Prefix: c.TopicPrefix},
		qos:    byte(c.QoS),
		log:    log,
		subs:   make(map[string]MessageHandler),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	opts.SetClientID(c.ClientID)
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(defaultMaxReconnect)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// broker publishes this if we vanish
	opts.SetWill(cl.topics.BridgeStatus(), payloadOffline, 1, true)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { cl.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		cl.log.Warn("mqtt connection lost", "error", err)
	})

	cl.client = pahomqtt.NewClient(opts)
	token := cl.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return cl, nil
}

// handleConnect runs on the initial connect and on every reconnect.
func (c *Client) handleConnect() {
	c.subMu.Lock()
	for topic, h := range c.subs {
		c.client.Subscribe(topic, c.qos, c.wrap(h))
	}
	c.subMu.Unlock()

	c.client.Publish(c.topics.BridgeStatus(), 1, true, payloadOnline)
	c.log.Info("mqtt connected")
}

// Publish sends payload to topic at the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s", ErrTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Subscribe registers h for topic; it is restored after reconnects.
func (c *Client) Subscribe(topic string, h MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.subMu.Lock()
	c.subs[topic] = h
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, c.qos, c.wrap(h))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s", ErrTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client.IsConnectionOpen() {
		token := c.client.Publish(c.topics.BridgeStatus(), 1, true, payloadOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

func (c *Client) wrap(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.log.Warn("mqtt handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
