// Package mqtt publishes menu events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/picolcd/lcd"
	mqtt "github.com/soypat/natiu-mqtt"
)

var (
	ErrNoID    = errors.New("mqtt: client ID is required")
	ErrNoTopic = errors.New("mqtt: topic is required")
)

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

// Event is a change committed from the menu.
type Event struct {
	Menu   string            `json:"menu"`
	Item   string            `json:"item"`
	Values map[string]string `json:"values,omitempty"`
	At     time.Time         `json:"at"`
}

// Payload encodes e as published on the wire.
func Payload(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Conn is the transport a session runs over. A net.Conn satisfies it, as
// does a TCP connection of the Pico W network stack.
type Conn interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

// DialFunc opens the transport to the broker.
type DialFunc func() (Conn, error)

type Client struct {
	ID                string
	Topic             string
	Timeout           time.Duration // Per-operation socket deadline. Defaults to 5s.
	HeartbeatInterval time.Duration // Idle time before the broker is polled. Defaults to 30s.
	RetryDelay        time.Duration // Wait between connection attempts. Defaults to 2s.
	Logger            *slog.Logger
	Username          string // MQTT broker username (optional)
	Password          string // MQTT broker password (optional, requires Username)

	packetID uint16
}

func (c *Client) defaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
}

// ConnectAndPublish connects to the broker through dial and publishes every
// event received, reconnecting as needed. Progress is shown on the LCD
// through lcdMessages. It returns nil once events is closed.
func (c *Client) ConnectAndPublish(dial DialFunc, events <-chan Event, lcdMessages chan<- lcd.Message) error {
	if c.ID == "" {
		return ErrNoID
	}
	if c.Topic == "" {
		return ErrNoTopic
	}
	c.defaults()

	var pending *Event
	for {
		// Notice a closed channel even while the broker is unreachable.
		if pending == nil {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				pending = &ev
			default:
			}
		}

		lcd.Send(lcdMessages, "Connecting...", "MQTT broker")
		conn, err := dial()
		if err != nil {
			c.Logger.Error("socket:dial-failed", slog.String("err", err.Error()))
			lcd.Send(lcdMessages, "Connect Failed", truncate(err.Error()))
			time.Sleep(c.RetryDelay)
			continue
		}

		done, err := c.session(conn, &pending, events, lcdMessages)
		conn.Close()
		if done {
			return nil
		}
		c.Logger.Error("mqtt:disconnected", slog.Any("reason", err))
		lcd.Send(lcdMessages, "Disconnected", "Reconnecting...")
		time.Sleep(c.RetryDelay)
	}
}

// session runs one broker connection. done reports that events was closed.
func (c *Client) session(conn Conn, pending **Event, events <-chan Event, lcdMessages chan<- lcd.Message) (done bool, err error) {
	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			c.Logger.Info("received message", slog.String("topic", string(varPub.TopicName)))
			return nil
		},
	}
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}
	client := mqtt.NewClient(cfg)

	c.Logger.Info("mqtt:start-connecting")
	lcd.Send(lcdMessages, "MQTT Connect", "Authenticating")
	conn.SetDeadline(time.Now().Add(c.Timeout))
	if err := client.StartConnect(conn, &varconn); err != nil {
		lcd.Send(lcdMessages, "Connect Failed", truncate(err.Error()))
		return false, err
	}
	retries := 50
	for retries > 0 && !client.IsConnected() {
		time.Sleep(100 * time.Millisecond)
		if err := client.HandleNext(); err != nil {
			c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
		}
		retries--
	}
	if !client.IsConnected() {
		lcd.Send(lcdMessages, "Connect Failed", "Timed out")
		if err := client.Err(); err != nil {
			return false, err
		}
		return false, errors.New("mqtt: connect timed out")
	}
	lcd.Send(lcdMessages, "MQTT Connected", c.Topic)

	if *pending != nil {
		if err := c.publish(client, conn, **pending); err != nil {
			return false, err
		}
		*pending = nil
	}

	heartbeat := time.NewTicker(c.HeartbeatInterval)
	defer heartbeat.Stop()
	for client.IsConnected() {
		select {
		case ev, ok := <-events:
			if !ok {
				return true, nil
			}
			if err := c.publish(client, conn, ev); err != nil {
				*pending = &ev
				return false, err
			}
		case <-heartbeat.C:
			conn.SetDeadline(time.Now().Add(c.Timeout))
			if err := client.HandleNext(); err != nil {
				c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			}
		}
	}
	return false, client.Err()
}

func (c *Client) publish(client *mqtt.Client, conn Conn, ev Event) error {
	payload, err := Payload(ev)
	if err != nil {
		// Not retryable; drop the event.
		c.Logger.Error("mqtt:marshal-failed", slog.Any("reason", err))
		return nil
	}
	c.packetID++
	varPub := mqtt.VariablesPublish{
		TopicName:        []byte(c.Topic),
		PacketIdentifier: c.packetID,
	}
	conn.SetDeadline(time.Now().Add(c.Timeout))
	if err := client.PublishPayload(pubFlags, varPub, payload); err != nil {
		c.Logger.Error("mqtt:publish-failed", slog.Any("reason", err))
		return err
	}
	c.Logger.Info("published message",
		slog.Uint64("packetID", uint64(varPub.PacketIdentifier)),
		slog.String("item", ev.Item),
	)
	return nil
}

// truncate cuts s to one 16 column LCD line.
func truncate(s string) string {
	return s[:min(len(s), 16)]
}
