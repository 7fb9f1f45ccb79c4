// Package mqtt publishes beat events to an MQTT broker so other devices can
// react to the music without running their own analysis.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"beatsense/internal/log"
	"beatsense/internal/transport"
)

// Defaults for topics and the client id.
const (
	DefaultTopic    = "beatsense/beat"
	DefaultClientID = "beatsense"

	statusOnline  = "online"
	statusOffline = "offline"

	connectTimeout = 10 * time.Second
)

// Config describes the broker connection.
type Config struct {
	Broker   string
	ClientID string
	Topic    string // Beat events. Status is published on Topic + "/status".
}

// StatusTopic returns the retained status topic for cfg.
func (c Config) StatusTopic() string { return c.Topic + "/status" }

// BeatPayload is the JSON body of a beat event.
type BeatPayload struct {
	Session    string  `json:"session"`
	Source     string  `json:"source"`
	Sequence   uint64  `json:"seq"`
	Timestamp  string  `json:"ts"`
	BPM        int     `json:"bpm"`
	Confidence float64 `json:"confidence"`
	Energy     float64 `json:"energy"`
	Pattern    string  `json:"pattern,omitempty"`
	Haptic     bool    `json:"haptic"`
}

// FormatBeatPayload renders msg as the JSON published for a beat.
func FormatBeatPayload(msg transport.Message) ([]byte, error) {
	ts := msg.Beat.Timestamp
	if ts.IsZero() {
		ts = msg.Frame.Timestamp
	}
	return json.Marshal(BeatPayload{
		Session:    msg.Session,
		Source:     msg.Source,
		Sequence:   msg.Sequence,
		Timestamp:  ts.UTC().Format(time.RFC3339Nano),
		BPM:        msg.Beat.BPM,
		Confidence: msg.Beat.Confidence,
		Energy:     msg.Beat.Energy,
		Pattern:    msg.Haptic.Pattern,
		Haptic:     msg.Haptic.Played,
	})
}

// publisher is the subset of paho.Client used for sending.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Transport publishes beats. Non-beat ticks are ignored so the broker sees
// one message per beat rather than one per frame.
type Transport struct {
	client publisher
	close  func()
	topic  string

	mu      sync.Mutex
	pending paho.Token // Last in-flight publish.
	closed  bool
}

// New connects to the broker in cfg.
func New(cfg Config) (*Transport, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(cfg.StatusTopic(), statusOffline, 1, true)

	client := paho.NewClient(opts)
	if err := connect(client, connectTimeout); err != nil {
		return nil, err
	}

	t := newTransport(client, cfg.Topic, func() {
		tok := client.Publish(cfg.StatusTopic(), 1, true, statusOffline)
		tok.WaitTimeout(time.Second)
		client.Disconnect(1000)
	})
	client.Publish(cfg.StatusTopic(), 1, true, statusOnline)
	log.Infof("MQTT: Connected to %s, publishing beats on %s", cfg.Broker, cfg.Topic)
	return t, nil
}

// connector is the part of paho.Client used while establishing a session.
type connector interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
}

// connect waits for the first connection. On failure the client is
// disconnected so the retry loop started by Connect does not outlive New.
func connect(c connector, timeout time.Duration) error {
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		c.Disconnect(0)
		return errors.New("mqtt: connection timeout")
	}
	if err := token.Error(); err != nil {
		c.Disconnect(0)
		return fmt.Errorf("mqtt: connect to broker: %w", err)
	}
	return nil
}

func newTransport(client publisher, topic string, closeFn func()) *Transport {
	return &Transport{client: client, topic: topic, close: closeFn}
}

// Send publishes data if it is a beat message. It never waits for the
// broker; the error of the previous publish, if it has completed, is
// reported instead.
func (t *Transport) Send(data any) error {
	if !transport.IsBeat(data) {
		return nil
	}
	var msg transport.Message
	switch m := data.(type) {
	case transport.Message:
		msg = m
	case *transport.Message:
		msg = *m
	}

	payload, err := FormatBeatPayload(msg)
	if err != nil {
		return fmt.Errorf("mqtt: format payload: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}

	prevErr := t.completedError()
	// QoS 0, not retained: a late beat is worthless.
	t.pending = t.client.Publish(t.topic, 0, false, payload)
	if prevErr != nil {
		return fmt.Errorf("mqtt: publish: %w", prevErr)
	}
	return nil
}

// completedError returns the error of the pending publish if it has
// finished. Caller holds mu.
func (t *Transport) completedError() error {
	if t.pending == nil {
		return nil
	}
	select {
	case <-t.pending.Done():
		return t.pending.Error()
	default:
		return nil
	}
}

// Close marks the status offline and disconnects.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.close != nil {
		t.close()
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
