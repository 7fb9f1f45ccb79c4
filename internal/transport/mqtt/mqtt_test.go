package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"beatsense/internal/analysis"
	"beatsense/internal/transport"
)

// fakeToken is a paho.Token that is either complete or pending.
type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(complete bool, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	published []published
	next      []*fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	c.published = append(c.published, published{topic, qos, retained, b})
	if len(c.next) > 0 {
		tok := c.next[0]
		c.next = c.next[1:]
		return tok
	}
	return newToken(true, nil)
}

func beatMessage(seq uint64) transport.Message {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return transport.Message{
		Type:     transport.MessageTypeTick,
		Session:  "s-1",
		Source:   "live",
		Sequence: seq,
		Frame:    analysis.SpectralFrame{Timestamp: ts},
		Beat:     analysis.BeatEvent{IsBeat: true, BPM: 120, Confidence: 0.5, Energy: 0.9, Timestamp: ts},
		Haptic:   transport.HapticState{Pattern: "pulse", Played: true},
	}
}

func TestSendPublishesBeatsOnly(t *testing.T) {
	client := &fakeClient{}
	tr := newTransport(client, "room/beat", nil)

	quiet := beatMessage(1)
	quiet.Beat.IsBeat = false
	if err := tr.Send(quiet); err != nil {
		t.Fatalf("Send(non-beat) error = %v", err)
	}
	if err := tr.Send("not a message"); err != nil {
		t.Fatalf("Send(string) error = %v", err)
	}
	if len(client.published) != 0 {
		t.Fatalf("published %d messages for non-beats, want 0", len(client.published))
	}

	msg := beatMessage(2)
	if err := tr.Send(&msg); err != nil {
		t.Fatalf("Send(beat) error = %v", err)
	}
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	got := client.published[0]
	if got.topic != "room/beat" || got.qos != 0 || got.retained {
		t.Errorf("publish = (%s, %d, %t), want (room/beat, 0, false)", got.topic, got.qos, got.retained)
	}

	var p BeatPayload
	if err := json.Unmarshal(got.payload, &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.BPM != 120 || p.Sequence != 2 || p.Pattern != "pulse" || !p.Haptic {
		t.Errorf("payload = %+v", p)
	}
	if p.Timestamp != "2024-05-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", p.Timestamp)
	}
}

func TestSendReportsCompletedPublishError(t *testing.T) {
	brokerErr := errors.New("not connected")
	client := &fakeClient{next: []*fakeToken{
		newToken(false, nil),
		newToken(true, brokerErr),
		newToken(true, nil),
	}}
	tr := newTransport(client, DefaultTopic, nil)

	// First publish is still in flight, second Send must not block on it.
	if err := tr.Send(beatMessage(1)); err != nil {
		t.Fatalf("first Send error = %v", err)
	}
	if err := tr.Send(beatMessage(2)); err != nil {
		t.Fatalf("second Send error = %v, pending token should not be reported", err)
	}
	// Second token completed with an error, reported on the third Send.
	if err := tr.Send(beatMessage(3)); !errors.Is(err, brokerErr) {
		t.Fatalf("third Send error = %v, want %v", err, brokerErr)
	}
	if len(client.published) != 3 {
		t.Errorf("published %d, want 3", len(client.published))
	}
}

func TestCloseRunsOnceAndRejectsSends(t *testing.T) {
	calls := 0
	tr := newTransport(&fakeClient{}, DefaultTopic, func() { calls++ })

	if err := tr.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close error = %v", err)
	}
	if calls != 1 {
		t.Errorf("close hook ran %d times, want 1", calls)
	}
	if err := tr.Send(beatMessage(1)); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestNewRequiresBroker(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New(Config{}) should fail without a broker")
	}
}

func TestStatusTopic(t *testing.T) {
	if got := (Config{Topic: "a/b"}).StatusTopic(); got != "a/b/status" {
		t.Errorf("StatusTopic = %q", got)
	}
}

type fakeConnector struct {
	token       paho.Token
	disconnects int
}

func (c *fakeConnector) Connect() paho.Token { return c.token }
func (c *fakeConnector) Disconnect(uint)     { c.disconnects++ }

func TestConnectDisconnectsOnFailure(t *testing.T) {
	refused := errors.New("connection refused")
	tests := []struct {
		name            string
		token           *fakeToken
		wantErr         bool
		wantDisconnects int
	}{
		{"connected", newToken(true, nil), false, 0},
		{"broker error", newToken(true, refused), true, 1},
		{"timeout", newToken(false, nil), true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeConnector{token: tt.token}
			err := connect(c, 10*time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Fatalf("connect error = %v, wantErr %t", err, tt.wantErr)
			}
			if c.disconnects != tt.wantDisconnects {
				t.Errorf("Disconnect called %d times, want %d", c.disconnects, tt.wantDisconnects)
			}
		})
	}
}

func TestConnectWrapsBrokerError(t *testing.T) {
	refused := errors.New("connection refused")
	err := connect(&fakeConnector{token: newToken(true, refused)}, time.Second)
	if !errors.Is(err, refused) {
		t.Errorf("connect error = %v, want %v", err, refused)
	}
}
