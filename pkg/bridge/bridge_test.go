package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backkem/mediaremote/pkg/message"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu    sync.Mutex
	msgs  []published
	token *fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, published{topic, qos, payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return &fakeToken{}
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	b, err := New(Config{Client: client, TopicPrefix: "home/tv/", QoS: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	msg := message.New(&message.SendCommand{Command: message.CommandPause})
	msg.Identifier = "ABC"
	if err := b.Publish(msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(client.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.msgs))
	}
	got := client.msgs[0]
	if got.topic != "home/tv/SendCommand" {
		t.Errorf("topic = %q", got.topic)
	}
	if got.qos != 1 {
		t.Errorf("qos = %d", got.qos)
	}

	var e Event
	if err := json.Unmarshal(got.payload, &e); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if e.Type != "SendCommand" || e.Identifier != "ABC" {
		t.Errorf("event = %+v", e)
	}
	var cmd message.SendCommand
	if err := json.Unmarshal(e.Payload, &cmd); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if cmd.Command != message.CommandPause {
		t.Errorf("Command = %v, want Pause", cmd.Command)
	}
}

func TestPublishErrors(t *testing.T) {
	boom := errors.New("boom")
	b, err := New(Config{Client: &fakeClient{token: &fakeToken{err: boom}}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Publish(message.New(&message.SendCommand{})); !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want boom", err)
	}

	b, err = New(Config{Client: &fakeClient{token: &fakeToken{pending: true}}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Publish(message.New(&message.SendCommand{})); !errors.Is(err, ErrPublishTimeout) {
		t.Errorf("Publish() error = %v, want ErrPublishTimeout", err)
	}
}

func TestHandlerSkipsPairing(t *testing.T) {
	client := &fakeClient{}
	b, err := New(Config{Client: client})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	h := b.Handler()
	h(message.NewCryptoPairing([]byte{0x06, 0x01, 0x01}, true))
	h(&message.Message{Type: message.TypeSetState})

	if len(client.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.msgs))
	}
	if client.msgs[0].topic != "mediaremote/SetState" {
		t.Errorf("topic = %q", client.msgs[0].topic)
	}
	var e Event
	if err := json.Unmarshal(client.msgs[0].payload, &e); err != nil {
		t.Fatal(err)
	}
	if len(e.Payload) != 0 {
		t.Errorf("empty message published payload %s", e.Payload)
	}
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoBroker) {
		t.Errorf("New() error = %v, want ErrNoBroker", err)
	}
	if _, err := Connect(MQTTConfig{}); !errors.Is(err, ErrNoBroker) {
		t.Errorf("Connect() error = %v, want ErrNoBroker", err)
	}
}
