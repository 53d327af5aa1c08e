package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/status"
	"github.com/smazurov/statuslight/internal/syncbus"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	open         bool
	subscribed   map[string]mqtt.MessageHandler
	published    []published
	disconnected bool
	connectErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{open: true, subscribed: map[string]mqtt.MessageHandler{}}
}

func (f *fakeClient) IsConnected() bool { return f.open }
func (f *fakeClient) IsConnectionOpen() bool { return f.open }
func (f *fakeClient) Connect() mqtt.Token { return doneToken{err: f.connectErr} }
func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, retained, payload.([]byte)})
	return doneToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = cb
	return doneToken{}
}

func (f *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return doneToken{}
}
func (f *fakeClient) Unsubscribe(...string) mqtt.Token { return doneToken{} }
func (f *fakeClient) AddRoute(string, mqtt.MessageHandler) {}
func (f *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (f *fakeClient) last(topic string) (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.published) - 1; i >= 0; i-- {
		if f.published[i].topic == topic {
			return f.published[i], true
		}
	}
	return published{}, false
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool { return false }
func (m fakeMessage) Qos() byte { return 0 }
func (m fakeMessage) Retained() bool { return false }
func (m fakeMessage) Topic() string { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (m fakeMessage) Ack() {}

type sentEvent struct {
	t       syncbus.EventType
	payload []byte
}

type fakeProducer struct {
	mu      sync.Mutex
	events  []sentEvent
	battery []int
	err     error
}

func (p *fakeProducer) SendEvent(t syncbus.EventType, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{t, payload})
	return p.err
}

func (p *fakeProducer) HandleBatteryStatus(level uint8, charging bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := int(level)
	if charging {
		v = -v - 1
	}
	p.battery = append(p.battery, v)
	return p.err
}

type fixedSource struct{ state status.State }

func (s fixedSource) Snapshot() status.State { return s.state }

func newTestBridge(t *testing.T, bus *events.Bus) (*Bridge, *fakeClient, *fakeProducer) {
	t.Helper()
	producer := &fakeProducer{}
	src := fixedSource{state: status.State{Setting: status.Setting{Status: status.Config, Priority: status.PriorityNormal}}}
	b, err := New(Config{Broker: "tcp://127.0.0.1:1883", Prefix: "home/led/"}, producer, src, bus)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	client := newFakeClient()
	b.client = client
	return b, client, producer
}

func TestNew_RequiresBroker(t *testing.T) {
	if _, err := New(Config{}, &fakeProducer{}, nil, nil); err == nil {
		t.Fatal("New() with empty broker succeeded")
	}
}

func TestOnConnect(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)
	b.onConnect(client)

	for _, topic := range []string{"home/led/event/+", "home/led/battery"} {
		if _, ok := client.subscribed[topic]; !ok {
			t.Errorf("not subscribed to %s", topic)
		}
	}

	online, ok := client.last("home/led/online")
	if !ok || string(online.payload) != "true" || !online.retained {
		t.Errorf("online = %+v", online)
	}

	st, ok := client.last("home/led/status")
	if !ok || !st.retained {
		t.Fatalf("status not published retained: %+v", st)
	}
	var ev events.StatusChangedEvent
	if err := json.Unmarshal(st.payload, &ev); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if ev.Status != "config" || ev.Color != "#0000ff" {
		t.Errorf("status = %+v", ev)
	}
}

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		topic   string
		payload []byte
		want    syncbus.EventType
		queued  bool
	}{
		{"home/led/event/wifi-connected", nil, syncbus.WifiConnected, true},
		{"home/led/event/button_pressed", []byte{2}, syncbus.ButtonPressed, true},
		{"home/led/event/nonsense", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			b, _, producer := newTestBridge(t, nil)
			b.handleEvent(nil, fakeMessage{topic: tt.topic, payload: tt.payload})

			if !tt.queued {
				if len(producer.events) != 0 {
					t.Errorf("events = %v, want none", producer.events)
				}
				return
			}
			if len(producer.events) != 1 || producer.events[0].t != tt.want {
				t.Fatalf("events = %v, want %v", producer.events, tt.want)
			}
			if string(producer.events[0].payload) != string(tt.payload) {
				t.Errorf("payload = %v, want %v", producer.events[0].payload, tt.payload)
			}
		})
	}
}

func TestHandleBattery(t *testing.T) {
	tests := []struct {
		payload string
		want    []int
	}{
		{`{"level":15,"charging":false}`, []int{15}},
		{`{"level":80,"charging":true}`, []int{-81}},
		{`{"level":120}`, nil},
		{`{"charging":true}`, nil},
		{`not json`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			b, _, producer := newTestBridge(t, nil)
			b.handleBattery(nil, fakeMessage{topic: "home/led/battery", payload: []byte(tt.payload)})

			if len(producer.battery) != len(tt.want) {
				t.Fatalf("battery = %v, want %v", producer.battery, tt.want)
			}
			for i := range tt.want {
				if producer.battery[i] != tt.want[i] {
					t.Errorf("battery[%d] = %d, want %d", i, producer.battery[i], tt.want[i])
				}
			}
		})
	}
}

func TestRun_PublishesStatusChanges(t *testing.T) {
	bus := events.New()
	b, client, _ := newTestBridge(t, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.Publish(events.StatusChangedEvent{Status: "warning", Color: "#ffff00"})
		if p, ok := client.last("home/led/status"); ok && json.Valid(p.payload) {
			var ev events.StatusChangedEvent
			_ = json.Unmarshal(p.payload, &ev)
			if ev.Status == "warning" {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("status change not published")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if !client.disconnected {
		t.Error("client not disconnected")
	}
}

func TestRun_ConnectError(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)
	client.connectErr = context.DeadlineExceeded
	if err := b.Run(context.Background()); err == nil {
		t.Fatal("Run() with failing connect succeeded")
	}
}
