// Package mqtt bridges an MQTT broker to the sync bus. Remote producers
// publish events and battery reports; the displayed status is published back
// as a retained message.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/logging"
	"github.com/smazurov/statuslight/internal/status"
	"github.com/smazurov/statuslight/internal/syncbus"
)

// Defaults.
const (
	DefaultPrefix   = "statuslight"
	DefaultClientID = "statuslight"
	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	disconnectQuiet = 250 // milliseconds
)

var ErrConnect = errors.New("mqtt: connect failed")

// Producer is the sync bus surface the bridge feeds.
type Producer interface {
	SendEvent(t syncbus.EventType, payload []byte) error
	HandleBatteryStatus(level uint8, charging bool) error
}

// StatusSource supplies the snapshot published on (re)connect.
type StatusSource interface {
	Snapshot() status.State
}

// Config holds broker settings. Broker is a URL such as tcp://host:1883.
type Config struct {
	Broker   string
	ClientID string
	Prefix   string
	Username string
	Password string
	QoS      byte
}

// batteryReport is the payload of <prefix>/battery.
type batteryReport struct {
	Level    *int `json:"level"`
	Charging bool `json:"charging"`
}

// Bridge connects the broker to the sync bus and the event bus.
type Bridge struct {
	client   mqtt.Client
	cfg      Config
	producer Producer
	source   StatusSource
	bus      *events.Bus
	logger   *slog.Logger
}

// New creates a bridge. Nothing connects until Run.
func New(cfg Config, producer Producer, source StatusSource, bus *events.Bus) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: empty broker URL", ErrConnect)
	}
	cfg = withDefaults(cfg)

	b := &Bridge{
		cfg:      cfg,
		producer: producer,
		source:   source,
		bus:      bus,
		logger:   logging.GetLogger("mqtt"),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(b.topic("online"), "false", cfg.QoS, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	b.client = mqtt.NewClient(opts)
	return b, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.QoS > 2 {
		cfg.QoS = 2
	}
	return cfg
}

func (b *Bridge) topic(parts ...string) string {
	return b.cfg.Prefix + "/" + strings.Join(parts, "/")
}

// Run connects, publishes status changes until ctx is done, then
// disconnects. Connection retries happen in the background; Run fails only
// when the first attempt is rejected outright.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("Connecting to MQTT broker", "broker", b.cfg.Broker, "prefix", b.cfg.Prefix)

	token := b.client.Connect()
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		return fmt.Errorf("%w: %w", ErrConnect, token.Error())
	}

	statusCh := make(chan any, 10)
	unsubscribe := events.SubscribeToChannel[events.StatusChangedEvent](b.bus, statusCh)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			b.publish(b.topic("online"), true, []byte("false"))
			b.client.Disconnect(disconnectQuiet)
			b.logger.Info("Disconnected from MQTT broker")
			return nil
		case ev := <-statusCh:
			if e, ok := ev.(events.StatusChangedEvent); ok {
				b.publishStatus(e)
			}
		}
	}
}

// onConnect runs on every (re)connect: subscriptions do not survive a clean
// session, and the retained status may be stale.
func (b *Bridge) onConnect(client mqtt.Client) {
	b.logger.Info("Connected to MQTT broker", "broker", b.cfg.Broker)

	subs := map[string]mqtt.MessageHandler{
		b.topic("event", "+"): b.handleEvent,
		b.topic("battery"):    b.handleBattery,
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, b.cfg.QoS, handler)
		if !token.WaitTimeout(publishTimeout) {
			b.logger.Warn("MQTT subscribe timed out", "topic", topic)
			continue
		}
		if err := token.Error(); err != nil {
			b.logger.Error("MQTT subscribe failed", "topic", topic, "error", err)
		}
	}

	b.publish(b.topic("online"), true, []byte("true"))
	if b.source != nil {
		st := b.source.Snapshot()
		b.publishStatus(events.StatusChangedEvent{
			Status:     st.Status.String(),
			Animation:  st.Animation.String(),
			Priority:   st.Priority.String(),
			DurationMs: st.Duration.Milliseconds(),
			Color:      st.Status.Color().Hex(),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// handleEvent forwards <prefix>/event/<type>; the payload is passed through
// unchanged.
func (b *Bridge) handleEvent(_ mqtt.Client, msg mqtt.Message) {
	name := msg.Topic()[strings.LastIndex(msg.Topic(), "/")+1:]
	t, err := syncbus.ParseEventType(name)
	if err != nil {
		b.logger.Warn("Ignoring MQTT event", "topic", msg.Topic(), "error", err)
		return
	}
	if err := b.producer.SendEvent(t, msg.Payload()); err != nil {
		b.logger.Warn("Failed to queue MQTT event", "event", t, "error", err)
		return
	}
	b.logger.Debug("Queued MQTT event", "event", t, "payload_len", len(msg.Payload()))
}

func (b *Bridge) handleBattery(_ mqtt.Client, msg mqtt.Message) {
	var report batteryReport
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		b.logger.Warn("Ignoring malformed battery report", "error", err)
		return
	}
	if report.Level == nil || *report.Level < 0 || *report.Level > 100 {
		b.logger.Warn("Ignoring battery report with level outside 0-100")
		return
	}
	if err := b.producer.HandleBatteryStatus(uint8(*report.Level), report.Charging); err != nil {
		b.logger.Warn("Failed to queue battery report", "error", err)
	}
}

func (b *Bridge) publishStatus(e events.StatusChangedEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("Failed to marshal status", "error", err)
		return
	}
	b.publish(b.topic("status"), true, payload)
}

func (b *Bridge) publish(topic string, retained bool, payload []byte) {
	if !b.client.IsConnectionOpen() {
		return
	}
	token := b.client.Publish(topic, b.cfg.QoS, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.logger.Warn("MQTT publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Warn("MQTT publish failed", "topic", topic, "error", err)
	}
}
