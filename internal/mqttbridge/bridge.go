// Package mqttbridge publishes Dongle Dispatcher lifecycle events onto
// MQTT using a paho client with a last-will-and-testament bridge-state
// topic, connected to the dispatcher's event bus.
package mqttbridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"goezsp/internal/dongle"
)

// Config holds the MQTT connection parameters.
type Config struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
}

// Bridge connects a dongle.Dispatcher's events to an MQTT broker.
type Bridge struct {
	client pahomqtt.Client
	d      *dongle.Dispatcher
	prefix string
	logger *slog.Logger
	unsub  func()
}

// NewBridge creates and connects a Bridge. The connection uses the
// bridge-state topic as a will so brokers mark the gateway offline on
// an unclean disconnect.
func NewBridge(d *dongle.Dispatcher, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		d:      d,
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt"),
	}

	stateTopic := cfg.TopicPrefix + "/bridge/state"
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(stateTopic, "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("mqtt connected")
			b.publishBridgeState("online")
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("mqtt connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	b.client = client
	return b, nil
}

// Start subscribes to the dispatcher's events and begins publishing.
func (b *Bridge) Start() {
	b.unsub = b.d.OnAll(b.handleEvent)
	b.logger.Info("mqtt bridge started", "prefix", b.prefix)
}

// Stop publishes the offline bridge state, unsubscribes, and
// disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("mqtt bridge stopped")
}

func (b *Bridge) handleEvent(event dongle.Event) {
	topic, qos, retained, payload, ok := eventMessage(event, b.prefix)
	if !ok {
		return
	}
	b.client.Publish(topic, qos, retained, payload)
}

// eventMessage maps a dispatcher event onto the MQTT message it should
// produce. Split out as a pure function so the mapping can be tested
// without a broker.
func eventMessage(event dongle.Event, prefix string) (topic string, qos byte, retained bool, payload []byte, ok bool) {
	switch event.Type {
	case dongle.EventDongleReady:
		return prefix + "/bridge/dongle_state", 1, true, []byte("ready"), true
	case dongle.EventDongleRemove:
		return prefix + "/bridge/dongle_state", 1, true, []byte("removed"), true
	case dongle.EventDongleNotResponding:
		return prefix + "/bridge/dongle_state", 1, true, []byte("not_responding"), true
	case dongle.EventBootloaderPrompt:
		return prefix + "/bridge/dongle_state", 1, true, []byte("bootloader_prompt"), true
	case dongle.EventFirmwareReadyToTransfer:
		return prefix + "/bridge/dongle_state", 1, true, []byte("firmware_ready"), true
	case dongle.EventEzspReceived:
		body, err := json.Marshal(map[string]any{
			"cmd_id":  event.CmdID,
			"payload": event.Payload,
		})
		if err != nil {
			return "", 0, false, nil, false
		}
		return fmt.Sprintf("%s/ezsp/%d", prefix, event.CmdID), 0, false, body, true
	default:
		return "", 0, false, nil, false
	}
}

func (b *Bridge) publishBridgeState(state string) {
	b.client.Publish(b.prefix+"/bridge/state", 1, true, state)
}
