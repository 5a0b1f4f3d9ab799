// Package mqtt publishes coordinator values to an MQTT broker and turns
// messages on command topics into device writes.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"xtherma_bridge/internal/config"
	"xtherma_bridge/internal/coordinator"
	"xtherma_bridge/internal/registers"
)

// Controller is the part of the coordinator the bridge uses.
type Controller interface {
	Snapshot() *coordinator.Snapshot
	Lookup(key string) (registers.Descriptor, bool)
	Write(ctx context.Context, key string, display float64) error
	AddListener(fn func()) (remove func())
}

// Bridge connects one coordinator to one broker.
type Bridge struct {
	client pahomqtt.Client
	ctrl   Controller
	topics Topics
	qos    byte
	logger *slog.Logger

	// publish is replaced in tests.
	publish func(topic, payload string, retained bool) error

	mu        sync.Mutex
	published map[string]string
	remove    func()
}

func newBridge(cfg config.MQTTConfig, ctrl Controller, logger *slog.Logger) *Bridge {
	return &Bridge{
		ctrl:      ctrl,
		topics:    Topics{Prefix: cfg.TopicPrefix},
		qos:       byte(cfg.QoS),
		logger:    logger,
		published: make(map[string]string),
	}
}

// Connect connects to the broker, subscribes to command topics and starts
// publishing state after every coordinator update.
func Connect(cfg config.MQTTConfig, ctrl Controller, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(cfg, ctrl, logger)
	b.publish = b.pahoPublish

	opts := buildClientOptions(cfg, b.topics)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		b.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		b.logger.Warn("MQTT connection lost", "error", err)
	})

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	b.remove = ctrl.AddListener(b.publishState)
	return b, nil
}

// handleConnect runs on the initial connection and on every reconnect.
func (b *Bridge) handleConnect() {
	token := b.client.Subscribe(b.topics.SetWildcard(), b.qos, b.wrapHandler(b.handleCommand))
	if token.WaitTimeout(defaultPublishTimeout) && token.Error() != nil {
		b.logger.Error("MQTT subscribe failed", "error", fmt.Errorf("%w: %w", ErrSubscribeFailed, token.Error()))
	}

	if err := b.publish(b.topics.Availability(), PayloadOnline, true); err != nil {
		b.logger.Warn("Publishing availability failed", "error", err)
	}

	// Retained state may be gone after a broker restart.
	b.mu.Lock()
	clear(b.published)
	b.mu.Unlock()
	b.publishState()

	b.logger.Info("MQTT connected", "prefix", b.topics.Prefix)
}

func (b *Bridge) pahoPublish(topic, payload string, retained bool) error {
	token := b.client.Publish(topic, b.qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// statePayloads renders every snapshot value as a state topic payload.
func (b *Bridge) statePayloads(snap *coordinator.Snapshot) map[string]string {
	out := make(map[string]string, len(snap.Values))
	for key, v := range snap.Values {
		payload := strconv.FormatFloat(v, 'f', -1, 64)
		if d, ok := b.ctrl.Lookup(key); ok {
			payload = d.Format(v)
		}
		out[b.topics.State(key)] = payload
	}
	return out
}

// publishState publishes the values that changed since the last call.
func (b *Bridge) publishState() {
	payloads := b.statePayloads(b.ctrl.Snapshot())

	b.mu.Lock()
	defer b.mu.Unlock()

	sent := 0
	for topic, payload := range payloads {
		if b.published[topic] == payload {
			continue
		}
		if err := b.publish(topic, payload, true); err != nil {
			b.logger.Warn("Publishing state failed", "topic", topic, "error", err)
			continue
		}
		b.published[topic] = payload
		sent++
	}
	if sent > 0 {
		b.logger.Debug("State published", "topics", sent)
	}
}

// handleCommand parses a command payload and writes it to the device.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	key, ok := b.topics.ParseSet(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	d, ok := b.ctrl.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", coordinator.ErrUnknownKey, key)
	}
	v, err := d.Parse(string(payload))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()

	if err := b.ctrl.Write(ctx, key, v); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	b.logger.Info("Command applied", "key", key, "value", d.Format(v))
	return nil
}

// wrapHandler wraps a command handler with panic recovery and logging.
func (b *Bridge) wrapHandler(handler func(topic string, payload []byte) error) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			b.logger.Warn("MQTT command rejected", "topic", msg.Topic(), "error", err)
		}
	}
}

// Close publishes the offline status and disconnects.
func (b *Bridge) Close() error {
	if b.remove != nil {
		b.remove()
	}
	if b.client == nil {
		return nil
	}
	if b.client.IsConnected() {
		if err := b.publish(b.topics.Availability(), PayloadOffline, true); err != nil {
			b.logger.Warn("Publishing availability failed", "error", err)
		}
	}
	b.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}
