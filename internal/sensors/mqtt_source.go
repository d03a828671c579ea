package sensors

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/config"
	"github.com/relabs-tech/motion_collector/internal/env"
	"github.com/relabs-tech/motion_collector/internal/imu"
)

// mqttSource subscribes to one topic carrying JSON-encoded readings.
type mqttSource[T any] struct {
	client mqtt.Client
	topic  string
}

func newMQTTSource[T any](client mqtt.Client, topic string) *mqttSource[T] {
	return &mqttSource[T]{client: client, topic: topic}
}

// Subscribe registers h for the topic. Payloads that fail to decode are
// delivered as failed events. paho may still be running a callback when the
// unsubscribe completes, so deliveries go through a gate.
func (s *mqttSource[T]) Subscribe(h acquisition.Handler[T]) (acquisition.Subscription, error) {
	gate := acquisition.NewGate(h)
	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		gate.Deliver(decodePayload[T](msg.Topic(), msg.Payload()))
	})
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("%w: MQTT subscribe %s: %v", acquisition.ErrSubscriptionUnavailable, s.topic, token.Error())
	}

	return acquisition.SubscriptionFunc(func() {
		if t := s.client.Unsubscribe(s.topic); t.Wait() && t.Error() != nil {
			// The gate still guarantees no further delivery.
			log.Printf("mqtt: unsubscribe %s: %v", s.topic, t.Error())
		}
		gate.Close()
	}), nil
}

// decodePayload decodes one reading. Every reading type carries a
// timestamp, so a payload without one (null, {} or unrelated fields) is
// rejected rather than stored as a zero sample.
func decodePayload[T any](topic string, payload []byte) (T, error) {
	var zero T
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return zero, fmt.Errorf("%s payload unmarshal: %w", topic, err)
	}
	if ts, ok := fields["timestamp"]; !ok || string(ts) == "null" {
		return zero, fmt.Errorf("%s payload: missing timestamp", topic)
	}

	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return zero, fmt.Errorf("%s payload unmarshal: %w", topic, err)
	}
	return v, nil
}

// mqttSources connects to the broker and maps every configured topic to a
// source. The returned release func disconnects the client.
func mqttSources(cfg *config.Config) (acquisition.Sources, func(), error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDCollector)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return acquisition.Sources{}, nil, fmt.Errorf("MQTT connect %s: %w", cfg.MQTTBroker, token.Error())
	}

	var src acquisition.Sources
	if cfg.TopicAccel != "" {
		src.Accelerometer = newMQTTSource[imu.Sample3](client, cfg.TopicAccel)
	}
	if cfg.TopicGyro != "" {
		src.Gyroscope = newMQTTSource[imu.Sample3](client, cfg.TopicGyro)
	}
	if cfg.TopicMag != "" {
		src.Magnetometer = newMQTTSource[imu.Sample3](client, cfg.TopicMag)
	}
	if cfg.TopicMotion != "" {
		src.Motion = newMQTTSource[imu.CompositeMotionSample](client, cfg.TopicMotion)
	}
	if cfg.TopicAltitude != "" {
		src.Altimeter = newMQTTSource[env.Sample](client, cfg.TopicAltitude)
	}
	return src, func() { client.Disconnect(250) }, nil
}
