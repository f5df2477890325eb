package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MQTTPublisher is the part of mqtt.Client used by the mirror.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTMirror publishes every frame as JSON to a topic. Delivery is best
// effort at QoS 0.
type MQTTMirror struct {
	Client  MQTTPublisher
	Topic   string
	Timeout time.Duration
}

// ConnectMQTT connects to broker, e.g. "tcp://localhost:1883".
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	log.WithField("broker", broker).Info("Connected to MQTT broker")
	return client, nil
}

func (m *MQTTMirror) Publish(_ context.Context, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	token := m.Client.Publish(m.Topic, 0, false, data)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish to %s timed out", m.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish error: %w", err)
	}
	return nil
}
