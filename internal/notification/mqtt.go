package notification

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/alert"
	"github.com/mikeyg42/sentinel/internal/config"
)

const mqttConnectTimeout = 10 * time.Second

// MQTTPublisher publishes alert records as JSON to a broker topic.
// Delivery is fire-and-forget at QoS 0, matching the best-effort model:
// a failed publish is logged by the dispatcher and never retried.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewMQTTPublisher connects to the broker. A connect failure is returned
// so the caller can run without the pub/sub sink rather than aborting.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	log := logger.Named("mqtt")
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("broker connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("connected to broker", zap.String("broker", cfg.Broker))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &MQTTPublisher{client: client, topic: cfg.Topic, logger: log}, nil
}

// Publish implements alert.Publisher.
func (p *MQTTPublisher) Publish(record alert.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal alert record: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish alert to %s: %w", p.topic, err)
	}
	return nil
}

// IsConnected implements alert.Publisher.
func (p *MQTTPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
