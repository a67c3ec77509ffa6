package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/quillhq/quill/internal/config"
)

// MQTT publishes notifications to a broker topic so home-automation
// systems and dashboards can react to reminder fires. Optional: when no
// broker is configured the notifier is simply not constructed.
type MQTT struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// NewMQTT creates an MQTT notifier but does not connect. Call
// [MQTT.Start] to begin the connection.
func NewMQTT(cfg config.MQTTConfig, logger *slog.Logger) *MQTT {
	if cfg.Topic == "" {
		cfg.Topic = "quill/reminders"
	}
	return &MQTT{cfg: cfg, logger: logger}
}

// Start connects to the broker. autopaho keeps retrying in the
// background, so a slow broker does not block startup beyond the
// initial await window.
func (m *MQTT) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(m.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: m.cfg.Username,
		ConnectPassword: []byte(m.cfg.Password),
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			m.logger.Info("mqtt connected to broker", "broker", m.cfg.Broker)
		},
		OnConnectError: func(err error) {
			m.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "quill-notify",
		},
	}

	// Enable TLS for mqtts:// or ssl:// schemes.
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	m.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		m.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop disconnects from the broker.
func (m *MQTT) Stop(ctx context.Context) error {
	if m.cm == nil {
		return nil
	}
	return m.cm.Disconnect(ctx)
}

// Deliver implements Notifier. The payload is a small JSON document so
// subscribers do not need to understand Slack Block Kit.
func (m *MQTT) Deliver(ctx context.Context, message string, blocks []Block) bool {
	if m.cm == nil {
		return false
	}

	payload, err := json.Marshal(map[string]any{
		"message": message,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return false
	}

	if _, err := m.cm.Publish(ctx, &paho.Publish{
		Topic:   m.cfg.Topic,
		Payload: payload,
		QoS:     1,
	}); err != nil {
		m.logger.Warn("mqtt notification publish failed", "topic", m.cfg.Topic, "error", err)
		return false
	}
	return true
}
