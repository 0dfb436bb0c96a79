// Package mqtt publishes committed attendance events to an MQTT broker so
// home-automation or monitoring systems can react to check-ins.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Notifier implements session.Notifier over an MQTT connection.
type Notifier struct {
	config config.MQTTConfig
	client mqtt.Client
}

// attendanceMessage is the wire payload published on each committed event.
type attendanceMessage struct {
	Identity  string    `json:"identity"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message,omitempty"`
	IsLate    bool      `json:"is_late"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotifier creates an MQTT notifier. Returns nil when MQTT is disabled.
func NewNotifier(cfg config.MQTTConfig) *Notifier {
	if !cfg.Enabled {
		log.Info("MQTT notifier is disabled in configuration")
		return nil
	}
	return &Notifier{config: cfg}
}

// Start connects to the broker. Reconnection is handled by the client.
func (n *Notifier) Start() error {
	if n == nil {
		return nil
	}

	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", n.config.Broker, n.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(n.config.ClientID)

	if n.config.Username != "" {
		opts.SetUsername(n.config.Username)
		opts.SetPassword(n.config.Password)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infof("Connected to MQTT broker at %s:%d", n.config.Broker, n.config.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	n.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := n.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Stop disconnects from the broker.
func (n *Notifier) Stop() {
	if n == nil || n.client == nil || !n.client.IsConnected() {
		return
	}
	log.Info("Disconnecting MQTT client...")
	n.client.Disconnect(250)
}

// publishTimeout bounds the wait for a broker ack.
const publishTimeout = 5 * time.Second

// AttendanceMarked publishes one committed attendance event. The caller is
// the frame loop, so the broker round trip runs off its goroutine; publish
// failures only log, the backend already holds the record.
func (n *Notifier) AttendanceMarked(identity string, outcome session.AttendanceOutcome) {
	if n == nil || n.client == nil || !n.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(attendanceMessage{
		Identity:  identity,
		Kind:      string(outcome.Kind),
		Message:   outcome.Message,
		IsLate:    outcome.IsLate,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to marshal attendance notification")
		return
	}

	go func() {
		token := n.client.Publish(n.config.Topic, 1, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Warnf("Timed out publishing attendance event to topic %s", n.config.Topic)
			return
		}
		if token.Error() != nil {
			log.Errorf("Failed to publish attendance event to topic %s: %v", n.config.Topic, token.Error())
			return
		}
		log.Debugf("Published attendance event for %s to topic %s", identity, n.config.Topic)
	}()
}
