package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/ivlev/turntable/internal/config"
)

const publishTimeout = 5 * time.Second

// Publisher is the part of mqtt.Client the notifier uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is the JSON body published on every state change.
type Message struct {
	State   string `json:"state"`
	Percent int    `json:"percent"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	StateGenerating = "generating"
	StateExporting  = "exporting"
	StateDone       = "done"
	StateFailed     = "failed"
)

// MQTT publishes progress to a broker topic. Publish failures are logged and
// otherwise ignored.
type MQTT struct {
	client  Publisher
	topic   string
	log     zerolog.Logger
	readout Readout
}

func NewMQTT(client Publisher, topic string, log zerolog.Logger) *MQTT {
	return &MQTT{client: client, topic: topic, log: log}
}

// Dial connects to the broker described by cfg.
func Dial(cfg config.MQTTConfig) (mqtt.Client, error) {
	options := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true)
	client := mqtt.NewClient(options)

	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.URL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.URL, err)
	}
	return client, nil
}

func (m *MQTT) Start() {
	m.readout.Reset()
	m.publish(Message{State: StateGenerating}, false)
}

func (m *MQTT) Progress(fraction float64) {
	p, changed := m.readout.Update(fraction)
	if !changed {
		return
	}
	m.publish(Message{State: StateExporting, Percent: p}, false)
}

func (m *MQTT) Complete(r Result) {
	msg := Message{State: StateDone, Percent: 100, Output: r.Output}
	if r.Err != nil {
		p, _ := m.readout.Update(0)
		msg = Message{State: StateFailed, Percent: p, Error: r.Err.Error()}
	}
	m.publish(msg, true)
}

func (m *MQTT) publish(msg Message, retained bool) {
	b, err := json.Marshal(msg)
	if err != nil {
		m.log.Error().Err(err).Msg("mqtt marshal")
		return
	}
	token := m.client.Publish(m.topic, 1, retained, b)
	if !token.WaitTimeout(publishTimeout) {
		m.log.Warn().Str("topic", m.topic).Msg("mqtt publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		m.log.Warn().Err(err).Str("topic", m.topic).Msg("mqtt publish failed")
	}
}
