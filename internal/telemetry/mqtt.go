// v0
// internal/telemetry/mqtt.go
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/patonw/elevator-sim/internal/event"
)

// Config selects the broker and topic prefix for car telemetry.
type Config struct {
	Broker   string
	ClientID string
	Prefix   string
	QoS      byte
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher forwards arrivals and idles to MQTT. Publishing is
// fire-and-forget so bus dispatch never waits on the broker.
type Publisher struct {
	client publisher
	prefix string
	qos    byte
	log    *slog.Logger
	sent   atomic.Int64
	failed atomic.Int64
	close  func()
}

// Connect dials the broker and returns a connected publisher.
func Connect(cfg Config, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("elevatorsim-%d", time.Now().UnixNano())
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt_connection_lost", slog.Any("err", err))
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	log.Info("mqtt_connected", slog.String("broker", cfg.Broker), slog.String("client_id", cfg.ClientID))
	p := newPublisher(client, cfg, log)
	p.close = func() { client.Disconnect(250) }
	return p, nil
}

func newPublisher(client publisher, cfg Config, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "elevatorsim"
	}
	return &Publisher{client: client, prefix: prefix, qos: cfg.QoS, log: log.With(slog.String("component", "mqtt_telemetry"))}
}

// Topic is the MQTT topic for a car and event name.
func (p *Publisher) Topic(elevator int, name string) string {
	return fmt.Sprintf("%s/elevators/%d/%s", p.prefix, elevator, name)
}

type message struct {
	Elevator int   `json:"elevator"`
	Floor    int   `json:"floor"`
	Clock    int64 `json:"clock"`
}

func (p *Publisher) React(_ event.Bus, ev event.Event) {
	switch ev := ev.(type) {
	case event.ElevatorArrived:
		p.publish(p.Topic(ev.Elevator, "arrived"), message{ev.Elevator, ev.Floor, ev.Clock})
	case event.ElevatorIdle:
		p.publish(p.Topic(ev.Elevator, "idle"), message{ev.Elevator, ev.Floor, ev.Clock})
	}
}

func (p *Publisher) publish(topic string, m message) {
	payload, err := json.Marshal(m)
	if err != nil {
		p.log.Error("mqtt_encode_err", slog.Any("err", err))
		return
	}
	token := p.client.Publish(topic, p.qos, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.failed.Add(1)
			p.log.Warn("mqtt_publish_failed", slog.String("topic", topic), slog.Any("err", err))
			return
		}
		p.sent.Add(1)
	}()
}

func (p *Publisher) Sent() int64   { return p.sent.Load() }
func (p *Publisher) Failed() int64 { return p.failed.Load() }

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
