// Package publish pushes receiver snapshots and antenna reports to an MQTT
// broker as JSON.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/antenna"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
)

// Client is the publishing side of an MQTT connection.
type Client interface {
	Publish(topic string, payload []byte) error
	Close()
}

type Options struct {
	Broker   string
	ClientID string
	QoS      byte
	Retain   bool
	Timeout  time.Duration
}

type pahoClient struct {
	c       mqtt.Client
	qos     byte
	retain  bool
	timeout time.Duration
}

// Dial connects to the broker. The client reconnects on its own after a
// dropped connection.
func Dial(opts Options) (Client, error) {
	if strings.TrimSpace(opts.Broker) == "" {
		return nil, errors.New("publish: broker is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("publish: connection lost: %v", err)
		})

	c := mqtt.NewClient(co)
	tok := c.Connect()
	if !tok.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("publish: connect %s: timeout", opts.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", opts.Broker, err)
	}
	log.Printf("publish: connected broker=%s client_id=%s", opts.Broker, opts.ClientID)
	return &pahoClient{c: c, qos: opts.QoS, retain: opts.Retain, timeout: opts.Timeout}, nil
}

func (p *pahoClient) Publish(topic string, payload []byte) error {
	tok := p.c.Publish(topic, p.qos, p.retain, payload)
	if !tok.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return tok.Error()
}

func (p *pahoClient) Close() { p.c.Disconnect(250) }

// Publisher maps receiver state onto topics under a prefix:
//
//	<prefix>/status      full snapshot
//	<prefix>/position    merged NMEA position
//	<prefix>/satellites  NAV-SAT summary
//	<prefix>/antenna     MON-HW antenna status
//	<prefix>/antenna/report  antenna workflow report
type Publisher struct {
	c      Client
	prefix string
}

func NewPublisher(c Client, prefix string) *Publisher {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = "gnss"
	}
	return &Publisher{c: c, prefix: prefix}
}

func (p *Publisher) topic(name string) string { return p.prefix + "/" + name }

func (p *Publisher) publishJSON(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("publish %s: marshal: %w", name, err)
	}
	if err := p.c.Publish(p.topic(name), b); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// PublishSnapshot sends every snapshot topic. It attempts all topics and
// returns the first error.
func (p *Publisher) PublishSnapshot(s gnss.Snapshot) error {
	var first error
	for _, t := range []struct {
		name string
		v    any
	}{
		{"status", s},
		{"position", s.Position},
		{"satellites", s.Satellites},
		{"antenna", s.Antenna},
	} {
		if err := p.publishJSON(t.name, t.v); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *Publisher) PublishReport(r antenna.Report) error {
	return p.publishJSON("antenna/report", r)
}

func (p *Publisher) Close() { p.c.Close() }
