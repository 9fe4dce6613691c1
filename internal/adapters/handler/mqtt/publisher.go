package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/ports"
)

// Publisher bridges the protocol event stream onto MQTT so that headless
// agents can follow the market without holding an HTTP connection open.
type Publisher struct {
	client mqtt.Client
	events ports.EventPublisher
	prefix string
}

// NewPublisher connects to the broker and returns the bridge.
func NewPublisher(events ports.EventPublisher, brokerURL string) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("agentmarket-server-%d", time.Now().UnixNano()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	log.Printf("Connected to MQTT Broker: %s", brokerURL)
	return &Publisher{
		client: client,
		events: events,
		prefix: "agentmarket",
	}, nil
}

// Start launches the consumer goroutine.
func (p *Publisher) Start(ctx context.Context) {
	go p.consumeEvents(ctx)
}

func (p *Publisher) consumeEvents(ctx context.Context) {
	ch, err := p.events.Subscribe(ctx)
	if err != nil {
		log.Printf("Failed to subscribe to events: %v", err)
		return
	}

	log.Println("MQTT: Started event consumer")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				continue
			}

			// Every event lands on the global topic.
			p.client.Publish(fmt.Sprintf("%s/events", p.prefix), 0, false, data)

			// Hires and reputation changes also land on the agent's own
			// topic, so an agent can subscribe to just its business.
			switch event.Type {
			case domain.EventAgentHired, domain.EventAgentToAgentHire,
				domain.EventReputationUpdated, domain.EventJobCompleted:
				if event.Agent != "" {
					topic := fmt.Sprintf("%s/agents/%s", p.prefix, event.Agent)
					p.client.Publish(topic, 0, false, data)
				}
			}
		}
	}
}

// Close disconnects from the broker, allowing in-flight publishes to finish.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
