package reaper

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicIndexCreated is the in-process topic the orchestrator publishes to
// whenever it builds a new index.
const TopicIndexCreated = "index.created"

// IndexCreatedMessage is the payload crossing the in-process bus.
type IndexCreatedMessage struct {
	IndexName string    `json:"index_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Registrar publishes index creations onto the bus. Publishing is decoupled
// from the citation flow: a failed registration is logged, never propagated.
type Registrar struct {
	pubSub *gochannel.GoChannel
}

func NewRegistrar(pubSub *gochannel.GoChannel) *Registrar {
	return &Registrar{pubSub: pubSub}
}

// Register announces a freshly created index. Fire and forget.
func (r *Registrar) Register(indexName string, createdAt time.Time) {
	go func() {
		payload, err := json.Marshal(IndexCreatedMessage{
			IndexName: indexName,
			CreatedAt: createdAt.UTC(),
		})
		if err != nil {
			log.Printf("[ERROR] Failed to marshal index registration: %v", err)
			return
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := r.pubSub.Publish(TopicIndexCreated, msg); err != nil {
			log.Printf("[ERROR] Failed to register index %s: %v", indexName, err)
		}
	}()
}

// RegistrationConsumer drains index-created messages into the registry.
type RegistrationConsumer struct {
	pubSub   *gochannel.GoChannel
	registry *Registry
}

func NewRegistrationConsumer(pubSub *gochannel.GoChannel, registry *Registry) *RegistrationConsumer {
	return &RegistrationConsumer{pubSub: pubSub, registry: registry}
}

func (c *RegistrationConsumer) Consume(ctx context.Context) error {
	messages, err := c.pubSub.Subscribe(ctx, TopicIndexCreated)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.processMessage(msg)
		}
	}()

	return nil
}

func (c *RegistrationConsumer) processMessage(msg *message.Message) {
	var payload IndexCreatedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal index registration: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	c.registry.Add(payload.IndexName, payload.CreatedAt)
	msg.Ack()
}
