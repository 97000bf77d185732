package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/casalink/api/internal/services"
)

// PubSubEngagementPublisher publishes engagement lifecycle events to a Pub/Sub topic.
type PubSubEngagementPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEngagementPublisher constructs a Pub/Sub backed engagement event publisher.
func NewPubSubEngagementPublisher(topic *pubsub.Topic) (*PubSubEngagementPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub engagement publisher: topic is required")
	}
	return &PubSubEngagementPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishEngagementEvent enqueues a lifecycle event message on the configured topic.
func (p *PubSubEngagementPublisher) PublishEngagementEvent(ctx context.Context, event services.EngagementEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub engagement publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal engagement event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "householdId", event.HouseholdID)
	setAttr(attrs, "househelpId", event.HousehelpID)
	setAttr(attrs, "requestId", event.RequestID)
	setAttr(attrs, "contractId", event.ContractID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish engagement event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
