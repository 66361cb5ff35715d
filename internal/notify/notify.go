// Package notify publishes census events after a state change has been committed.
// Delivery is best effort: a failed publish never undoes the committed write.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	commonredis "wisefido-census/internal/common/redis"
)

// Event types.
const (
	EventShiftSubmitted  = "shift.submitted"
	EventShiftApproved   = "shift.approved"
	EventShiftRejected   = "shift.rejected"
	EventShiftReopened   = "shift.reopened"
	EventShiftEdited     = "shift.edited"
	EventSummaryAttested = "summary.attested"
)

// Event one committed change.
type Event struct {
	Type       string    `json:"type"`
	WardID     string    `json:"ward_id"`
	Date       string    `json:"date"`
	Shift      string    `json:"shift,omitempty"`
	RecordID   string    `json:"record_id,omitempty"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sink for committed events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// RedisStreamPublisher XADDs events to one stream (fields type, data, timestamp).
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	if _, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, ev.Type, ev); err != nil {
		return fmt.Errorf("failed to publish %s to stream %s: %w", ev.Type, p.stream, err)
	}
	return nil
}

// mqttClient is satisfied by *mqtt.Client from internal/common/mqtt.
type mqttClient interface {
	Publish(topic string, retained bool, payload []byte, timeout time.Duration) error
}

// MQTTPublisher publishes each event as JSON to <topicPrefix>/<ward_id>/<type>.
type MQTTPublisher struct {
	client      mqttClient
	topicPrefix string
	timeout     time.Duration
}

func NewMQTTPublisher(client mqttClient, topicPrefix string, timeout time.Duration) *MQTTPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTPublisher{client: client, topicPrefix: topicPrefix, timeout: timeout}
}

// Topic the MQTT topic an event is published on.
func (p *MQTTPublisher) Topic(ev Event) string {
	return p.topicPrefix + "/" + ev.WardID + "/" + ev.Type
}

func (p *MQTTPublisher) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.client.Publish(p.Topic(ev), false, payload, p.timeout)
}
