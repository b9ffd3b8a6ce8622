// Package notify pushes per-user realtime events over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventPaymentSuccess is broadcast after a plan upgrade.
const EventPaymentSuccess = "payment_success"

// Channel returns the pub/sub channel a user's dashboard subscribes to.
func Channel(userID uuid.UUID) string { return "user-notifications:" + userID.String() }

// Message is the envelope published on a user channel.
type Message struct {
	Type    string         `json:"type"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct {
	rdb redis.UniversalClient
}

func (p redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// Notifier publishes user events.
type Notifier struct {
	pub publisher
}

func New(rdb redis.UniversalClient) *Notifier {
	return &Notifier{pub: redisPublisher{rdb: rdb}}
}

// PaymentSucceeded tells the user's open sessions about an upgrade.
func (n *Notifier) PaymentSucceeded(ctx context.Context, userID uuid.UUID, plan string, amount float64) error {
	return n.send(ctx, userID, Message{
		Type:    "broadcast",
		Event:   EventPaymentSuccess,
		Payload: map[string]any{"plan": plan, "amount": amount},
	})
}

func (n *Notifier) send(ctx context.Context, userID uuid.UUID, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, Channel(userID), body)
}
