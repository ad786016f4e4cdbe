package eventhub

import (
	"complaints/backend/internal/models"
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Subscriber opens the Redis subscription carrying complaint events.
type Subscriber interface {
	SubscribeEvents(ctx context.Context) *redis.PubSub
}

// ListenRedis forwards every event published on the events channel to the
// hub until ctx is done.
func (h *Hub) ListenRedis(ctx context.Context, s Subscriber) error {
	pubsub := s.SubscribeEvents(ctx)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Println("INFO: Listening for complaint events on Redis.")

	h.Consume(ctx, pubsub.Channel())
	return nil
}

// Consume decodes Redis messages and queues them for dispatch. It returns
// when ctx is done or msgs is closed.
func (h *Hub) Consume(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var event models.ComplaintEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("ERROR: Failed to decode complaint event from Redis: %v", err)
				continue
			}
			h.Metrics.IncrementEvent(string(event.Type), "received")
			h.Publish(ctx, event)
		}
	}
}
