package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const publishTimeout = 5 * time.Second

type event struct {
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Payload   any       `json:"payload,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// KafkaSink publishes notification events to a single topic. Publishing runs
// on its own goroutine with a bounded timeout so a slow broker cannot stall a
// cart or order operation.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(topic string, brokers ...string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Notify(_ context.Context, userID string, eventType string, payload any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		value, err := json.Marshal(event{
			UserID:    userID,
			EventType: eventType,
			Payload:   payload,
			EmittedAt: time.Now(),
		})
		if err != nil {
			log.Printf("notify: marshal %s event for user %s: %v", eventType, userID, err)
			return
		}

		err = s.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(userID),
			Value: value,
		})
		if err != nil {
			log.Printf("notify: publish %s event for user %s: %v", eventType, userID, err)
		}
	}()
}

func (s *KafkaSink) Close() {
	if err := s.writer.Close(); err != nil {
		log.Printf("notify: closing kafka writer: %v", err)
	}
}
