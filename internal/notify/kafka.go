package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const kafkaWriteTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes events as JSON keyed by transmittal id, so all
// events of one transmittal land on one partition in order.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaNotifier writes to topic on brokers, hashing the transmittal id to
// pick the partition.
func NewKafkaNotifier(brokers []string, topic string, logger *slog.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           kafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaNotifier(writer, topic, logger)
}

func newKafkaNotifier(writer messageWriter, topic string, logger *slog.Logger) *KafkaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaNotifier{writer: writer, topic: topic, logger: logger.With("component", "notify")}
}

// Publish writes msg as one JSON record. The write is bounded by
// kafkaWriteTimeout even when ctx has no deadline.
func (n *KafkaNotifier) Publish(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Event, err)
	}

	ctx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.TransmittalID),
		Value: value,
		Time:  msg.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(msg.Event)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", msg.Event, n.topic, err)
	}
	n.logger.DebugContext(ctx, "published transmittal event", "event", msg.Event, "transmittal_id", msg.TransmittalID, "topic", n.topic)
	return nil
}

// Close flushes pending writes and closes the broker connections.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
