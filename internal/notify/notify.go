package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"transmit/internal/models"
)

// Event names one lifecycle transition.
type Event string

const (
	EventSent      Event = "transmittal.sent"
	EventCompleted Event = "transmittal.completed"
	EventCancelled Event = "transmittal.cancelled"
)

// EventForStatus maps a status reached by a transition to its event.
func EventForStatus(status models.TransmittalStatus) (Event, bool) {
	switch status {
	case models.StatusSent:
		return EventSent, true
	case models.StatusCompleted:
		return EventCompleted, true
	case models.StatusCancelled:
		return EventCancelled, true
	default:
		return "", false
	}
}

// Message is the payload published for an event.
type Message struct {
	Event          Event                    `json:"event"`
	TransmittalID  string                   `json:"transmittal_id"`
	ProjectID      string                   `json:"project_id"`
	Title          string                   `json:"title"`
	Status         models.TransmittalStatus `json:"status"`
	DocumentCount  int                      `json:"document_count"`
	RecipientCount int                      `json:"recipient_count"`
	OccurredAt     time.Time                `json:"occurred_at"`
}

// NewMessage builds the payload for t after it reached event.
func NewMessage(event Event, t models.Transmittal, at time.Time) Message {
	return Message{
		Event:          event,
		TransmittalID:  t.ID,
		ProjectID:      t.ProjectID,
		Title:          t.Title,
		Status:         t.Status,
		DocumentCount:  t.DocumentCount,
		RecipientCount: t.RecipientCount,
		OccurredAt:     at.UTC(),
	}
}

// Notifier is triggered after every successful lifecycle transition.
// Callers log returned errors; they never fail the transition.
type Notifier interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Options selects a Notifier implementation.
type Options struct {
	KafkaBrokers []string
	KafkaTopic   string
	Logger       *slog.Logger
}

// New returns a Kafka notifier when brokers are configured and a log notifier
// otherwise.
func New(opts Options) Notifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	brokers := make([]string, 0, len(opts.KafkaBrokers))
	for _, broker := range opts.KafkaBrokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	if len(brokers) == 0 {
		return NewLogNotifier(logger)
	}
	return NewKafkaNotifier(brokers, opts.KafkaTopic, logger)
}

// Noop discards every event.
type Noop struct{}

// Publish drops msg.
func (Noop) Publish(context.Context, Message) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }

// LogNotifier writes events to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier logs events at info level on logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Publish logs msg and never fails.
func (n *LogNotifier) Publish(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "transmittal event",
		"event", msg.Event,
		"transmittal_id", msg.TransmittalID,
		"project_id", msg.ProjectID,
		"status", msg.Status,
		"documents", msg.DocumentCount,
		"recipients", msg.RecipientCount,
	)
	return nil
}

// Close is a no-op.
func (n *LogNotifier) Close() error { return nil }
