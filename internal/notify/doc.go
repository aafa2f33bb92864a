// Package notify publishes transmittal lifecycle events.
//
// Services depend only on the Notifier interface. Without configured Kafka
// brokers events are written to the structured log; tests use Noop.
package notify
