// Package publisher fans snapshots and alerts out to Kafka topics.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/observability"
)

// Default topic names.
const (
	DefaultSnapshotTopic = "vectorquant.metrics"
	DefaultAlertTopic    = "vectorquant.alerts"
)

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Topics names the destination of each message kind.
type Topics struct {
	Snapshots string
	Alerts    string
}

// Publisher implements engine.TickObserver and engine.AlertObserver.
type Publisher struct {
	writer  Writer
	topics  Topics
	logger  *zap.Logger
	timeout time.Duration
}

// NewKafkaWriter returns an asynchronous writer for brokers. WriteMessages
// on it returns immediately; delivery failures are counted on completion.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			for _, m := range messages {
				observability.RecordPublish(m.Topic, err)
			}
		},
	}
}

// New creates a publisher. Empty topic names fall back to the defaults.
func New(writer Writer, topics Topics, logger *zap.Logger) *Publisher {
	if topics.Snapshots == "" {
		topics.Snapshots = DefaultSnapshotTopic
	}
	if topics.Alerts == "" {
		topics.Alerts = DefaultAlertTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		writer:  writer,
		topics:  topics,
		logger:  logger.Named("publisher"),
		timeout: time.Second,
	}
}

// ObserveTick publishes the rounded snapshot view.
func (p *Publisher) ObserveTick(snap domain.Snapshot) {
	value, err := json.Marshal(domain.NewMetricsView(snap))
	if err != nil {
		p.logger.Error("encode snapshot", zap.Error(err))
		return
	}
	p.write(kafka.Message{
		Topic: p.topics.Snapshots,
		Key:   []byte("snapshot"),
		Value: value,
		Time:  snap.Taken,
	})
}

// ObserveAlerts publishes one message per alert, keyed by alert kind.
func (p *Publisher) ObserveAlerts(_ domain.Snapshot, alerts []domain.Alert) {
	if len(alerts) == 0 {
		return
	}

	views := domain.NewAlertViews(alerts)
	msgs := make([]kafka.Message, 0, len(views))
	for i, v := range views {
		value, err := json.Marshal(v)
		if err != nil {
			p.logger.Error("encode alert", zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topics.Alerts,
			Key:   []byte(v.Type),
			Value: value,
			Time:  alerts[i].Timestamp,
		})
	}
	p.write(msgs...)
}

func (p *Publisher) write(msgs ...kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		for _, m := range msgs {
			observability.RecordPublish(m.Topic, err)
		}
		p.logger.Warn("kafka publish failed", zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
