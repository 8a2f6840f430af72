package kafka

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
)

const DefaultTopic = "shoutbox-events"

// kgoRecordCarrier carries trace context in record headers.
type kgoRecordCarrier struct {
	record *kgo.Record
}

func (c kgoRecordCarrier) Get(key string) string {
	for _, h := range c.record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c kgoRecordCarrier) Set(key string, value string) {
	for i, h := range c.record.Headers {
		if h.Key == key {
			c.record.Headers[i].Value = []byte(value)
			return
		}
	}
	c.record.Headers = append(c.record.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

func (c kgoRecordCarrier) Keys() []string {
	keys := make([]string, 0, len(c.record.Headers))
	for _, h := range c.record.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// Producer feeds accepted chat events to a Kafka topic for downstream
// consumers such as moderation or search indexing.
type Producer struct {
	client *kgo.Client
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.MaxBufferedRecords(4096),
	)
	if err != nil {
		return nil, err
	}
	return &Producer{client: cl}, nil
}

// Publish buffers ev without waiting for the broker. A full buffer drops it.
func (p *Producer) Publish(ctx context.Context, ev domain.Event) {
	if !ev.IsChat() {
		return
	}
	record, err := newRecord(ctx, ev)
	if err != nil {
		observability.GetLogger(ctx).Error("kafka: encode event", zap.Error(err))
		return
	}

	p.client.TryProduce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			observability.GetLogger(ctx).Warn("kafka: produce failed",
				zap.String("message_id", string(r.Key)),
				zap.Error(err),
			)
		}
	})
}

func (p *Producer) Close() {
	if p.client == nil {
		return
	}
	if err := p.client.Flush(context.Background()); err != nil {
		observability.GetLogger(context.Background()).Warn("kafka: flush on close", zap.Error(err))
	}
	p.client.Close()
}

// newRecord keys by message id so edits land on the same partition as the post.
func newRecord(ctx context.Context, ev domain.Event) (*kgo.Record, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	record := &kgo.Record{
		Key:   []byte(ev.Message.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, kgoRecordCarrier{record: record})
	return record, nil
}
