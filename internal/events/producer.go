package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// HeaderEventType carries Event.Type so consumers can filter without decoding
const HeaderEventType = "event-type"

// Producer writes workflow events to Kafka. Events are keyed by template ID,
// so archive, course and delete events for one template share a partition
// and stay in order. Writers are opened lazily, one per topic.
type Producer struct {
	mu       sync.Mutex
	writers  map[string]*kafka.Writer
	brokers  []string
	clientID string
	logger   *zap.Logger
}

// NewProducer creates a producer; no connection is made until the first Send
func NewProducer(brokers []string, clientID string, logger *zap.Logger) *Producer {
	return &Producer{
		writers:  make(map[string]*kafka.Writer),
		brokers:  brokers,
		clientID: clientID,
		logger:   logger,
	}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{ClientID: p.clientID},
	}
	p.writers[topic] = w
	return w
}

// encodeEvent builds the Kafka message for an event
func encodeEvent(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:     []byte(strconv.Itoa(event.TemplateID)),
		Value:   value,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(event.Type)}},
		Time:    time.Unix(event.At, 0),
	}, nil
}

// Send writes one event to topic and waits for the leader's ack
func (p *Producer) Send(ctx context.Context, topic string, event Event) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}

	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s event for template %d: %w", event.Type, event.TemplateID, err)
	}

	p.logger.Debug("Workflow event sent",
		zap.String("topic", topic),
		zap.String("type", event.Type),
		zap.Int("templateId", event.TemplateID))
	return nil
}

// Close flushes and closes every writer
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.logger.Error("Failed to close Kafka writer",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
	return nil
}
