// Package events publishes template workflow notifications
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event types
const (
	TypeArchiveCreated  = "archive.created"
	TypeCourseCreated   = "course.created"
	TypeCourseImported  = "course.imported"
	TypeTemplateDeleted = "template.deleted"
)

// Event is the JSON payload written to the events topic
type Event struct {
	Type       string `json:"type"`
	TemplateID int    `json:"templateId"`
	CourseID   int    `json:"courseId,omitempty"`
	UserID     int    `json:"userId,omitempty"`
	At         int64  `json:"at"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType string, templateID, courseID, userID int) Event {
	return Event{
		Type:       eventType,
		TemplateID: templateID,
		CourseID:   courseID,
		UserID:     userID,
		At:         time.Now().Unix(),
	}
}

// Publisher delivers workflow events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// KafkaPublisher writes events to a Kafka topic keyed by template ID
type KafkaPublisher struct {
	producer *Producer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher creates a publisher on top of a producer
func NewKafkaPublisher(producer *Producer, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish sends the event. Failures are logged and never returned.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if err := p.producer.Send(ctx, p.topic, event); err != nil {
		p.logger.Warn("Dropped workflow event",
			zap.String("type", event.Type),
			zap.Int("templateId", event.TemplateID),
			zap.Error(err))
	}
}

// NopPublisher discards events
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, Event) {}
