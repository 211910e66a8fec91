package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewEvent(t *testing.T) {
	before := time.Now().Unix()
	e := NewEvent(TypeCourseCreated, 3, 42, 7)

	assert.Equal(t, TypeCourseCreated, e.Type)
	assert.Equal(t, 3, e.TemplateID)
	assert.Equal(t, 42, e.CourseID)
	assert.Equal(t, 7, e.UserID)
	assert.GreaterOrEqual(t, e.At, before)
}

func TestEncodeEvent(t *testing.T) {
	msg, err := encodeEvent(NewEvent(TypeCourseImported, 12, 40, 7))
	require.NoError(t, err)

	assert.Equal(t, "12", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, HeaderEventType, msg.Headers[0].Key)
	assert.Equal(t, TypeCourseImported, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 12, decoded.TemplateID)
	assert.Equal(t, 40, decoded.CourseID)
	assert.Equal(t, decoded.At, msg.Time.Unix())
}

func TestKafkaPublisherSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	// nothing listens on this port, so the write fails fast
	producer := NewProducer([]string{"127.0.0.1:1"}, "test", logger)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	NewKafkaPublisher(producer, "course-template-events", logger).Publish(ctx, NewEvent(TypeTemplateDeleted, 1, 0, 2))

	assert.Equal(t, 1, logs.FilterMessage("Dropped workflow event").Len())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.Publish(context.Background(), NewEvent(TypeArchiveCreated, 1, 2, 3))
}
