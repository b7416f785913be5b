package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
	"github.com/synaptica-ai/diseaseform/pkg/common/models"
)

const EventPredictionCompleted = "prediction.completed"

type Producer struct {
	writer *kafka.Writer
	source string
}

func NewProducer(brokers []string, topic string, source string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer, source: source}
}

func (p *Producer) PublishEvent(ctx context.Context, eventType string, data map[string]interface{}) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    p.source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.ID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(p.source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": eventType,
		}).Error("Failed to publish event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.writer.Topic,
	}).Debug("Event published")

	return nil
}

// RecordPrediction publishes a prediction.completed event.
func (p *Producer) RecordPrediction(ctx context.Context, rec models.PredictionRecord) error {
	return p.PublishEvent(ctx, EventPredictionCompleted, map[string]interface{}{
		"session_id":    rec.SessionID,
		"panel_id":      rec.PanelID,
		"outcome":       rec.Outcome,
		"feature_count": rec.FeatureCount,
		"model_kind":    rec.ModelKind,
		"latency_ms":    float64(rec.Latency.Microseconds()) / 1000.0,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
