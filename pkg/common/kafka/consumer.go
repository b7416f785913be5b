package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
	"github.com/synaptica-ai/diseaseform/pkg/common/models"
)

type Consumer struct {
	reader *kafka.Reader
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1e6,
		MaxWait:  time.Second,
	})

	return &Consumer{reader: reader}
}

// Consume hands every event to handler until ctx is done. A message is
// committed once handled, or once found undecodable; handler failures leave
// it uncommitted for redelivery.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal event")
			_ = c.reader.CommitMessages(ctx, message)
			continue
		}

		if err := handler(ctx, event); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Error("Failed to process event")
			continue
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			logger.Log.WithError(err).Error("Failed to commit message")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// ErrNotPrediction is returned for events of any other type.
var ErrNotPrediction = errors.New("not a prediction event")

// PredictionFromEvent decodes a record published by RecordPrediction.
func PredictionFromEvent(event models.Event) (models.PredictionRecord, error) {
	if event.Type != EventPredictionCompleted {
		return models.PredictionRecord{}, fmt.Errorf("%w: %q", ErrNotPrediction, event.Type)
	}
	str := func(k string) string {
		v, _ := event.Data[k].(string)
		return v
	}
	num := func(k string) float64 {
		v, _ := event.Data[k].(float64)
		return v
	}
	rec := models.PredictionRecord{
		SessionID:    str("session_id"),
		PanelID:      str("panel_id"),
		Outcome:      str("outcome"),
		ModelKind:    str("model_kind"),
		FeatureCount: int(num("feature_count")),
		Latency:      time.Duration(num("latency_ms") * float64(time.Millisecond)),
		Timestamp:    event.Timestamp,
	}
	if rec.PanelID == "" || rec.Outcome == "" {
		return models.PredictionRecord{}, errors.New("prediction event missing panel_id or outcome")
	}
	return rec, nil
}
