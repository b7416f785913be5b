package serving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/diseaseform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PredictionLog is one audited prediction. It holds the outcome and timing
// only; the submitted measurements are never persisted.
type PredictionLog struct {
	ID           uuid.UUID         `gorm:"primaryKey;column:id;type:uuid"`
	SessionID    string            `gorm:"column:session_id;index"`
	PanelID      string            `gorm:"column:panel_id;index"`
	Outcome      string            `gorm:"column:outcome"`
	ModelKind    string            `gorm:"column:model_kind"`
	FeatureCount int               `gorm:"column:feature_count"`
	LatencyMs    float64           `gorm:"column:latency_ms"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt    time.Time         `gorm:"column:created_at;index"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// Repository is the Postgres audit trail of predictions.
type Repository struct {
	db     *gorm.DB
	source string
}

func NewRepository(db *gorm.DB, source string) *Repository {
	return &Repository{db: db, source: source}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

func (r *Repository) RecordPrediction(ctx context.Context, rec models.PredictionRecord) error {
	entry := newPredictionLog(rec, r.source)
	return r.db.WithContext(ctx).Create(&entry).Error
}

func newPredictionLog(rec models.PredictionRecord, source string) PredictionLog {
	created := rec.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	return PredictionLog{
		ID:           uuid.New(),
		SessionID:    rec.SessionID,
		PanelID:      rec.PanelID,
		Outcome:      rec.Outcome,
		ModelKind:    rec.ModelKind,
		FeatureCount: rec.FeatureCount,
		LatencyMs:    float64(rec.Latency.Microseconds()) / 1000.0,
		Metadata:     datatypes.JSONMap{"source": source},
		CreatedAt:    created.UTC(),
	}
}

// Recent returns the most recent prediction logs for a panel, or for all
// panels when panelID is empty.
func (r *Repository) Recent(ctx context.Context, panelID string, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx)
	if panelID != "" {
		q = q.Where("panel_id = ?", panelID)
	}
	var logs []PredictionLog
	err := q.Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
