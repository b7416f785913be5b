package models

import "time"

// Panel catalogue
type PanelSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SubmitLabel  string `json:"submit_label"`
	FeatureCount int    `json:"feature_count"`
}

// Form rendering
type FieldView struct {
	Key     string `json:"key"` // <panel>_<feature>
	Feature string `json:"feature"`
	Value   string `json:"value"`
}

type FormView struct {
	SessionID   string         `json:"session_id"`
	PanelID     string         `json:"panel_id"`
	Title       string         `json:"title"`
	SubmitLabel string         `json:"submit_label"`
	Fields      []FieldView    `json:"fields"`
	Panels      []PanelSummary `json:"panels"`
}

// Interactions
type SelectPanelRequest struct {
	PanelID string `json:"panel_id"`
}

type EditFieldRequest struct {
	Feature string `json:"feature"`
	Value   string `json:"value"`
}

type VoiceCaptureResponse struct {
	Feature    string `json:"feature"`
	Success    bool   `json:"success"`
	Transcript string `json:"transcript,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"` // unintelligible, service_unavailable, timeout
	Message    string `json:"message"`
	Value      string `json:"value"` // stored value after the interaction
}

type PredictionResponse struct {
	PanelID string `json:"panel_id"`
	Outcome string `json:"outcome"` // positive, negative, invalid_input, model_error
	Message string `json:"message"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// PredictionRecord is what leaves the process about a prediction: panel,
// outcome and timing. Measurements are never included.
type PredictionRecord struct {
	SessionID    string        `json:"session_id"`
	PanelID      string        `json:"panel_id"`
	Outcome      string        `json:"outcome"`
	FeatureCount int           `json:"feature_count"`
	ModelKind    string        `json:"model_kind"`
	Latency      time.Duration `json:"latency"`
	Timestamp    time.Time     `json:"timestamp"`
}
