package shell

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
	"github.com/synaptica-ai/diseaseform/pkg/common/models"
	"github.com/synaptica-ai/diseaseform/pkg/form"
	"github.com/synaptica-ai/diseaseform/pkg/gateway/middleware"
	"github.com/synaptica-ai/diseaseform/pkg/session"
	"github.com/synaptica-ai/diseaseform/pkg/voice"
)

type HandlerOptions struct {
	MaxUploadBytes int64
	VoiceRPS       int
	VoiceBurst     int
}

type Handler struct {
	shell    *Shell
	sessions session.Backend
	opts     HandlerOptions
}

func NewHandler(shell *Shell, sessions session.Backend, opts HandlerOptions) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{shell: shell, sessions: sessions, opts: opts}
}

// Register mounts the form API on r. Requests must already carry a session
// id (middleware.Session).
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/panels", h.handleListPanels).Methods(http.MethodGet)
	r.HandleFunc("/form", h.handleRender).Methods(http.MethodGet)
	r.HandleFunc("/form/selection", h.handleSelect).Methods(http.MethodPut)
	r.HandleFunc("/form/fields", h.handleEdit).Methods(http.MethodPut)
	r.Handle("/form/voice", middleware.RateLimit(h.opts.VoiceRPS, h.opts.VoiceBurst)(http.HandlerFunc(h.handleVoice))).Methods(http.MethodPost)
	r.HandleFunc("/form/predict", h.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/session", h.handleEndSession).Methods(http.MethodDelete)
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id := session.IDFromContext(r.Context())
	if id == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return nil, false
	}
	sess, err := h.sessions.Open(r.Context(), id)
	if err != nil {
		logger.Log.WithError(err).Error("failed to open session")
		http.Error(w, "failed to open session", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (h *Handler) panelSummaries() []models.PanelSummary {
	defs := h.shell.Panels()
	out := make([]models.PanelSummary, len(defs))
	for i, d := range defs {
		out[i] = models.PanelSummary{
			ID:           d.ID(),
			Title:        d.Title(),
			SubmitLabel:  d.SubmitLabel(),
			FeatureCount: d.FeatureCount(),
		}
	}
	return out
}

func (h *Handler) handleListPanels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": h.panelSummaries()})
}

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	h.writeView(w, r, sess)
}

func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, sess session.Session) {
	view, err := h.shell.Render(r.Context(), sess)
	if err != nil {
		logger.Log.WithError(err).Error("failed to render form")
		http.Error(w, "failed to render form", http.StatusInternalServerError)
		return
	}
	fields := make([]models.FieldView, len(view.Fields))
	for i, f := range view.Fields {
		fields[i] = models.FieldView{Key: f.Key.String(), Feature: f.Feature, Value: f.Value}
	}
	writeJSON(w, http.StatusOK, models.FormView{
		SessionID:   sess.ID(),
		PanelID:     view.PanelID,
		Title:       view.Title,
		SubmitLabel: view.SubmitLabel,
		Fields:      fields,
		Panels:      h.panelSummaries(),
	})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req models.SelectPanelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PanelID == "" {
		http.Error(w, "panel_id is required", http.StatusBadRequest)
		return
	}
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := h.shell.Select(r.Context(), sess, req.PanelID); err != nil {
		if errors.Is(err, ErrUnknownPanel) {
			http.Error(w, "panel not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to select panel")
		http.Error(w, "failed to select panel", http.StatusInternalServerError)
		return
	}
	h.writeView(w, r, sess)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req models.EditFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Feature == "" {
		http.Error(w, "feature is required", http.StatusBadRequest)
		return
	}
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	key, err := h.shell.Edit(r.Context(), sess, req.Feature, req.Value)
	if err != nil {
		if errors.Is(err, form.ErrUnknownFeature) {
			http.Error(w, "feature not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to edit field")
		http.Error(w, "failed to edit field", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, models.FieldView{
		Key:     key.String(),
		Feature: req.Feature,
		Value:   req.Value,
	})
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}
	feature := r.FormValue("feature")
	if feature == "" {
		http.Error(w, "feature is required", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "audio file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	res, err := h.shell.Speak(r.Context(), sess, feature, voice.NewWAVDevice(file))
	if err != nil {
		switch {
		case errors.Is(err, form.ErrUnknownFeature):
			http.Error(w, "feature not found", http.StatusNotFound)
		case errors.Is(err, voice.ErrInvalidAudio):
			http.Error(w, "audio must be 16-bit PCM WAV", http.StatusBadRequest)
		default:
			logger.Log.WithError(err).Error("voice capture failed")
			http.Error(w, "voice capture failed", http.StatusInternalServerError)
		}
		return
	}

	resp := models.VoiceCaptureResponse{
		Feature:    res.Feature,
		Success:    res.Success,
		Transcript: res.Transcript,
		Message:    res.Message,
		Value:      res.Value,
	}
	if !res.Success {
		resp.ErrorKind = res.Kind.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	res, err := h.shell.Submit(r.Context(), sess)
	if err != nil {
		logger.Log.WithError(err).Error("failed to run prediction")
		http.Error(w, "failed to run prediction", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, models.PredictionResponse{
		PanelID: res.PanelID,
		Outcome: string(res.Outcome),
		Message: res.Message,
	})
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := session.IDFromContext(r.Context())
	if id != "" {
		if err := h.sessions.End(r.Context(), id); err != nil {
			logger.Log.WithError(err).Error("failed to end session")
			http.Error(w, "failed to end session", http.StatusInternalServerError)
			return
		}
	}
	middleware.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
