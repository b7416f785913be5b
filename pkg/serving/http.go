package serving

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
)

// AuditHandler exposes the prediction audit trail.
type AuditHandler struct {
	repo *Repository
}

func NewAuditHandler(repo *Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

func (h *AuditHandler) Register(r *mux.Router) {
	r.HandleFunc("/audit/predictions", h.handleRecent).Methods(http.MethodGet)
}

func (h *AuditHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	logs, err := h.repo.Recent(r.Context(), r.URL.Query().Get("panel"), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list prediction logs")
		http.Error(w, "failed to list prediction logs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": logs})
}
