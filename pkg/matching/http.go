package matching

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/logger"
	"github.com/trialscout/platform/pkg/registry"
)

// RegistryDirect is the slice of the registry client the HTTP layer uses
// outside a match run: single-study lookup and cache maintenance.
type RegistryDirect interface {
	FetchByNCTID(ctx context.Context, nctID string) (registry.MappedClinicalTrial, error)
	ClearCache(ctx context.Context) error
}

type Handler struct {
	service  *Service
	registry RegistryDirect
}

func NewHandler(service *Service, direct RegistryDirect) *Handler {
	return &Handler{service: service, registry: direct}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/matches/search", h.handleFindMatches).Methods(http.MethodPost)
	r.HandleFunc("/matches/{id}", h.handleGetMatch).Methods(http.MethodGet)
	r.HandleFunc("/matches/{id}/consent", h.handleUpdateConsent).Methods(http.MethodPost)
	r.HandleFunc("/matches/{id}/consent/history", h.handleConsentHistory).Methods(http.MethodGet)
	r.HandleFunc("/matches/{id}/viewed", h.handleMarkViewed).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/matches", h.handlePatientMatches).Methods(http.MethodGet)
	r.HandleFunc("/trials", h.handleRegisterTrial).Methods(http.MethodPost)
	r.HandleFunc("/trials", h.handleListTrials).Methods(http.MethodGet)
	r.HandleFunc("/registry/studies/{nctId}", h.handleFetchRegistryStudy).Methods(http.MethodGet)
	r.HandleFunc("/cache/clear", h.handleClearCache).Methods(http.MethodPost)
}

func (h *Handler) handleFindMatches(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" {
		http.Error(w, "patientId is required", http.StatusBadRequest)
		return
	}
	outcome, err := h.service.FindMatches(r.Context(), req)
	if err != nil {
		writeError(w, err, "match search failed")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}
	match, err := h.service.GetMatch(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get match")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match": match})
}

type consentRequest struct {
	Status ConsentStatus `json:"status"`
	Note   string        `json:"note,omitempty"`
	UserID string        `json:"userId,omitempty"`
}

func (h *Handler) handleUpdateConsent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}
	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !ValidConsentStatus(req.Status) {
		http.Error(w, "status must be one of pending, approved, declined, enrolled", http.StatusBadRequest)
		return
	}
	match, err := h.service.UpdateConsent(r.Context(), id, req.Status, resolveActor(r), req.Note, req.UserID)
	if err != nil {
		writeError(w, err, "failed to update consent")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match": match})
}

func (h *Handler) handleConsentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}
	history, err := h.service.ConsentHistory(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to load consent history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": history})
}

func (h *Handler) handleMarkViewed(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}
	match, err := h.service.MarkViewed(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to mark match viewed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match": match})
}

func (h *Handler) handlePatientMatches(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]
	matches, err := h.service.ListMatchesByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err, "failed to list matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": matches})
}

func (h *Handler) handleRegisterTrial(w http.ResponseWriter, r *http.Request) {
	var trial LocalTrial
	if err := json.NewDecoder(r.Body).Decode(&trial); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if trial.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	created, err := h.service.RegisterLocalTrial(r.Context(), trial)
	if err != nil {
		writeError(w, err, "failed to register trial")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"trial": created})
}

func (h *Handler) handleListTrials(w http.ResponseWriter, r *http.Request) {
	trials, err := h.service.ListLocalTrials(r.Context())
	if err != nil {
		writeError(w, err, "failed to list trials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": trials})
}

func (h *Handler) handleFetchRegistryStudy(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		http.Error(w, "registry not configured", http.StatusServiceUnavailable)
		return
	}
	trial, err := h.registry.FetchByNCTID(r.Context(), mux.Vars(r)["nctId"])
	if err != nil {
		writeError(w, err, "failed to fetch registry study")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trial": trial})
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.registry.ClearCache(r.Context()); err != nil {
		writeError(w, err, "failed to clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func resolveActor(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "patient"
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindRateLimitExceeded:
		status = http.StatusTooManyRequests
	case apperrors.KindNoMedicalData, apperrors.KindNoConditionsExtracted:
		status = http.StatusUnprocessableEntity
	case apperrors.KindParse:
		status = http.StatusBadRequest
	case apperrors.KindUpstreamAPI:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logger.Log.WithError(err).Error(fallback)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    string(apperrors.KindOf(err)),
			"message": err.Error(),
		},
	})
}
