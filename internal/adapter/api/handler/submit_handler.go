package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eventforge/eventforge/internal/domain"
	"github.com/eventforge/eventforge/internal/usecase"
)

const maxSubmissionSize = 64 * 1024

// SubmitHandler handles the authenticated write endpoints: override
// submissions and manually authored events.
type SubmitHandler struct {
	uc     *usecase.SubmitUseCase
	logger *slog.Logger
}

// NewSubmitHandler creates a new SubmitHandler.
func NewSubmitHandler(uc *usecase.SubmitUseCase, logger *slog.Logger) *SubmitHandler {
	return &SubmitHandler{uc: uc, logger: logger}
}

// SubmitOverride processes override submissions.
// POST /overrides
func (h *SubmitHandler) SubmitOverride(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionSize)

	var record domain.OverrideRecord
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&record); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.uc.SubmitOverride(r.Context(), record); err != nil {
		if errors.Is(err, usecase.ErrInvalidSubmission) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to submit override", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, h.logger, http.StatusAccepted, map[string]string{
		"identity_key": record.IdentityKey,
	})
}

// SubmitManual processes manually authored events.
// POST /events
func (h *SubmitHandler) SubmitManual(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionSize)

	var payload struct {
		domain.ManualSubmission
		GroupID string `json:"group_id"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.uc.SubmitManual(r.Context(), payload.ManualSubmission, payload.GroupID)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidSubmission) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to submit manual event", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, map[string]string{
		"identity_key": key,
	})
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
