package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

// GroupHandler handles feed group lifecycle endpoints on the admin surface.
type GroupHandler struct {
	groups domain.GroupRepository
	logger *slog.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groups domain.GroupRepository, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, logger: logger}
}

// ListGroups returns all registered groups.
// GET /admin/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context(), false)
	if err != nil {
		h.logger.Error("failed to list groups", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	respondWithJSON(w, h.logger, http.StatusOK, groups)
}

// PutGroup creates or replaces a group registration.
// PUT /admin/groups/{groupID}
func (h *GroupHandler) PutGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("groupID")

	var group domain.Group
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&group); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	group.ID = id
	if group.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	group.UpdatedAt = time.Now().UTC()

	if err := h.groups.Put(r.Context(), group); err != nil {
		h.logger.Error("failed to store group", "error", err, "group_id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, group)
}

// SetGroupActive pauses or resumes collection for a group. Pausing never
// deletes events already collected.
// POST /admin/groups/{groupID}/active
func (h *GroupHandler) SetGroupActive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("groupID")

	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.groups.SetActive(r.Context(), id, payload.Active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "group not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to set group active", "error", err, "group_id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]bool{"active": payload.Active})
}

// DeleteGroup removes a group registration.
// DELETE /admin/groups/{groupID}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("groupID")

	if err := h.groups.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "group not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete group", "error", err, "group_id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
