package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

// ViewReader reads published view rows, optionally bounded by date.
type ViewReader interface {
	QueryView(ctx context.Context, partition, fromDate, toDate string) ([]domain.ViewRow, error)
}

// StaticReader loads the published static rendering input for a partition.
type StaticReader interface {
	Load(partition string) (*domain.StaticDocument, error)
}

// EventsHandler serves the read side: published view rows and the static
// rendering document. Both endpoints read only published artifacts, never
// the canonical store.
type EventsHandler struct {
	view      ViewReader
	static    StaticReader
	partition string
	logger    *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(view ViewReader, static StaticReader, partition string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{view: view, static: static, partition: partition, logger: logger}
}

// ListEvents returns published view rows, filtered by optional from/to
// date bounds.
// GET /events?from=2026-01-01&to=2026-03-31
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			http.Error(w, "dates must use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	rows, err := h.view.QueryView(r.Context(), h.partition, from, to)
	if err != nil {
		h.logger.Error("failed to query event view", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []domain.ViewRow{}
	}

	respondWithJSON(w, h.logger, http.StatusOK, rows)
}

// GetCalendar returns the static rendering document.
// GET /calendar
func (h *EventsHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	doc, err := h.static.Load(h.partition)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "no calendar published yet", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load static document", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, doc)
}
