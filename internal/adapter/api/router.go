package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventforge/eventforge/internal/adapter/api/handler"
	"github.com/eventforge/eventforge/internal/adapter/api/middleware"
	"github.com/eventforge/eventforge/internal/domain"
	"github.com/eventforge/eventforge/internal/usecase"
)

// NewRouter creates and configures the public HTTP router: published
// artifact reads plus the authenticated submission endpoints.
func NewRouter(
	logger *slog.Logger,
	apiKeyRepo domain.APIKeyRepository,
	submitUseCase *usecase.SubmitUseCase,
	view handler.ViewReader,
	static handler.StaticReader,
	partition string,
) http.Handler {
	mux := http.NewServeMux()

	submitHandler := handler.NewSubmitHandler(submitUseCase, logger)
	eventsHandler := handler.NewEventsHandler(view, static, partition, logger)

	authMiddleware := middleware.Auth(apiKeyRepo, logger)

	// Read side serves only published artifacts, no auth required.
	mux.HandleFunc("GET /events", eventsHandler.ListEvents)
	mux.HandleFunc("GET /calendar", eventsHandler.GetCalendar)

	// Write side requires an API key.
	mux.Handle("POST /overrides", authMiddleware(http.HandlerFunc(submitHandler.SubmitOverride)))
	mux.Handle("POST /events", authMiddleware(http.HandlerFunc(submitHandler.SubmitManual)))

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
