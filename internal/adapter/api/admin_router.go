package api

import (
	"log/slog"
	"net/http"

	"github.com/eventforge/eventforge/internal/adapter/api/handler"
	"github.com/eventforge/eventforge/internal/domain"
	"github.com/eventforge/eventforge/internal/usecase"
)

// NewAdminRouter creates and configures the HTTP router for admin
// operations: feed group lifecycle and signal queue repair.
// Note: This router uses path patterns (e.g., "/{streamName}/") available in Go 1.22+.
func NewAdminRouter(
	adminUseCase *usecase.AdminQueueUseCase,
	groups domain.GroupRepository,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(adminUseCase, logger)
	groupHandler := handler.NewGroupHandler(groups, logger)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)

	// Feed group lifecycle
	mux.HandleFunc("GET /admin/groups", groupHandler.ListGroups)
	mux.HandleFunc("PUT /admin/groups/{groupID}", groupHandler.PutGroup)
	mux.HandleFunc("POST /admin/groups/{groupID}/active", groupHandler.SetGroupActive)
	mux.HandleFunc("DELETE /admin/groups/{groupID}", groupHandler.DeleteGroup)

	// Stream Info
	mux.HandleFunc("GET /admin/streams/{streamName}/groups", adminHandler.GetGroupInfo)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/consumers", adminHandler.GetConsumerInfo)

	// Pending Messages
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/pending", adminHandler.GetPendingSummary)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/pending/messages", adminHandler.GetPendingMessages)

	// Stream Operations
	mux.HandleFunc("POST /admin/streams/{streamName}/groups/{groupName}/claim", adminHandler.ClaimMessages)
	mux.HandleFunc("POST /admin/streams/{streamName}/groups/{groupName}/ack", adminHandler.AcknowledgeMessages)
	mux.HandleFunc("POST /admin/streams/{streamName}/trim", adminHandler.TrimStream)

	return mux
}
