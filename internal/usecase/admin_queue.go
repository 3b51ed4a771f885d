package usecase

import (
	"context"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

// AdminQueueUseCase provides queue introspection and repair operations for
// the admin API: pending summaries, claiming abandoned signals, manual
// acks, and stream trimming.
type AdminQueueUseCase struct {
	repo domain.StreamAdminRepository
}

// NewAdminQueueUseCase creates a new AdminQueueUseCase.
func NewAdminQueueUseCase(repo domain.StreamAdminRepository) *AdminQueueUseCase {
	return &AdminQueueUseCase{repo: repo}
}

func (uc *AdminQueueUseCase) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	return uc.repo.GetGroupInfo(ctx, stream)
}

func (uc *AdminQueueUseCase) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	return uc.repo.GetConsumerInfo(ctx, stream, group)
}

func (uc *AdminQueueUseCase) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	return uc.repo.GetPendingSummary(ctx, stream, group)
}

func (uc *AdminQueueUseCase) GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	if startID == "" {
		startID = "-"
	}
	if count <= 0 {
		count = 100
	}
	return uc.repo.GetPendingMessages(ctx, stream, group, consumer, startID, count)
}

func (uc *AdminQueueUseCase) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdle time.Duration, messageIDs []string) ([]domain.RebuildSignal, error) {
	return uc.repo.ClaimMessages(ctx, stream, group, consumer, minIdle, messageIDs)
}

func (uc *AdminQueueUseCase) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	return uc.repo.AcknowledgeMessages(ctx, stream, group, messageIDs...)
}

func (uc *AdminQueueUseCase) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	return uc.repo.TrimStream(ctx, stream, maxLen)
}
