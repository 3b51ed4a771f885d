package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eventforge/eventforge/internal/domain"
	"github.com/eventforge/eventforge/internal/merge"
	"github.com/eventforge/eventforge/internal/normalize"
)

// ErrInvalidSubmission marks a rejected submission; handlers map it to a
// 400 instead of a 500.
var ErrInvalidSubmission = errors.New("invalid submission")

// SubmitUseCase handles the write paths that bypass the feed collector:
// user-submitted overrides and manually authored events. Both enter the
// canonical store directly and ride the same change log as feed writes.
type SubmitUseCase struct {
	store     domain.CanonicalStore
	overrides domain.OverrideRepository
	groups    domain.GroupRepository
	logger    *slog.Logger

	partition string
	retention time.Duration
	horizon   time.Duration
	location  *time.Location
	now       func() time.Time
}

func NewSubmitUseCase(
	store domain.CanonicalStore,
	overrides domain.OverrideRepository,
	groups domain.GroupRepository,
	logger *slog.Logger,
	partition string,
	retention, horizon time.Duration,
	location *time.Location,
) *SubmitUseCase {
	return &SubmitUseCase{
		store:     store,
		overrides: overrides,
		groups:    groups,
		logger:    logger.With("component", "submit"),
		partition: partition,
		retention: retention,
		horizon:   horizon,
		location:  location,
		now:       time.Now,
	}
}

// SubmitOverride stores an override record and, when a base event with that
// key already exists, applies it immediately. An override for a key with no
// base is retained inert until a matching base arrives; the next collection
// cycle will pick it up.
func (uc *SubmitUseCase) SubmitOverride(ctx context.Context, record domain.OverrideRecord) error {
	if record.IdentityKey == "" {
		return fmt.Errorf("%w: identity_key is required", ErrInvalidSubmission)
	}
	if record.DuplicateOf != nil && *record.DuplicateOf == record.IdentityKey {
		return fmt.Errorf("%w: duplicate_of cannot reference the record itself", ErrInvalidSubmission)
	}

	record.UpdatedAt = uc.now().UTC()
	won, err := uc.overrides.Put(ctx, uc.partition, record)
	if err != nil {
		return fmt.Errorf("store override: %w", err)
	}
	if !won {
		// A newer stored override kept the key; applying this one would put
		// the losing record on the canonical event until the next refresh.
		uc.logger.Info("override superseded by a newer stored record",
			"identity_key", record.IdentityKey)
		return nil
	}

	current, err := uc.store.Get(ctx, uc.partition, record.IdentityKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.logger.Info("override retained without base event",
				"identity_key", record.IdentityKey)
			return nil
		}
		return fmt.Errorf("lookup base event: %w", err)
	}

	// Apply onto the current canonical record. Fields the new override
	// leaves unset keep their merged value until the next collection cycle
	// recomputes the base from source.
	base := candidateFromCanonical(*current)
	var group *domain.Group
	if current.GroupID != "" {
		if g, gerr := uc.groups.Get(ctx, current.GroupID); gerr == nil {
			group = g
		}
	}
	ev := merge.Apply(base, &record, group)
	ev.UpdatedAt = record.UpdatedAt

	if _, _, err := uc.store.Upsert(ctx, uc.partition, ev); err != nil {
		return fmt.Errorf("apply override to canonical event: %w", err)
	}
	return nil
}

// SubmitManual normalizes a manually authored event, merges any override
// already waiting on its identity key, and writes the canonical record.
// Returns the identity key so the caller can address the event later.
func (uc *SubmitUseCase) SubmitManual(ctx context.Context, sub domain.ManualSubmission, groupID string) (string, error) {
	var group *domain.Group
	if groupID != "" {
		g, err := uc.groups.Get(ctx, groupID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return "", fmt.Errorf("%w: unknown group %q", ErrInvalidSubmission, groupID)
			}
			return "", fmt.Errorf("lookup group: %w", err)
		}
		group = g
	}

	now := uc.now().UTC()
	cand, err := normalize.Normalize(normalize.Input{Manual: &sub, Group: group}, normalize.Options{
		Reference: now,
		Retention: uc.retention,
		Horizon:   uc.horizon,
		Location:  uc.location,
	})
	if err != nil {
		var skipErr *normalize.SkipError
		if errors.As(err, &skipErr) {
			return "", fmt.Errorf("%w: %s", ErrInvalidSubmission, skipErr.Error())
		}
		return "", err
	}
	cand.RawSourceID = uuid.NewString()

	var ov *domain.OverrideRecord
	if rec, oerr := uc.overrides.Get(ctx, uc.partition, cand.IdentityKey); oerr == nil {
		ov = rec
	} else if !errors.Is(oerr, domain.ErrNotFound) {
		return "", fmt.Errorf("lookup override: %w", oerr)
	}

	ev := merge.Apply(cand, ov, group)
	ev.UpdatedAt = now

	kind, changed, err := uc.store.Upsert(ctx, uc.partition, ev)
	if err != nil {
		return "", fmt.Errorf("write canonical event: %w", err)
	}
	if changed {
		uc.logger.Info("manual event written",
			"identity_key", ev.IdentityKey, "change_kind", string(kind))
	}
	return ev.IdentityKey, nil
}

// candidateFromCanonical rebuilds a candidate view of an already-merged
// canonical record so a newer override can be layered on top of it.
func candidateFromCanonical(ev domain.CanonicalEvent) domain.EventCandidate {
	return domain.EventCandidate{
		IdentityKey:  ev.IdentityKey,
		SourceKind:   ev.SourceKind,
		Title:        ev.Title,
		StartDate:    ev.StartDate,
		TimeMap:      ev.TimeMap.Clone(),
		EndDate:      ev.EndDate,
		URL:          ev.URL,
		LocationText: ev.LocationText,
		Cost:         ev.Cost,
		Categories:   append([]string(nil), ev.Categories...),
		GroupID:      ev.GroupID,
		RawSourceID:  ev.RawSourceID,
	}
}
