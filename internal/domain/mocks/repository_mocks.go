package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

// MockCanonicalStore is an in-memory implementation of domain.CanonicalStore
// for testing. It keeps a real event map and change log so usecases can be
// exercised end to end without Postgres.
type MockCanonicalStore struct {
	mu       sync.Mutex
	Events   map[string]domain.CanonicalEvent
	Changes  []domain.ChangeEntry
	Cursor   int64
	nextSeq  int64
	GetErr   error
	ScanErr  error
	WriteErr error
	ReadErr  error
}

func NewMockCanonicalStore() *MockCanonicalStore {
	return &MockCanonicalStore{Events: make(map[string]domain.CanonicalEvent)}
}

func (m *MockCanonicalStore) Get(ctx context.Context, partition, identityKey string) (*domain.CanonicalEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	ev, ok := m.Events[identityKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ev, nil
}

func (m *MockCanonicalStore) Scan(ctx context.Context, partition string) ([]domain.CanonicalEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ScanErr != nil {
		return nil, m.ScanErr
	}
	out := make([]domain.CanonicalEvent, 0, len(m.Events))
	for _, ev := range m.Events {
		out = append(out, ev)
	}
	return out, nil
}

func (m *MockCanonicalStore) Upsert(ctx context.Context, partition string, event domain.CanonicalEvent) (domain.ChangeKind, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return "", false, m.WriteErr
	}
	existing, ok := m.Events[event.IdentityKey]
	if ok && existing.ContentEquals(event) {
		return domain.ChangeUpdate, false, nil
	}
	kind := domain.ChangeInsert
	if ok {
		kind = domain.ChangeUpdate
	}
	m.Events[event.IdentityKey] = event
	m.appendChange(partition, event.IdentityKey, kind)
	return kind, true, nil
}

func (m *MockCanonicalStore) Delete(ctx context.Context, partition, identityKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return false, m.WriteErr
	}
	if _, ok := m.Events[identityKey]; !ok {
		return false, nil
	}
	delete(m.Events, identityKey)
	m.appendChange(partition, identityKey, domain.ChangeDelete)
	return true, nil
}

func (m *MockCanonicalStore) PurgeEndedBefore(ctx context.Context, partition, cutoffDate string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return nil, m.WriteErr
	}
	var purged []string
	for key, ev := range m.Events {
		if ev.EndDate < cutoffDate {
			delete(m.Events, key)
			m.appendChange(partition, key, domain.ChangeDelete)
			purged = append(purged, key)
		}
	}
	return purged, nil
}

func (m *MockCanonicalStore) ReadChanges(ctx context.Context, partition string, afterSequence int64, limit int) ([]domain.ChangeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var out []domain.ChangeEntry
	for _, c := range m.Changes {
		if c.Sequence > afterSequence {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockCanonicalStore) DispatchCursor(ctx context.Context, partition string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cursor, nil
}

func (m *MockCanonicalStore) AdvanceCursor(ctx context.Context, partition string, sequence int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sequence > m.Cursor {
		m.Cursor = sequence
	}
	return nil
}

func (m *MockCanonicalStore) appendChange(partition, key string, kind domain.ChangeKind) {
	m.nextSeq++
	m.Changes = append(m.Changes, domain.ChangeEntry{
		Sequence:     m.nextSeq,
		Partition:    partition,
		CanonicalKey: key,
		Kind:         kind,
		Timestamp:    time.Now().UTC(),
	})
}

// MockOverrideRepository is an in-memory domain.OverrideRepository.
type MockOverrideRepository struct {
	mu        sync.Mutex
	Overrides map[string]domain.OverrideRecord
	PutErr    error
	ListErr   error
}

func NewMockOverrideRepository() *MockOverrideRepository {
	return &MockOverrideRepository{Overrides: make(map[string]domain.OverrideRecord)}
}

func (m *MockOverrideRepository) Put(ctx context.Context, partition string, record domain.OverrideRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return false, m.PutErr
	}
	if existing, ok := m.Overrides[record.IdentityKey]; ok && existing.UpdatedAt.After(record.UpdatedAt) {
		return false, nil
	}
	m.Overrides[record.IdentityKey] = record
	return true, nil
}

func (m *MockOverrideRepository) Get(ctx context.Context, partition, identityKey string) (*domain.OverrideRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Overrides[identityKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *MockOverrideRepository) List(ctx context.Context, partition string) ([]domain.OverrideRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]domain.OverrideRecord, 0, len(m.Overrides))
	for _, rec := range m.Overrides {
		out = append(out, rec)
	}
	return out, nil
}

// MockGroupRepository is an in-memory domain.GroupRepository.
type MockGroupRepository struct {
	mu     sync.Mutex
	Groups map[string]domain.Group
}

func NewMockGroupRepository() *MockGroupRepository {
	return &MockGroupRepository{Groups: make(map[string]domain.Group)}
}

func (m *MockGroupRepository) Put(ctx context.Context, group domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Groups[group.ID] = group
	return nil
}

func (m *MockGroupRepository) Get(ctx context.Context, id string) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.Groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

func (m *MockGroupRepository) List(ctx context.Context, activeOnly bool) ([]domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Group, 0, len(m.Groups))
	for _, g := range m.Groups {
		if activeOnly && !g.Active {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *MockGroupRepository) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.Groups[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.Active = active
	m.Groups[id] = g
	return nil
}

func (m *MockGroupRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Groups, id)
	return nil
}

// MockSignalQueue records enqueued signals and applies token dedup the way
// the real queue does.
type MockSignalQueue struct {
	mu          sync.Mutex
	Enqueued    []domain.RebuildSignal
	SeenTokens  map[string]struct{}
	Acked       []string
	DeadLetters []domain.RebuildSignal
	ReceiveBuf  []domain.RebuildSignal
	EnqueueErr  error
	ReceiveErr  error
}

func NewMockSignalQueue() *MockSignalQueue {
	return &MockSignalQueue{SeenTokens: make(map[string]struct{})}
}

func (m *MockSignalQueue) Enqueue(ctx context.Context, signal domain.RebuildSignal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return false, m.EnqueueErr
	}
	if _, seen := m.SeenTokens[signal.DedupToken]; seen {
		return false, nil
	}
	m.SeenTokens[signal.DedupToken] = struct{}{}
	m.Enqueued = append(m.Enqueued, signal)
	return true, nil
}

func (m *MockSignalQueue) Receive(ctx context.Context, consumer string, block time.Duration) (*domain.RebuildSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReceiveErr != nil {
		return nil, m.ReceiveErr
	}
	if len(m.ReceiveBuf) == 0 {
		return nil, nil
	}
	sig := m.ReceiveBuf[0]
	m.ReceiveBuf = m.ReceiveBuf[1:]
	return &sig, nil
}

func (m *MockSignalQueue) Reclaim(ctx context.Context, consumer string, minIdle time.Duration) (*domain.RebuildSignal, error) {
	return nil, nil
}

func (m *MockSignalQueue) Ack(ctx context.Context, signal *domain.RebuildSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acked = append(m.Acked, signal.StreamMessageID)
	return nil
}

func (m *MockSignalQueue) MoveToDeadLetter(ctx context.Context, signal *domain.RebuildSignal, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeadLetters = append(m.DeadLetters, *signal)
	return nil
}

// MockViewPublisher captures the last published view, or fails on demand to
// simulate a publish-time fault.
type MockViewPublisher struct {
	mu         sync.Mutex
	Published  [][]domain.ViewRow
	PublishErr error
}

func (m *MockViewPublisher) PublishView(ctx context.Context, partition string, rows []domain.ViewRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, rows)
	return nil
}

// Current returns the most recently published row set, or nil.
func (m *MockViewPublisher) Current() []domain.ViewRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Published) == 0 {
		return nil
	}
	return m.Published[len(m.Published)-1]
}

// MockStaticPublisher captures published static documents.
type MockStaticPublisher struct {
	mu         sync.Mutex
	Published  []domain.StaticDocument
	PublishErr error
}

func (m *MockStaticPublisher) PublishStatic(ctx context.Context, partition string, doc domain.StaticDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, doc)
	return nil
}

func (m *MockStaticPublisher) Current() *domain.StaticDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Published) == 0 {
		return nil
	}
	doc := m.Published[len(m.Published)-1]
	return &doc
}

// MockCacheInvalidator records invalidated paths.
type MockCacheInvalidator struct {
	mu            sync.Mutex
	Invalidated   [][]string
	InvalidateErr error
}

func (m *MockCacheInvalidator) Invalidate(ctx context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InvalidateErr != nil {
		return m.InvalidateErr
	}
	m.Invalidated = append(m.Invalidated, paths)
	return nil
}

// MockDispatchJournal is an in-memory domain.DispatchJournal.
type MockDispatchJournal struct {
	mu       sync.Mutex
	Signals  []domain.RebuildSignal
	WriteErr error
}

func (m *MockDispatchJournal) Write(ctx context.Context, signal domain.RebuildSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Signals = append(m.Signals, signal)
	return nil
}

func (m *MockDispatchJournal) Replay(ctx context.Context, handler func(signal domain.RebuildSignal) error) error {
	m.mu.Lock()
	signals := append([]domain.RebuildSignal(nil), m.Signals...)
	m.mu.Unlock()
	for _, sig := range signals {
		if err := handler(sig); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockDispatchJournal) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Signals = nil
	return nil
}
