package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/store"
)

// MockProfileStore is an in-memory store.ProfileStore. The Fn fields
// override individual methods; otherwise balances live in Profiles and
// debits are applied with the same conditional rule as the database.
type MockProfileStore struct {
	GetProfileFn         func(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	DebitTokensFn        func(ctx context.Context, debit domain.Debit) (int, error)
	FlagReconciliationFn func(ctx context.Context, anomaly *domain.UsageAnomaly) error

	mu        sync.Mutex
	profiles  map[uuid.UUID]domain.Profile
	debits    []domain.Debit
	anomalies []domain.UsageAnomaly
}

var _ store.ProfileStore = (*MockProfileStore)(nil)

// NewMockProfileStore creates a store holding the given profiles.
func NewMockProfileStore(profiles ...domain.Profile) *MockProfileStore {
	m := &MockProfileStore{profiles: make(map[uuid.UUID]domain.Profile)}
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return m
}

// GetProfile implements store.ProfileStore.
func (m *MockProfileStore) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if m.GetProfileFn != nil {
		return m.GetProfileFn(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	return &p, nil
}

// CreateProfile implements store.ProfileStore.
func (m *MockProfileStore) CreateProfile(_ context.Context, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[profile.UserID]; exists {
		return store.ErrDuplicate
	}
	m.profiles[profile.UserID] = *profile
	return nil
}

// DebitTokens implements store.ProfileStore.
func (m *MockProfileStore) DebitTokens(ctx context.Context, debit domain.Debit) (int, error) {
	if m.DebitTokensFn != nil {
		return m.DebitTokensFn(ctx, debit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[debit.UserID]
	if !ok {
		return 0, store.ErrProfileNotFound
	}
	if p.TokenCount < debit.Amount {
		return p.TokenCount, store.ErrInsufficientBalance
	}
	p.TokenCount -= debit.Amount
	p.UpdatedAt = time.Now().UTC()
	m.profiles[debit.UserID] = p
	m.debits = append(m.debits, debit)
	return p.TokenCount, nil
}

// FlagReconciliation implements store.ProfileStore.
func (m *MockProfileStore) FlagReconciliation(ctx context.Context, anomaly *domain.UsageAnomaly) error {
	if m.FlagReconciliationFn != nil {
		return m.FlagReconciliationFn(ctx, anomaly)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, *anomaly)
	return nil
}

// Balance returns the stored balance for userID.
func (m *MockProfileStore) Balance(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID].TokenCount
}

// Debits returns every debit applied by the default implementation.
func (m *MockProfileStore) Debits() []domain.Debit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Debit(nil), m.debits...)
}

// Anomalies returns every anomaly recorded by the default implementation.
func (m *MockProfileStore) Anomalies() []domain.UsageAnomaly {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.UsageAnomaly(nil), m.anomalies...)
}
