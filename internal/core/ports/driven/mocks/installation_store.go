package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// MockInstallationStore is a mock implementation of InstallationStore for testing.
// It keeps state in memory and lets tests inject failures.
type MockInstallationStore struct {
	mu            sync.RWMutex
	installations map[string]*domain.Installation
	byLocation    map[string]string
	order         []string

	// Custom behavior hooks (optional)
	GetFn          func(id string) (*domain.Installation, error)
	UpdateTokensFn func(id string, update domain.TokenUpdate) error
}

// NewMockInstallationStore creates a new MockInstallationStore
func NewMockInstallationStore() *MockInstallationStore {
	return &MockInstallationStore{
		installations: make(map[string]*domain.Installation),
		byLocation:    make(map[string]string),
	}
}

func (m *MockInstallationStore) Create(ctx context.Context, inst *domain.Installation) (*domain.Installation, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.installations[inst.ID]; !exists {
		m.order = append(m.order, inst.ID)
	}
	m.installations[inst.ID] = inst.Clone()

	var superseded string
	if inst.LocationID != "" {
		superseded = m.claimLocation(inst.LocationID, inst.ID, inst.CreatedAt)
	}
	return inst.Clone(), superseded, nil
}

func (m *MockInstallationStore) Get(ctx context.Context, id string) (*domain.Installation, error) {
	if m.GetFn != nil {
		return m.GetFn(id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.installations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inst.Clone(), nil
}

func (m *MockInstallationStore) GetByLocation(ctx context.Context, locationID string) (*domain.Installation, error) {
	m.mu.RLock()
	id, ok := m.byLocation[locationID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *MockInstallationStore) List(ctx context.Context) ([]*domain.Installation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Installation, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.installations[id].Clone())
	}
	return result, nil
}

func (m *MockInstallationStore) UpdateTokens(ctx context.Context, id string, update domain.TokenUpdate) (*domain.Installation, error) {
	if m.UpdateTokensFn != nil {
		if err := m.UpdateTokensFn(id, update); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.installations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	inst.ApplyTokens(update)
	return inst.Clone(), nil
}

func (m *MockInstallationStore) SetLocation(ctx context.Context, id, locationID, companyID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.installations[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	if prev := inst.LocationID; prev != "" && prev != locationID && m.byLocation[prev] == id {
		delete(m.byLocation, prev)
	}
	inst.LocationID = locationID
	if companyID != "" {
		inst.CompanyID = companyID
	}
	return m.claimLocation(locationID, id, time.Now()), nil
}

// claimLocation indexes locationID to id and supersedes the displaced record.
func (m *MockInstallationStore) claimLocation(locationID, id string, at time.Time) string {
	prev, ok := m.byLocation[locationID]
	m.byLocation[locationID] = id
	if !ok || prev == id {
		return ""
	}
	displaced, ok := m.installations[prev]
	if !ok || displaced.IsSuperseded() {
		return ""
	}
	displaced.SupersededBy = id
	displaced.SupersededAt = &at
	return prev
}

// Put stores an installation directly (for test setup).
func (m *MockInstallationStore) Put(inst *domain.Installation) {
	_, _, _ = m.Create(context.Background(), inst)
}
