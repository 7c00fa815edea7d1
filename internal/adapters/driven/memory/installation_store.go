// Package memory provides process-lifetime implementations of the driven
// store ports. State is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.InstallationStore = (*InstallationStore)(nil)

// InstallationStore keeps installations in a map with a location index.
// Records are copied on the way in and out so callers never share state.
type InstallationStore struct {
	mu            sync.RWMutex
	installations map[string]*domain.Installation
	byLocation    map[string]string
	order         []string
}

// NewInstallationStore creates an empty InstallationStore.
func NewInstallationStore() *InstallationStore {
	return &InstallationStore{
		installations: make(map[string]*domain.Installation),
		byLocation:    make(map[string]string),
	}
}

// Create inserts a new installation and indexes its location. The record the
// location pointed at is superseded under the same lock.
func (s *InstallationStore) Create(ctx context.Context, inst *domain.Installation) (*domain.Installation, string, error) {
	if inst == nil || inst.ID == "" {
		return nil, "", domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.installations[inst.ID]; exists {
		return nil, "", domain.ErrInvalidInput
	}

	s.installations[inst.ID] = inst.Clone()
	s.order = append(s.order, inst.ID)

	var superseded string
	if inst.LocationID != "" {
		at := inst.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		superseded = s.claimLocation(inst.LocationID, inst.ID, at)
	}
	return inst.Clone(), superseded, nil
}

// Get retrieves an installation by ID.
func (s *InstallationStore) Get(ctx context.Context, id string) (*domain.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.installations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inst.Clone(), nil
}

// GetByLocation resolves the location index, then the installation.
func (s *InstallationStore) GetByLocation(ctx context.Context, locationID string) (*domain.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byLocation[locationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	inst, ok := s.installations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inst.Clone(), nil
}

// List returns all installations in insertion order.
func (s *InstallationStore) List(ctx context.Context) ([]*domain.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Installation, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.installations[id].Clone())
	}
	return result, nil
}

// UpdateTokens rewrites the token fields under the write lock.
func (s *InstallationStore) UpdateTokens(ctx context.Context, id string, update domain.TokenUpdate) (*domain.Installation, error) {
	if update.AccessToken == "" {
		return nil, domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.installations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	inst.ApplyTokens(update)
	return inst.Clone(), nil
}

// SetLocation fills in a location learned after creation and indexes it.
func (s *InstallationStore) SetLocation(ctx context.Context, id, locationID, companyID string) (string, error) {
	if locationID == "" {
		return "", domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.installations[id]
	if !ok {
		return "", domain.ErrNotFound
	}

	now := time.Now()
	if prev := inst.LocationID; prev != "" && prev != locationID && s.byLocation[prev] == id {
		delete(s.byLocation, prev)
	}
	inst.LocationID = locationID
	if companyID != "" {
		inst.CompanyID = companyID
	}
	inst.UpdatedAt = now
	return s.claimLocation(locationID, id, now), nil
}

// claimLocation points locationID at id and supersedes the installation it
// displaced, returning that installation's ID. Caller holds the write lock.
func (s *InstallationStore) claimLocation(locationID, id string, at time.Time) string {
	prev, ok := s.byLocation[locationID]
	s.byLocation[locationID] = id
	if !ok || prev == id {
		return ""
	}

	displaced, ok := s.installations[prev]
	if !ok || displaced.IsSuperseded() {
		return ""
	}
	displaced.SupersededBy = id
	displaced.SupersededAt = &at
	return prev
}

// Ping always succeeds.
func (s *InstallationStore) Ping(ctx context.Context) error {
	return nil
}
