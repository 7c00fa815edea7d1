package services

import (
	"context"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Ensure installationService implements InstallationService
var _ driving.InstallationService = (*installationService)(nil)

// InstallationServiceConfig holds configuration for the installation service.
type InstallationServiceConfig struct {
	// InstallationStore manages installation persistence.
	InstallationStore driven.InstallationStore

	// Now is the clock used to derive token status.
	Now func() time.Time
}

// installationService implements the InstallationService interface.
type installationService struct {
	installationStore driven.InstallationStore
	now               func() time.Time
}

// NewInstallationService creates a new installation service.
func NewInstallationService(cfg InstallationServiceConfig) driving.InstallationService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &installationService{
		installationStore: cfg.InstallationStore,
		now:               now,
	}
}

// List returns all installations (summaries without secrets).
func (s *installationService) List(ctx context.Context) ([]*domain.InstallationSummary, error) {
	installations, err := s.installationStore.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	summaries := make([]*domain.InstallationSummary, 0, len(installations))
	for _, inst := range installations {
		summaries = append(summaries, inst.ToSummary(now))
	}
	return summaries, nil
}

// Get retrieves an installation by ID (summary without secrets).
func (s *installationService) Get(ctx context.Context, id string) (*domain.InstallationSummary, error) {
	inst, err := s.installationStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return inst.ToSummary(s.now()), nil
}

// GetByLocation retrieves the installation currently indexed for a location.
func (s *installationService) GetByLocation(ctx context.Context, locationID string) (*domain.InstallationSummary, error) {
	if locationID == "" {
		return nil, domain.ErrInvalidInput
	}
	inst, err := s.installationStore.GetByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return inst.ToSummary(s.now()), nil
}

// Stats counts installations by token status.
func (s *installationService) Stats(ctx context.Context) (*driving.InstallationStats, error) {
	installations, err := s.installationStore.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &driving.InstallationStats{Total: len(installations)}
	for _, inst := range installations {
		if inst.IsSuperseded() {
			stats.Superseded++
		}
		switch inst.Status(now) {
		case domain.TokenStatusValid:
			stats.Valid++
		case domain.TokenStatusExpired:
			stats.Expired++
		}
	}
	return stats, nil
}
