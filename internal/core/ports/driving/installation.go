package driving

import (
	"context"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// InstallationService exposes installations for diagnostics.
type InstallationService interface {
	// List returns all installations (summaries without secrets), insertion order.
	List(ctx context.Context) ([]*domain.InstallationSummary, error)

	// Get retrieves an installation summary by ID.
	Get(ctx context.Context, id string) (*domain.InstallationSummary, error)

	// GetByLocation retrieves the installation currently indexed for a location.
	GetByLocation(ctx context.Context, locationID string) (*domain.InstallationSummary, error)

	// Stats counts installations by status.
	Stats(ctx context.Context) (*InstallationStats, error)
}

// InstallationStats is a diagnostic count of installations.
// @Description Installation counts
type InstallationStats struct {
	Total      int `json:"total" example:"3"`
	Valid      int `json:"valid" example:"2"`
	Expired    int `json:"expired" example:"1"`
	Superseded int `json:"superseded" example:"0"`
}
