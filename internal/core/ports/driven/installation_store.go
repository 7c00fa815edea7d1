package driven

import (
	"context"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// InstallationStore is the authoritative mapping of installations,
// addressable by installation ID and by GHL location ID.
type InstallationStore interface {
	// Create inserts a new installation. When LocationID is set the location
	// index entry is inserted or overwritten (last write wins), and the
	// installation it pointed at is marked superseded in the same atomic step.
	// supersededID is that installation's ID, or "" when nothing was displaced.
	Create(ctx context.Context, inst *domain.Installation) (created *domain.Installation, supersededID string, err error)

	// Get retrieves an installation by ID.
	// Returns domain.ErrNotFound if the installation doesn't exist.
	Get(ctx context.Context, id string) (*domain.Installation, error)

	// GetByLocation resolves the location index, then Get.
	// Returns domain.ErrNotFound if either step misses.
	GetByLocation(ctx context.Context, locationID string) (*domain.Installation, error)

	// List returns all installations in insertion order.
	List(ctx context.Context) ([]*domain.Installation, error)

	// UpdateTokens atomically rewrites the token fields and IssuedAt.
	// Returns the updated installation.
	UpdateTokens(ctx context.Context, id string, update domain.TokenUpdate) (*domain.Installation, error)

	// SetLocation fills in a location learned after creation and indexes it.
	// An index entry for the installation's previous location is dropped, and
	// a different installation owning locationID is superseded as in Create.
	SetLocation(ctx context.Context, id, locationID, companyID string) (supersededID string, err error)
}
