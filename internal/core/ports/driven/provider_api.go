package driven

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// ProviderAPI forwards authenticated calls to the GHL REST API.
type ProviderAPI interface {
	// Do sends a JSON request with the bearer token and returns the raw response.
	Do(ctx context.Context, accessToken, method, path string, query url.Values, body json.RawMessage) (*domain.UpstreamResponse, error)

	// Upload sends a multipart file upload.
	Upload(ctx context.Context, accessToken, path string, upload *domain.MediaUpload) (*domain.UpstreamResponse, error)

	// GetLocation fetches location details, retrying transient failures.
	GetLocation(ctx context.Context, accessToken, locationID string) (*domain.LocationInfo, error)
}
