package driving

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

// ProxyService forwards product and media calls to GHL on behalf of an installation.
type ProxyService interface {
	ListProducts(ctx context.Context, target Target, query url.Values) (*domain.UpstreamResponse, error)
	GetProduct(ctx context.Context, target Target, productID string) (*domain.UpstreamResponse, error)
	CreateProduct(ctx context.Context, target Target, body json.RawMessage) (*domain.UpstreamResponse, error)
	UpdateProduct(ctx context.Context, target Target, productID string, body json.RawMessage) (*domain.UpstreamResponse, error)
	DeleteProduct(ctx context.Context, target Target, productID string) (*domain.UpstreamResponse, error)

	ListMedia(ctx context.Context, target Target, query url.Values) (*domain.UpstreamResponse, error)
	UploadMedia(ctx context.Context, target Target, upload *domain.MediaUpload) (*domain.UpstreamResponse, error)
	DeleteMedia(ctx context.Context, target Target, mediaID string) (*domain.UpstreamResponse, error)

	GetLocation(ctx context.Context, target Target) (*domain.UpstreamResponse, error)
}

// Target selects the installation a proxied call runs as.
// InstallationID wins when both are set.
type Target struct {
	InstallationID string
	LocationID     string
}
