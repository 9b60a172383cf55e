package driven

import (
	"context"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// PlatformStore defines the driven port for connected platform accounts.
type PlatformStore interface {
	Add(ctx context.Context, platform model.Platform) error
	// Get returns the platform, or (nil, nil) if it does not exist.
	Get(ctx context.Context, id string) (*model.Platform, error)
	ListAll(ctx context.Context) ([]model.Platform, error)
}
