package driven

import (
	"context"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// CredentialStore defines the driven port for encrypted credential persistence.
// It stores opaque envelope strings; encryption happens in the vault before
// values reach this port.
type CredentialStore interface {
	// Upsert stores or replaces the single credential record of a platform.
	Upsert(ctx context.Context, platformID, payload string) error

	// Get returns the credential record for the platform, or (nil, nil) if none exists.
	Get(ctx context.Context, platformID string) (*model.Credential, error)

	// Delete removes the credential record of the platform. Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, platformID string) error
}
