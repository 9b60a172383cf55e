package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
	"github.com/ericfisherdev/creatorhub/internal/vault"
)

// CredentialVault stores per-platform credential maps encrypted at rest. The
// store only ever sees the v1 envelope string.
type CredentialVault struct {
	cipher *vault.Cipher
	store  driven.CredentialStore
}

// NewCredentialVault creates a CredentialVault that seals records with cipher.
func NewCredentialVault(cipher *vault.Cipher, store driven.CredentialStore) *CredentialVault {
	return &CredentialVault{cipher: cipher, store: store}
}

// Store encrypts data and upserts it as the platform's single credential record.
func (v *CredentialVault) Store(ctx context.Context, platformID string, data map[string]string) error {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode credentials for %s: %w", platformID, err)
	}

	sealed, err := v.cipher.EncryptString(string(plaintext))
	if err != nil {
		return fmt.Errorf("encrypt credentials for %s: %w", platformID, err)
	}

	if err := v.store.Upsert(ctx, platformID, sealed); err != nil {
		return fmt.Errorf("store credentials for %s: %w", platformID, err)
	}
	return nil
}

// Get returns the decrypted credential map of a platform. It returns nil when
// no record exists or the record fails its integrity check; the latter is
// logged so tampering is visible, without echoing any stored material.
func (v *CredentialVault) Get(ctx context.Context, platformID string) (map[string]string, error) {
	cred, err := v.store.Get(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("load credentials for %s: %w", platformID, err)
	}
	if cred == nil {
		return nil, nil
	}

	plaintext, err := v.cipher.DecryptString(cred.Payload)
	if err != nil {
		if errors.Is(err, model.ErrIntegrity) {
			slog.Warn("credential record failed integrity check", "platform_id", platformID)
			return nil, nil
		}
		return nil, fmt.Errorf("decrypt credentials for %s: %w", platformID, err)
	}

	data := map[string]string{}
	if err := json.Unmarshal([]byte(plaintext), &data); err != nil {
		slog.Warn("credential record is not a field map", "platform_id", platformID)
		return nil, nil
	}
	return data, nil
}

// Delete removes the platform's credential record.
func (v *CredentialVault) Delete(ctx context.Context, platformID string) error {
	if err := v.store.Delete(ctx, platformID); err != nil {
		return fmt.Errorf("delete credentials for %s: %w", platformID, err)
	}
	return nil
}

// ValidateFields reports whether data carries every field the platform type
// requires. missing lists absent or empty fields in requirement order.
func ValidateFields(platformType model.PlatformType, data map[string]string) (bool, []string) {
	var missing []string
	for _, field := range model.RequiredCredentialFields(platformType) {
		if data[field] == "" {
			missing = append(missing, field)
		}
	}
	return len(missing) == 0, missing
}
