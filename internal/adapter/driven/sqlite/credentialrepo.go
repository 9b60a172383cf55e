package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// It persists already-encrypted envelopes; it never sees plaintext.
type CredentialRepo struct {
	db  *DB
	now func() time.Time
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db, now: time.Now}
}

// Upsert stores or replaces the single credential record of a platform.
func (r *CredentialRepo) Upsert(ctx context.Context, platformID, payload string) error {
	const query = `INSERT INTO credentials (platform_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(platform_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

	_, err := r.db.Writer.ExecContext(ctx, query, platformID, payload, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("upsert credential %q: %w", platformID, err)
	}
	return nil
}

// Get returns the credential record of a platform, or (nil, nil) if none exists.
func (r *CredentialRepo) Get(ctx context.Context, platformID string) (*model.Credential, error) {
	const query = `SELECT platform_id, payload, updated_at FROM credentials WHERE platform_id = ?`

	var cred model.Credential
	var updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, platformID).Scan(&cred.PlatformID, &cred.Payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", platformID, err)
	}

	cred.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for credential %q: %w", platformID, err)
	}
	return &cred, nil
}

// Delete removes the credential record of a platform.
func (r *CredentialRepo) Delete(ctx context.Context, platformID string) error {
	const query = `DELETE FROM credentials WHERE platform_id = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, platformID)
	if err != nil {
		return fmt.Errorf("delete credential %q: %w", platformID, err)
	}
	return nil
}
