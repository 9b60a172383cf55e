package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformStore = (*PlatformRepo)(nil)

// PlatformRepo is the SQLite implementation of the PlatformStore port interface.
type PlatformRepo struct {
	db *DB
}

// NewPlatformRepo creates a new PlatformRepo backed by the given DB.
func NewPlatformRepo(db *DB) *PlatformRepo {
	return &PlatformRepo{db: db}
}

// Add inserts a platform. Returns an error if the id already exists.
func (r *PlatformRepo) Add(ctx context.Context, p model.Platform) error {
	const query = `INSERT INTO platforms (id, type, client_id, name, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query, p.ID, string(p.Type), p.ClientID, p.Name, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("add platform %q: %w", p.ID, err)
	}
	return nil
}

// Get returns the platform with the given id, or (nil, nil) if it does not exist.
func (r *PlatformRepo) Get(ctx context.Context, id string) (*model.Platform, error) {
	const query = `SELECT id, type, client_id, name, created_at FROM platforms WHERE id = ?`

	p, err := scanPlatform(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get platform %q: %w", id, err)
	}
	return &p, nil
}

// ListAll returns all platforms ordered by id.
func (r *PlatformRepo) ListAll(ctx context.Context) ([]model.Platform, error) {
	const query = `SELECT id, type, client_id, name, created_at FROM platforms ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	defer rows.Close()

	platforms := []model.Platform{}
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, fmt.Errorf("scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate platforms: %w", err)
	}

	return platforms, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlatform(row rowScanner) (model.Platform, error) {
	var p model.Platform
	var platformType, createdAt string
	if err := row.Scan(&p.ID, &platformType, &p.ClientID, &p.Name, &createdAt); err != nil {
		return model.Platform{}, err
	}
	p.Type = model.PlatformType(platformType)

	var err error
	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Platform{}, fmt.Errorf("parse created_at: %w", err)
	}
	return p, nil
}
