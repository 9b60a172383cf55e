package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AutomationStore = (*AutomationRepo)(nil)

// AutomationRepo is the SQLite implementation of the AutomationStore port interface.
type AutomationRepo struct {
	db *DB
}

// NewAutomationRepo creates a new AutomationRepo backed by the given DB.
func NewAutomationRepo(db *DB) *AutomationRepo {
	return &AutomationRepo{db: db}
}

// Save inserts or replaces an automation definition.
func (r *AutomationRepo) Save(ctx context.Context, a model.Automation) error {
	actions, err := json.Marshal(a.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions for automation %s: %w", a.ID, err)
	}
	conditions := string(a.Conditions)
	if conditions == "" {
		conditions = "{}"
	}

	const query = `INSERT INTO automations (id, name, trigger_type, conditions, actions, is_active, last_triggered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			trigger_type = excluded.trigger_type,
			conditions = excluded.conditions,
			actions = excluded.actions,
			is_active = excluded.is_active,
			last_triggered_at = COALESCE(excluded.last_triggered_at, automations.last_triggered_at)`

	_, err = r.db.Writer.ExecContext(ctx, query,
		a.ID, a.Name, string(a.TriggerType), conditions, string(actions), a.IsActive,
		formatNullableTime(a.LastTriggeredAt), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save automation %s: %w", a.ID, err)
	}
	return nil
}

// Get returns the automation with the given id, or (nil, nil) if it does not exist.
func (r *AutomationRepo) Get(ctx context.Context, id string) (*model.Automation, error) {
	const query = `SELECT id, name, trigger_type, conditions, actions, is_active, last_triggered_at, created_at
		FROM automations WHERE id = ?`

	var (
		a                       model.Automation
		triggerType, conditions string
		actions, createdAt      string
		lastTriggered           sql.NullString
	)
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Name, &triggerType, &conditions, &actions, &a.IsActive, &lastTriggered, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get automation %s: %w", id, err)
	}

	a.TriggerType = model.TriggerType(triggerType)
	a.Conditions = json.RawMessage(conditions)
	if err := json.Unmarshal([]byte(actions), &a.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions for automation %s: %w", id, err)
	}
	if a.LastTriggeredAt, err = parseNullableTime(lastTriggered); err != nil {
		return nil, fmt.Errorf("parse last_triggered_at: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}

// MarkTriggered stamps the automation's last trigger time.
func (r *AutomationRepo) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE automations SET last_triggered_at = ? WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark automation %s triggered: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("automation %s: %w", id, model.ErrNotFound)
	}
	return nil
}
