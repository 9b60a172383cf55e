package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TaskStore = (*TaskRepo)(nil)

const taskColumns = `id, platform_id, client_id, task_type, status, priority, payload,
	result_kind, result, retry_count, automation_id, scheduled_for, last_retry_at, created_at, updated_at`

// statusRank orders PENDING first, then IN_PROGRESS, then terminal states.
const statusRank = `CASE status WHEN 'PENDING' THEN 0 WHEN 'IN_PROGRESS' THEN 1 ELSE 2 END`

// priorityRank mirrors model.Priority.Rank; unknown values rank as medium.
var priorityRank = fmt.Sprintf(`CASE priority WHEN '%s' THEN %d WHEN '%s' THEN %d ELSE %d END`,
	model.PriorityHigh, model.PriorityHigh.Rank(),
	model.PriorityLow, model.PriorityLow.Rank(),
	model.PriorityMedium.Rank())

var taskOrderings = map[model.TaskSort]string{
	model.SortDefault:       statusRank + `, created_at DESC, id DESC`,
	model.SortCreatedAsc:    `created_at ASC, id ASC`,
	model.SortCreatedDesc:   `created_at DESC, id DESC`,
	model.SortUpdatedAsc:    `updated_at ASC, id ASC`,
	model.SortUpdatedDesc:   `updated_at DESC, id DESC`,
	model.SortPriorityFirst: statusRank + `, ` + priorityRank + `, created_at DESC, id DESC`,
}

// TaskRepo is the SQLite implementation of the TaskStore port interface.
type TaskRepo struct {
	db *DB
}

// NewTaskRepo creates a new TaskRepo backed by the given DB.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// storedResult is the JSON shape of the result column. result_kind selects
// which fields are meaningful.
type storedResult struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	At       *time.Time     `json:"at,omitempty"`
}

func encodeResult(r model.TaskResult) (string, string, error) {
	var stored storedResult
	switch v := r.(type) {
	case nil:
		return string(model.ResultNone), "", nil
	case model.Success:
		stored.Metadata = v.Metadata
	case model.Failure:
		stored.Error = v.Error
	case model.Cancelled:
		at := v.At.UTC()
		stored.Reason = v.Reason
		stored.At = &at
	default:
		return "", "", fmt.Errorf("unknown task result %T", r)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", "", fmt.Errorf("marshal task result: %w", err)
	}
	return string(r.Kind()), string(data), nil
}

func decodeResult(kind, raw string) (model.TaskResult, error) {
	if model.ResultKind(kind) == model.ResultNone {
		return nil, nil
	}

	var stored storedResult
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal task result: %w", err)
	}

	switch model.ResultKind(kind) {
	case model.ResultSuccess:
		if stored.Metadata == nil {
			stored.Metadata = map[string]any{}
		}
		return model.Success{Metadata: stored.Metadata}, nil
	case model.ResultFailure:
		return model.Failure{Error: stored.Error}, nil
	case model.ResultCancelled:
		c := model.Cancelled{Reason: stored.Reason}
		if stored.At != nil {
			c.At = stored.At.UTC()
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown result kind %q", kind)
	}
}

// Create inserts a new task.
func (r *TaskRepo) Create(ctx context.Context, t model.ExecutionTask) error {
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for task %s: %w", t.ID, err)
	}
	resultKind, result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}

	const query = `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Writer.ExecContext(ctx, query,
		t.ID,
		t.PlatformID,
		t.ClientID,
		string(t.TaskType),
		string(t.Status),
		string(t.Priority.Normalize()),
		string(payload),
		resultKind,
		result,
		t.RetryCount,
		t.AutomationID,
		formatNullableTime(t.ScheduledFor),
		formatNullableTime(t.LastRetryAt),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

// Get returns the task with the given id, or (nil, nil) if it does not exist.
func (r *TaskRepo) Get(ctx context.Context, id string) (*model.ExecutionTask, error) {
	return r.get(ctx, r.db.Reader, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *TaskRepo) get(ctx context.Context, q queryRower, id string) (*model.ExecutionTask, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	t, err := scanTask(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// Transition applies t as one conditional UPDATE guarded by the allowed
// starting statuses. When no row matches, the record is left untouched and
// the current status is reported in a *model.TransitionError.
func (r *TaskRepo) Transition(ctx context.Context, id string, t model.Transition) (*model.ExecutionTask, error) {
	if len(t.From) == 0 {
		return nil, fmt.Errorf("transition %q has no allowed source status", t.Action)
	}

	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(t.To), formatTime(t.At)}

	switch {
	case t.ClearResult:
		sets = append(sets, "result_kind = ''", "result = ''")
	case t.Result != nil:
		kind, raw, err := encodeResult(t.Result)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "result_kind = ?", "result = ?")
		args = append(args, kind, raw)
	}

	if t.CountRetry {
		sets = append(sets, "retry_count = retry_count + 1", "last_retry_at = ?")
		args = append(args, formatTime(t.At))
	}

	placeholders := make([]string, len(t.From))
	args = append(args, id)
	for i, s := range t.From {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") +
		` WHERE id = ? AND status IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s task %s: %w", t.Action, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}

	// Read back through the writer so the caller sees its own update.
	current, err := r.get(ctx, r.db.Writer, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	if affected == 0 {
		return nil, &model.TransitionError{
			TaskID:   id,
			Action:   t.Action,
			Current:  current.Status,
			Expected: t.From,
		}
	}
	return current, nil
}

// ListDue returns PENDING tasks whose scheduled time has passed, high priority
// first and oldest first within a priority.
func (r *TaskRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]model.ExecutionTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = 'PENDING' AND (scheduled_for IS NULL OR scheduled_for <= ?)
		ORDER BY ` + priorityRank + `, created_at ASC, id ASC LIMIT ?`

	return r.query(ctx, query, formatTime(now), limit)
}

// List returns one page of tasks matching filter.
func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter) ([]model.ExecutionTask, error) {
	filter = filter.Normalize()

	order, ok := taskOrderings[filter.Sort]
	if !ok {
		return nil, fmt.Errorf("unsupported sort %q: %w", filter.Sort, model.ErrInvalidInput)
	}

	where, args := taskWhere(filter, true)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	return r.query(ctx, query, args...)
}

// Summarize counts tasks per status for filter, ignoring its status field.
func (r *TaskRepo) Summarize(ctx context.Context, filter model.TaskFilter) (model.TaskSummary, error) {
	where, args := taskWhere(filter, false)
	query := `SELECT status, COUNT(*) FROM tasks` + where + ` GROUP BY status`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return model.TaskSummary{}, fmt.Errorf("summarize tasks: %w", err)
	}
	defer rows.Close()

	var summary model.TaskSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return model.TaskSummary{}, fmt.Errorf("scan task summary: %w", err)
		}
		summary.Add(model.TaskStatus(status), count)
	}
	if err := rows.Err(); err != nil {
		return model.TaskSummary{}, fmt.Errorf("iterate task summary: %w", err)
	}
	return summary, nil
}

func taskWhere(filter model.TaskFilter, withStatus bool) (string, []any) {
	var conds []string
	var args []any

	if withStatus && filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.PlatformID != "" {
		conds = append(conds, "platform_id = ?")
		args = append(args, filter.PlatformID)
	}
	if filter.TaskType != "" {
		conds = append(conds, "task_type = ?")
		args = append(args, string(filter.TaskType))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *TaskRepo) query(ctx context.Context, query string, args ...any) ([]model.ExecutionTask, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.ExecutionTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (model.ExecutionTask, error) {
	var (
		t                     model.ExecutionTask
		taskType, status      string
		priority, payload     string
		resultKind, result    string
		scheduledFor, retryAt sql.NullString
		createdAt, updatedAt  string
	)

	err := row.Scan(
		&t.ID, &t.PlatformID, &t.ClientID, &taskType, &status, &priority, &payload,
		&resultKind, &result, &t.RetryCount, &t.AutomationID, &scheduledFor, &retryAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.ExecutionTask{}, err
	}

	t.TaskType = model.TaskType(taskType)
	t.Status = model.TaskStatus(status)
	t.Priority = model.Priority(priority)

	if err := json.Unmarshal([]byte(payload), &t.Payload); err != nil {
		return model.ExecutionTask{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if t.Result, err = decodeResult(resultKind, result); err != nil {
		return model.ExecutionTask{}, err
	}
	if t.ScheduledFor, err = parseNullableTime(scheduledFor); err != nil {
		return model.ExecutionTask{}, fmt.Errorf("parse scheduled_for: %w", err)
	}
	if t.LastRetryAt, err = parseNullableTime(retryAt); err != nil {
		return model.ExecutionTask{}, fmt.Errorf("parse last_retry_at: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.ExecutionTask{}, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.ExecutionTask{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return t, nil
}
