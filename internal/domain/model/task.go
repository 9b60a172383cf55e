package model

import "time"

// TaskType enumerates the actions an adapter can perform.
type TaskType string

const (
	TaskSendDM        TaskType = "SEND_DM"
	TaskPostContent   TaskType = "POST_CONTENT"
	TaskSchedulePost  TaskType = "SCHEDULE_POST"
	TaskFetchMetrics  TaskType = "FETCH_METRICS"
	TaskUpdatePricing TaskType = "UPDATE_PRICING"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskSendDM, TaskPostContent, TaskSchedulePost, TaskFetchMetrics, TaskUpdatePricing:
		return true
	default:
		return false
	}
}

// TaskStatus is the persisted lifecycle state of an ExecutionTask.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further automatic transition leaves s.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Priority is advisory ordering input for dispatch; it never preempts.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Normalize maps unknown or empty priorities to PriorityMedium.
func (p Priority) Normalize() Priority {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// Rank orders priorities for dispatch, lower first.
func (p Priority) Rank() int {
	switch p.Normalize() {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// TaskPayload is the transient description of work handed to an adapter.
type TaskPayload struct {
	TaskID       string            `json:"task_id,omitempty"`
	PlatformID   string            `json:"platform_id"`
	ClientID     string            `json:"client_id"`
	TaskType     TaskType          `json:"task_type"`
	Content      string            `json:"content,omitempty"`
	MediaURLs    []string          `json:"media_urls,omitempty"`
	Recipients   []string          `json:"recipients,omitempty"`
	PricingData  map[string]any    `json:"pricing_data,omitempty"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	Priority     Priority          `json:"priority,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
}

// ExecutionTask is the persisted record of a submitted task. Records are never
// deleted; they are retained for audit.
type ExecutionTask struct {
	ID           string
	PlatformID   string
	ClientID     string
	TaskType     TaskType
	Status       TaskStatus
	Priority     Priority
	Payload      TaskPayload
	Result       TaskResult
	RetryCount   int
	AutomationID string
	ScheduledFor *time.Time
	LastRetryAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrorMessage returns the stored failure message, or "" when the task has not failed.
func (t ExecutionTask) ErrorMessage() string {
	if f, ok := t.Result.(Failure); ok {
		return f.Error
	}
	return ""
}

// TaskSort selects an explicit ordering for task listings. The zero value
// keeps the default status-grouped order.
type TaskSort string

const (
	SortDefault       TaskSort = ""
	SortCreatedAsc    TaskSort = "created_at"
	SortCreatedDesc   TaskSort = "-created_at"
	SortUpdatedAsc    TaskSort = "updated_at"
	SortUpdatedDesc   TaskSort = "-updated_at"
	SortPriorityFirst TaskSort = "priority"
)

// Valid reports whether s is a supported sort key.
func (s TaskSort) Valid() bool {
	switch s {
	case SortDefault, SortCreatedAsc, SortCreatedDesc, SortUpdatedAsc, SortUpdatedDesc, SortPriorityFirst:
		return true
	default:
		return false
	}
}

// Paging limits for task listings.
const (
	DefaultTaskPageSize = 50
	MaxTaskPageSize     = 200
)

// TaskFilter narrows task listings. Zero-valued fields do not filter.
type TaskFilter struct {
	Status     TaskStatus
	PlatformID string
	TaskType   TaskType
	From       time.Time
	To         time.Time
	Sort       TaskSort
	Limit      int
	Offset     int
}

// Normalize clamps paging values to their allowed range.
func (f TaskFilter) Normalize() TaskFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultTaskPageSize
	}
	if f.Limit > MaxTaskPageSize {
		f.Limit = MaxTaskPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// TaskSummary counts tasks per status.
type TaskSummary struct {
	Pending    int
	InProgress int
	Completed  int
	Failed     int
	Cancelled  int
}

// Add increments the counter for status by n.
func (s *TaskSummary) Add(status TaskStatus, n int) {
	switch status {
	case TaskPending:
		s.Pending += n
	case TaskInProgress:
		s.InProgress += n
	case TaskCompleted:
		s.Completed += n
	case TaskFailed:
		s.Failed += n
	case TaskCancelled:
		s.Cancelled += n
	}
}

// TaskPage is one page of a filtered task listing.
type TaskPage struct {
	Tasks   []ExecutionTask
	Summary TaskSummary
	Limit   int
	Offset  int
}
