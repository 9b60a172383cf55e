package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// TaskRequest is the JSON body for the submit task endpoint.
type TaskRequest struct {
	PlatformID   string            `json:"platform_id"`
	ClientID     string            `json:"client_id"`
	TaskType     string            `json:"task_type"`
	Content      string            `json:"content"`
	MediaURLs    []string          `json:"media_urls"`
	Recipients   []string          `json:"recipients"`
	PricingData  map[string]any    `json:"pricing_data"`
	ScheduledFor *time.Time        `json:"scheduled_for"`
	Priority     string            `json:"priority"`
	Params       map[string]string `json:"params"`
}

func (r TaskRequest) toPayload() model.TaskPayload {
	return model.TaskPayload{
		PlatformID:   r.PlatformID,
		ClientID:     r.ClientID,
		TaskType:     model.TaskType(r.TaskType),
		Content:      r.Content,
		MediaURLs:    r.MediaURLs,
		Recipients:   r.Recipients,
		PricingData:  r.PricingData,
		ScheduledFor: r.ScheduledFor,
		Priority:     model.Priority(r.Priority),
		Params:       r.Params,
	}
}

// ExecutionResponse is the outcome of a synchronously executed task.
type ExecutionResponse struct {
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	TaskID   string         `json:"task_id"`
	Status   string         `json:"status"`
}

// CancelRequest is the optional JSON body for the cancel task endpoint.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// ResultResponse is the JSON representation of a stored task outcome.
type ResultResponse struct {
	Kind     string         `json:"kind"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	At       string         `json:"at,omitempty"`
}

// TaskResponse is the JSON representation of an execution task.
type TaskResponse struct {
	ID           string          `json:"id"`
	PlatformID   string          `json:"platform_id"`
	ClientID     string          `json:"client_id"`
	TaskType     string          `json:"task_type"`
	Status       string          `json:"status"`
	Priority     string          `json:"priority"`
	Result       *ResultResponse `json:"result"`
	RetryCount   int             `json:"retry_count"`
	AutomationID string          `json:"automation_id,omitempty"`
	ScheduledFor string          `json:"scheduled_for,omitempty"`
	LastRetryAt  string          `json:"last_retry_at,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// SummaryResponse counts tasks per status.
type SummaryResponse struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// TaskPageResponse is one page of a task listing.
type TaskPageResponse struct {
	Tasks   []TaskResponse  `json:"tasks"`
	Summary SummaryResponse `json:"summary"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// PlatformRequest is the JSON body for the add platform endpoint.
type PlatformRequest struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
}

// PlatformResponse is the JSON representation of a connected platform.
type PlatformResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	ClientID  string `json:"client_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CredentialStatusResponse reports which credential fields are stored for a
// platform. Values are never returned.
type CredentialStatusResponse struct {
	PlatformID string          `json:"platform_id"`
	Configured bool            `json:"configured"`
	Valid      bool            `json:"valid"`
	Fields     map[string]bool `json:"fields"`
	Missing    []string        `json:"missing"`
}

// AutomationRequest is the JSON body for the save automation endpoint.
type AutomationRequest struct {
	Name        string                   `json:"name"`
	TriggerType string                   `json:"trigger_type"`
	Conditions  json.RawMessage          `json:"conditions"`
	Actions     []model.AutomationAction `json:"actions"`
	IsActive    bool                     `json:"is_active"`
}

// TriggerResponse lists the tasks submitted by an automation trigger.
type TriggerResponse struct {
	AutomationID string   `json:"automation_id"`
	TaskIDs      []string `json:"task_ids"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func toResultResponse(r model.TaskResult) *ResultResponse {
	switch v := r.(type) {
	case model.Success:
		return &ResultResponse{Kind: string(v.Kind()), Metadata: v.Metadata}
	case model.Failure:
		return &ResultResponse{Kind: string(v.Kind()), Error: v.Error}
	case model.Cancelled:
		return &ResultResponse{Kind: string(v.Kind()), Reason: v.Reason, At: formatTime(v.At)}
	default:
		return nil
	}
}

// toTaskResponse converts a domain ExecutionTask to its JSON response representation.
func toTaskResponse(t model.ExecutionTask) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		PlatformID:   t.PlatformID,
		ClientID:     t.ClientID,
		TaskType:     string(t.TaskType),
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Result:       toResultResponse(t.Result),
		RetryCount:   t.RetryCount,
		AutomationID: t.AutomationID,
		ScheduledFor: formatOptionalTime(t.ScheduledFor),
		LastRetryAt:  formatOptionalTime(t.LastRetryAt),
		CreatedAt:    formatTime(t.CreatedAt),
		UpdatedAt:    formatTime(t.UpdatedAt),
	}
}

func toTaskPageResponse(p model.TaskPage) TaskPageResponse {
	tasks := make([]TaskResponse, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		tasks = append(tasks, toTaskResponse(t))
	}
	return TaskPageResponse{
		Tasks: tasks,
		Summary: SummaryResponse{
			Pending:    p.Summary.Pending,
			InProgress: p.Summary.InProgress,
			Completed:  p.Summary.Completed,
			Failed:     p.Summary.Failed,
			Cancelled:  p.Summary.Cancelled,
		},
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}

func toPlatformResponse(p model.Platform) PlatformResponse {
	return PlatformResponse{
		ID:        p.ID,
		Type:      string(p.Type),
		ClientID:  p.ClientID,
		Name:      p.Name,
		CreatedAt: formatTime(p.CreatedAt),
	}
}
