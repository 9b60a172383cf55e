// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	tasks       *application.TaskService
	engine      *application.OrchestrationEngine
	credentials *application.CredentialVault
	exec        *application.ExecutionService
	platforms   driven.PlatformStore
	automations driven.AutomationStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	tasks *application.TaskService,
	engine *application.OrchestrationEngine,
	credentials *application.CredentialVault,
	exec *application.ExecutionService,
	platforms driven.PlatformStore,
	automations driven.AutomationStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		tasks:       tasks,
		engine:      engine,
		credentials: credentials,
		exec:        exec,
		platforms:   platforms,
		automations: automations,
		logger:      logger,
		now:         time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/tasks", h.SubmitTask)
	mux.HandleFunc("GET /api/v1/tasks", h.ListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.GetTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/retry", h.RetryTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/cancel", h.CancelTask)

	mux.HandleFunc("GET /api/v1/platforms", h.ListPlatforms)
	mux.HandleFunc("POST /api/v1/platforms", h.AddPlatform)
	mux.HandleFunc("PUT /api/v1/platforms/{id}/credentials", h.PutCredentials)
	mux.HandleFunc("DELETE /api/v1/platforms/{id}/credentials", h.DeleteCredentials)
	mux.HandleFunc("GET /api/v1/platforms/{id}/credentials/status", h.CredentialStatus)

	mux.HandleFunc("PUT /api/v1/automations/{id}", h.SaveAutomation)
	mux.HandleFunc("POST /api/v1/automations/{id}/trigger", h.TriggerAutomation)

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = bodyLimitMiddleware(maxBodyBytes, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// writeServiceError maps domain errors to HTTP statuses. Unclassified errors
// are logged and reported as 500 without details.
func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes the request body into v. An empty body leaves v
// unchanged when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// SubmitTask persists a task and, unless async=true, executes it immediately.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if r.URL.Query().Get("async") == "true" {
		task, err := h.tasks.Submit(r.Context(), req.toPayload())
		if err != nil {
			h.writeServiceError(w, "failed to submit task", err)
			return
		}
		writeJSON(w, http.StatusAccepted, toTaskResponse(*task))
		return
	}

	task, result, err := h.tasks.SubmitAndExecute(r.Context(), req.toPayload())
	if err != nil {
		h.writeServiceError(w, "failed to execute task", err)
		return
	}

	writeJSON(w, http.StatusOK, ExecutionResponse{
		Success:  result.Success,
		Metadata: result.Metadata,
		Error:    result.Error,
		TaskID:   task.ID,
		Status:   string(task.Status),
	})
}

// ListTasks returns one page of tasks matching the query filters.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.tasks.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "failed to list tasks", err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskPageResponse(page))
}

// GetTask returns a single task by id.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "failed to get task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(*task))
}

// RetryTask moves a FAILED task back to PENDING.
func (h *Handler) RetryTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "failed to retry task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(*task))
}

// CancelTask cancels a PENDING or IN_PROGRESS task.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := h.tasks.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.writeServiceError(w, "failed to cancel task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(*task))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   formatTime(h.now()),
	})
}

// parseTaskFilter reads the listing filters from the query string. Dates
// accept RFC 3339 timestamps or plain YYYY-MM-DD days; a plain "to" day
// covers the whole day.
func parseTaskFilter(r *http.Request) (model.TaskFilter, error) {
	q := r.URL.Query()
	filter := model.TaskFilter{
		Status:     model.TaskStatus(q.Get("status")),
		PlatformID: q.Get("platform"),
		TaskType:   model.TaskType(q.Get("task_type")),
		Sort:       model.TaskSort(q.Get("sort")),
	}

	var err error
	if filter.From, err = parseDate(q.Get("from"), false); err != nil {
		return model.TaskFilter{}, errors.New("invalid from date")
	}
	if filter.To, err = parseDate(q.Get("to"), true); err != nil {
		return model.TaskFilter{}, errors.New("invalid to date")
	}
	if filter.Limit, err = parseInt(q.Get("limit")); err != nil {
		return model.TaskFilter{}, errors.New("invalid limit")
	}
	if filter.Offset, err = parseInt(q.Get("offset")); err != nil {
		return model.TaskFilter{}, errors.New("invalid offset")
	}
	return filter, nil
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}
