package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/creatorhub/internal/adapter/driving/http"
	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/vault"
)

// --- Fake adapter ---

// stubAdapter succeeds every task and keeps one session per platform.
type stubAdapter struct {
	platformType model.PlatformType

	mu       sync.Mutex
	sessions map[string]bool
}

func (a *stubAdapter) Type() model.PlatformType { return a.platformType }

func (a *stubAdapter) Initialize(_ context.Context, cfg model.AdapterConfig) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[cfg.PlatformID] = true
	return true, nil
}

func (a *stubAdapter) IsInitialized(platformID, _ string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[platformID]
}

func (a *stubAdapter) Invalidate(platformID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, platformID)
}

func (a *stubAdapter) Execute(_ context.Context, task model.TaskPayload) (model.ExecutionResult, error) {
	return model.Succeeded(map[string]any{"sent": len(task.Recipients)}), nil
}

func (a *stubAdapter) CredentialRequirements() []string {
	return model.RequiredCredentialFields(a.platformType)
}

func (a *stubAdapter) SupportedTasks() []model.TaskType {
	return []model.TaskType{model.TaskSendDM}
}

// --- Test setup ---

type testEnv struct {
	server      *httptest.Server
	adapter     *stubAdapter
	automations *sqlite.AutomationRepo
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "creatorhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	key, err := vault.ParseKey(strings.Repeat("ab", 32))
	require.NoError(t, err)
	cipher, err := vault.NewCipher(key)
	require.NoError(t, err)

	platforms := sqlite.NewPlatformRepo(db)
	automations := sqlite.NewAutomationRepo(db)
	credentials := application.NewCredentialVault(cipher, sqlite.NewCredentialRepo(db))

	adapter := &stubAdapter{platformType: model.PlatformOnlyFans, sessions: map[string]bool{}}
	reg := application.NewRegistry()
	reg.Register(adapter)

	exec := application.NewExecutionService(platforms, reg, credentials, time.Second)
	tasks := application.NewTaskService(sqlite.NewTaskRepo(db), platforms, exec)
	engine := application.NewOrchestrationEngine(automations, tasks)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := httphandler.NewHandler(tasks, engine, credentials, exec, platforms, automations, logger)

	srv := httptest.NewServer(httphandler.NewServeMux(h, logger))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, adapter: adapter, automations: automations}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) addPlatform(t *testing.T, id string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/platforms", `{"id":"`+id+`","type":"onlyfans","name":"Main"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (e *testEnv) putCredentials(t *testing.T, id string) {
	t.Helper()
	resp := e.do(t, http.MethodPut, "/api/v1/platforms/"+id+"/credentials", `{"session_id":"sess-123","user_agent":"Mozilla/5.0"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

const sendDMBody = `{"platform_id":"of-1","task_type":"SEND_DM","content":"hi","recipients":["fan-1","fan-2"]}`

// --- Tests ---

func TestHealth(t *testing.T) {
	env := setupTest(t)

	resp := env.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	body := decode[httphandler.HealthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
}

func TestSubmitTask_ExecutesSynchronously(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")
	env.putCredentials(t, "of-1")

	resp := env.do(t, http.MethodPost, "/api/v1/tasks", sendDMBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[httphandler.ExecutionResponse](t, resp)
	assert.True(t, body.Success)
	assert.EqualValues(t, 2, body.Metadata["sent"])
	assert.Equal(t, "COMPLETED", body.Status)
	require.NotEmpty(t, body.TaskID)

	task := decode[httphandler.TaskResponse](t, env.do(t, http.MethodGet, "/api/v1/tasks/"+body.TaskID, ""))
	assert.Equal(t, "COMPLETED", task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, "success", task.Result.Kind)
	assert.Equal(t, "of-1", task.ClientID)
}

func TestSubmitTask_MissingCredentialsFails(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")

	resp := env.do(t, http.MethodPost, "/api/v1/tasks", sendDMBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[httphandler.ExecutionResponse](t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, "Missing required credentials: session_id, user_agent", body.Error)
	assert.Equal(t, "FAILED", body.Status)
	assert.False(t, env.adapter.IsInitialized("of-1", "of-1"))
}

func TestSubmitTask_Rejections(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{`, http.StatusBadRequest},
		{"unknown task type", `{"platform_id":"of-1","task_type":"DANCE"}`, http.StatusBadRequest},
		{"missing platform", `{"task_type":"SEND_DM"}`, http.StatusBadRequest},
		{"unknown platform", `{"platform_id":"nope","task_type":"SEND_DM"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/tasks", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestTaskLifecycleEndpoints(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")

	resp := env.do(t, http.MethodPost, "/api/v1/tasks?async=true", sendDMBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	pending := decode[httphandler.TaskResponse](t, resp)
	assert.Equal(t, "PENDING", pending.Status)
	assert.Nil(t, pending.Result)

	// Retry is only legal from FAILED.
	resp = env.do(t, http.MethodPost, "/api/v1/tasks/"+pending.ID+"/retry", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/tasks/"+pending.ID+"/cancel", `{"reason":"user request"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[httphandler.TaskResponse](t, resp)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	require.NotNil(t, cancelled.Result)
	assert.Equal(t, "cancelled", cancelled.Result.Kind)
	assert.Equal(t, "user request", cancelled.Result.Reason)

	resp = env.do(t, http.MethodPost, "/api/v1/tasks/"+pending.ID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/v1/tasks/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRetryFailedTask(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")

	failed := decode[httphandler.ExecutionResponse](t, env.do(t, http.MethodPost, "/api/v1/tasks", sendDMBody))
	require.Equal(t, "FAILED", failed.Status)

	resp := env.do(t, http.MethodPost, "/api/v1/tasks/"+failed.TaskID+"/retry", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	task := decode[httphandler.TaskResponse](t, resp)
	assert.Equal(t, "PENDING", task.Status)
	assert.Equal(t, 1, task.RetryCount)
	assert.Nil(t, task.Result)
	assert.NotEmpty(t, task.LastRetryAt)
}

func TestListTasks(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")
	env.addPlatform(t, "of-2")

	env.do(t, http.MethodPost, "/api/v1/tasks", sendDMBody) // FAILED, no credentials
	env.do(t, http.MethodPost, "/api/v1/tasks?async=true", sendDMBody)
	env.do(t, http.MethodPost, "/api/v1/tasks?async=true", `{"platform_id":"of-2","task_type":"SEND_DM"}`)

	resp := env.do(t, http.MethodGet, "/api/v1/tasks?platform=of-1&status=PENDING", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[httphandler.TaskPageResponse](t, resp)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, "PENDING", page.Tasks[0].Status)
	assert.Equal(t, 1, page.Summary.Pending)
	assert.Equal(t, 1, page.Summary.Failed)
	assert.Equal(t, 50, page.Limit)

	page = decode[httphandler.TaskPageResponse](t, env.do(t, http.MethodGet, "/api/v1/tasks?limit=1", ""))
	assert.Len(t, page.Tasks, 1)
	assert.Equal(t, 2, page.Summary.Pending)
	assert.Equal(t, 1, page.Limit)

	page = decode[httphandler.TaskPageResponse](t, env.do(t, http.MethodGet, "/api/v1/tasks?to=2000-01-01", ""))
	assert.Empty(t, page.Tasks)

	for _, q := range []string{"limit=ten", "offset=-1", "status=DONE", "sort=name", "from=yesterday"} {
		resp := env.do(t, http.MethodGet, "/api/v1/tasks?"+q, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestPlatformEndpoints(t *testing.T) {
	env := setupTest(t)

	env.addPlatform(t, "of-1")
	resp := env.do(t, http.MethodPost, "/api/v1/platforms", `{"id":"of-1","type":"onlyfans"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/platforms", `{"type":"myspace"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/platforms", `{"type":"GitHub","client_id":"acme"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[httphandler.PlatformResponse](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "github", created.Type)
	assert.Equal(t, "acme", created.ClientID)

	list := decode[[]httphandler.PlatformResponse](t, env.do(t, http.MethodGet, "/api/v1/platforms", ""))
	assert.Len(t, list, 2)
}

func TestCredentialEndpoints(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")

	status := decode[httphandler.CredentialStatusResponse](t, env.do(t, http.MethodGet, "/api/v1/platforms/of-1/credentials/status", ""))
	assert.False(t, status.Configured)
	assert.False(t, status.Valid)
	assert.Equal(t, []string{"session_id", "user_agent"}, status.Missing)

	resp := env.do(t, http.MethodPut, "/api/v1/platforms/of-1/credentials", `{"session_id":"sess-123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status = decode[httphandler.CredentialStatusResponse](t, resp)
	assert.True(t, status.Configured)
	assert.False(t, status.Valid)
	assert.Equal(t, []string{"user_agent"}, status.Missing)

	env.putCredentials(t, "of-1")
	resp = env.do(t, http.MethodGet, "/api/v1/platforms/of-1/credentials/status", "")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sess-123")
	assert.Contains(t, string(raw), `"valid":true`)

	resp = env.do(t, http.MethodDelete, "/api/v1/platforms/of-1/credentials", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	status = decode[httphandler.CredentialStatusResponse](t, env.do(t, http.MethodGet, "/api/v1/platforms/of-1/credentials/status", ""))
	assert.False(t, status.Configured)

	resp = env.do(t, http.MethodPut, "/api/v1/platforms/nope/credentials", `{"session_id":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodPut, "/api/v1/platforms/of-1/credentials", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPutCredentials_DropsBoundSession(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")
	env.putCredentials(t, "of-1")

	body := decode[httphandler.ExecutionResponse](t, env.do(t, http.MethodPost, "/api/v1/tasks", sendDMBody))
	require.True(t, body.Success)
	require.True(t, env.adapter.IsInitialized("of-1", "of-1"))

	env.putCredentials(t, "of-1")
	assert.False(t, env.adapter.IsInitialized("of-1", "of-1"))
}

func TestAutomationEndpoints(t *testing.T) {
	env := setupTest(t)
	env.addPlatform(t, "of-1")

	resp := env.do(t, http.MethodPut, "/api/v1/automations/welcome", `{
		"name": "Welcome",
		"is_active": true,
		"actions": [
			{"type": "SEND_DM", "platform": "of-1", "params": {"content": "hi", "recipient": "fan-1"}},
			{"type": "SEND_DM", "platform": "of-1", "priority": "high"}
		]
	}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/automations/welcome/trigger", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trig := decode[httphandler.TriggerResponse](t, resp)
	assert.Equal(t, "welcome", trig.AutomationID)
	require.Len(t, trig.TaskIDs, 2)

	task := decode[httphandler.TaskResponse](t, env.do(t, http.MethodGet, "/api/v1/tasks/"+trig.TaskIDs[0], ""))
	assert.Equal(t, "welcome", task.AutomationID)
	assert.Equal(t, "PENDING", task.Status)

	a, err := env.automations.Get(context.Background(), "welcome")
	require.NoError(t, err)
	require.NotNil(t, a.LastTriggeredAt)

	resp = env.do(t, http.MethodPut, "/api/v1/automations/paused", `{"name":"Paused","actions":[{"type":"SEND_DM","platform":"of-1"}]}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/v1/automations/paused/trigger", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/automations/unknown/trigger", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/v1/automations/bad", `{"name":"Bad","actions":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
