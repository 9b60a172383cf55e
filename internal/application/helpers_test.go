package application_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/vault"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// stores bundles SQLite-backed repositories on a throwaway database file.
type stores struct {
	db          *sqlite.DB
	tasks       *sqlite.TaskRepo
	platforms   *sqlite.PlatformRepo
	credentials *sqlite.CredentialRepo
	automations *sqlite.AutomationRepo
	jobs        *sqlite.JobRepo
}

func newStores(t *testing.T) *stores {
	t.Helper()

	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "creatorhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	return &stores{
		db:          db,
		tasks:       sqlite.NewTaskRepo(db),
		platforms:   sqlite.NewPlatformRepo(db),
		credentials: sqlite.NewCredentialRepo(db),
		automations: sqlite.NewAutomationRepo(db),
		jobs:        sqlite.NewJobRepo(db),
	}
}

func (s *stores) addPlatform(t *testing.T, id string, pt model.PlatformType) {
	t.Helper()
	require.NoError(t, s.platforms.Add(context.Background(), model.Platform{
		ID:        id,
		Type:      pt,
		ClientID:  "client-" + id,
		Name:      id,
		CreatedAt: time.Now(),
	}))
}

func newTestVault(t *testing.T, s *stores) *application.CredentialVault {
	t.Helper()
	key, err := vault.ParseKey(testKeyHex)
	require.NoError(t, err)
	c, err := vault.NewCipher(key)
	require.NoError(t, err)
	return application.NewCredentialVault(c, s.credentials)
}

// fakeAdapter is a scriptable PlatformAdapter that keeps one session per
// (platformID, clientID) and records every Initialize call.
type fakeAdapter struct {
	platformType model.PlatformType

	mu        sync.Mutex
	sessions  map[string]map[string]string
	initCalls []model.AdapterConfig
	execCalls []model.TaskPayload

	initOK   bool
	initErr  error
	initWait time.Duration
	onInit   func()
	execute  func(ctx context.Context, task model.TaskPayload) (model.ExecutionResult, error)
}

func newFakeAdapter(pt model.PlatformType) *fakeAdapter {
	return &fakeAdapter{
		platformType: pt,
		sessions:     make(map[string]map[string]string),
		initOK:       true,
		execute: func(_ context.Context, task model.TaskPayload) (model.ExecutionResult, error) {
			return model.Succeeded(map[string]any{"message_id": "msg-" + task.TaskID}), nil
		},
	}
}

func sessionID(platformID, clientID string) string { return platformID + "/" + clientID }

func (a *fakeAdapter) Type() model.PlatformType { return a.platformType }

func (a *fakeAdapter) Initialize(_ context.Context, cfg model.AdapterConfig) (bool, error) {
	if a.onInit != nil {
		a.onInit()
	}
	if a.initWait > 0 {
		time.Sleep(a.initWait)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.initCalls = append(a.initCalls, cfg)
	if a.initErr != nil || !a.initOK {
		return false, a.initErr
	}
	a.sessions[sessionID(cfg.PlatformID, cfg.ClientID)] = cfg.Credentials
	return true, nil
}

func (a *fakeAdapter) IsInitialized(platformID, clientID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[sessionID(platformID, clientID)]
	return ok
}

func (a *fakeAdapter) Invalidate(platformID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key := range a.sessions {
		if strings.HasPrefix(key, platformID+"/") {
			delete(a.sessions, key)
		}
	}
}

func (a *fakeAdapter) Execute(ctx context.Context, task model.TaskPayload) (model.ExecutionResult, error) {
	a.mu.Lock()
	a.execCalls = append(a.execCalls, task)
	a.mu.Unlock()
	return a.execute(ctx, task)
}

func (a *fakeAdapter) CredentialRequirements() []string {
	return model.RequiredCredentialFields(a.platformType)
}

func (a *fakeAdapter) SupportedTasks() []model.TaskType {
	return []model.TaskType{model.TaskSendDM, model.TaskFetchMetrics}
}

func (a *fakeAdapter) initCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.initCalls)
}

// fixture wires the services over real SQLite stores and one fake adapter per
// platform type.
type fixture struct {
	stores   *stores
	vault    *application.CredentialVault
	registry *application.Registry
	adapters map[model.PlatformType]*fakeAdapter
	exec     *application.ExecutionService
	tasks    *application.TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := newStores(t)
	v := newTestVault(t, s)
	reg := application.NewRegistry()
	adapters := make(map[model.PlatformType]*fakeAdapter)
	for _, pt := range model.PlatformTypes() {
		a := newFakeAdapter(pt)
		adapters[pt] = a
		reg.Register(a)
	}

	exec := application.NewExecutionService(s.platforms, reg, v, time.Second)
	return &fixture{
		stores:   s,
		vault:    v,
		registry: reg,
		adapters: adapters,
		exec:     exec,
		tasks:    application.NewTaskService(s.tasks, s.platforms, exec),
	}
}

func validDMCredentials() map[string]string {
	return map[string]string{
		model.FieldSessionID: "sess-123",
		model.FieldUserAgent: "Mozilla/5.0",
	}
}
