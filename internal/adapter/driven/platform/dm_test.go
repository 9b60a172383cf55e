package platform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/platform"
	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// fakeDMServer emulates the subset of a DM platform API the adapter uses.
type fakeDMServer struct {
	mu       sync.Mutex
	messages map[string][]map[string]any
	pricing  map[string]any
	cookies  []string
}

func newDMServer(t *testing.T) (*fakeDMServer, *httptest.Server) {
	t.Helper()
	f := &fakeDMServer{messages: make(map[string][]map[string]any)}

	mux := http.NewServeMux()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.cookies = append(f.cookies, r.Header.Get("Cookie"))
			f.mu.Unlock()
			if r.Header.Get("Cookie") != "sess=good" && r.Header.Get("Authorization") != "good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /users/me", authed(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "acct-1", "username": "creator"})
	}))
	mux.HandleFunc("POST /chats/{recipient}/messages", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		recipient := r.PathValue("recipient")
		f.mu.Lock()
		f.messages[recipient] = append(f.messages[recipient], body)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "m-" + recipient})
	}))
	mux.HandleFunc("PUT /users/me/pricing", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.pricing = body
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(body)
	}))
	mux.HandleFunc("GET /users/me/stats", authed(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"subscribers": 120, "earnings": 950.5})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestDMAdapter(t *testing.T, pt model.PlatformType, srv *httptest.Server) *platform.DMAdapter {
	t.Helper()
	a, err := platform.NewDMAdapter(pt, config.Endpoint{BaseURL: srv.URL, UserAgent: "creatorhub-test"}, srv.Client())
	require.NoError(t, err)
	return a
}

func initDM(t *testing.T, a *platform.DMAdapter, session string) bool {
	t.Helper()
	ok, err := a.Initialize(context.Background(), model.AdapterConfig{
		PlatformID:  "of-1",
		ClientID:    "client-a",
		Credentials: map[string]string{"session_id": session, "user_agent": "Mozilla/5.0"},
	})
	require.NoError(t, err)
	return ok
}

func TestDMAdapter_InitializeBindsSession(t *testing.T) {
	_, srv := newDMServer(t)
	a := newTestDMAdapter(t, model.PlatformOnlyFans, srv)

	assert.False(t, a.IsInitialized("of-1", "client-a"))
	assert.False(t, initDM(t, a, "expired"))
	assert.False(t, a.IsInitialized("of-1", "client-a"))

	assert.True(t, initDM(t, a, "good"))
	assert.True(t, a.IsInitialized("of-1", "client-a"))
	assert.False(t, a.IsInitialized("of-1", "client-b"))

	a.Invalidate("of-1")
	assert.False(t, a.IsInitialized("of-1", "client-a"))
}

func TestDMAdapter_SendDM(t *testing.T) {
	fake, srv := newDMServer(t)
	a := newTestDMAdapter(t, model.PlatformOnlyFans, srv)
	require.True(t, initDM(t, a, "good"))

	res, err := a.Execute(context.Background(), model.TaskPayload{
		PlatformID: "of-1",
		ClientID:   "client-a",
		TaskType:   model.TaskSendDM,
		Content:    "<b>Thanks</b> for subscribing & welcome!",
		Recipients: []string{"fan-1", "fan-2"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"m-fan-1", "m-fan-2"}, res.Metadata["message_ids"])
	assert.Equal(t, 2, res.Metadata["sent"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.messages["fan-1"], 1)
	assert.Equal(t, "Thanks for subscribing & welcome!", fake.messages["fan-1"][0]["text"])
}

func TestDMAdapter_SendDMValidation(t *testing.T) {
	_, srv := newDMServer(t)
	a := newTestDMAdapter(t, model.PlatformOnlyFans, srv)
	require.True(t, initDM(t, a, "good"))

	res, err := a.Execute(context.Background(), model.TaskPayload{
		PlatformID: "of-1", ClientID: "client-a", TaskType: model.TaskSendDM, Content: "hi",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "message has no recipients", res.Error)
}

func TestDMAdapter_CancelledBeforeSend(t *testing.T) {
	fake, srv := newDMServer(t)
	a := newTestDMAdapter(t, model.PlatformOnlyFans, srv)
	require.True(t, initDM(t, a, "good"))

	ctx := model.WithCancelCheck(context.Background(), func(context.Context) bool { return true })
	_, err := a.Execute(ctx, model.TaskPayload{
		PlatformID: "of-1", ClientID: "client-a", TaskType: model.TaskSendDM, Content: "hi", Recipients: []string{"fan-1"},
	})
	assert.ErrorIs(t, err, model.ErrTaskCancelled)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.messages)
}

func TestDMAdapter_UpdatePricingAndMetrics(t *testing.T) {
	fake, srv := newDMServer(t)
	a := newTestDMAdapter(t, model.PlatformOnlyFans, srv)
	require.True(t, initDM(t, a, "good"))
	ctx := context.Background()

	res, err := a.Execute(ctx, model.TaskPayload{
		PlatformID: "of-1", ClientID: "client-a", TaskType: model.TaskUpdatePricing,
		PricingData: map[string]any{"subscription_price": 9.99},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	fake.mu.Lock()
	assert.Equal(t, 9.99, fake.pricing["subscription_price"])
	fake.mu.Unlock()

	res, err = a.Execute(ctx, model.TaskPayload{PlatformID: "of-1", ClientID: "client-a", TaskType: model.TaskFetchMetrics})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "acct-1", res.Metadata["account_id"])
	assert.EqualValues(t, 120, res.Metadata["subscribers"])
}

func TestDMAdapter_RejectsUnsupportedAndUnboundTasks(t *testing.T) {
	_, srv := newDMServer(t)
	a := newTestDMAdapter(t, model.PlatformFansly, srv)
	ctx := context.Background()

	_, err := a.Execute(ctx, model.TaskPayload{PlatformID: "f-1", ClientID: "c", TaskType: model.TaskPostContent})
	assert.ErrorIs(t, err, model.ErrUnsupportedTask)

	_, err = a.Execute(ctx, model.TaskPayload{PlatformID: "f-1", ClientID: "c", TaskType: model.TaskFetchMetrics})
	assert.ErrorIs(t, err, model.ErrAdapterInit)
}

func TestDMAdapter_FanslyUsesAuthorizationHeader(t *testing.T) {
	_, srv := newDMServer(t)
	a := newTestDMAdapter(t, model.PlatformFansly, srv)

	assert.True(t, initDM(t, a, "good"))
	assert.Equal(t, model.PlatformFansly, a.Type())
	assert.Equal(t, []string{"session_id", "user_agent"}, a.CredentialRequirements())
}

func TestNewDMAdapter_RejectsOtherKinds(t *testing.T) {
	_, err := platform.NewDMAdapter(model.PlatformPatreon, config.Endpoint{BaseURL: "http://x"}, nil)
	assert.Error(t, err)
}
