package platform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/platform"
	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

type fakePatreon struct {
	mu    sync.Mutex
	posts []map[string]any
	query string
}

func newPatreonServer(t *testing.T) (*fakePatreon, *httptest.Server) {
	t.Helper()
	f := &fakePatreon{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /campaigns/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.query = r.URL.RawQuery
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":         r.PathValue("id"),
				"type":       "campaign",
				"attributes": map[string]any{"patron_count": 42, "paid_member_count": 30},
			},
		})
	})
	mux.HandleFunc("POST /campaigns/{id}/posts", func(w http.ResponseWriter, r *http.Request) {
		var doc struct {
			Data struct {
				Attributes map[string]any `json:"attributes"`
			} `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.mu.Lock()
		f.posts = append(f.posts, doc.Data.Attributes)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":         "post-1",
				"type":       "post",
				"attributes": map[string]any{"url": "https://patreon.example/posts/post-1"},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestPostingAdapter(t *testing.T, srv *httptest.Server, token string) *platform.PostingAdapter {
	t.Helper()
	a, err := platform.NewPostingAdapter(model.PlatformPatreon, config.Endpoint{BaseURL: srv.URL + "/"}, srv.Client())
	require.NoError(t, err)

	ok, err := a.Initialize(context.Background(), model.AdapterConfig{
		PlatformID:  "patreon-1",
		ClientID:    "client-a",
		Credentials: map[string]string{"access_token": token, "campaign_id": "camp-9"},
	})
	require.NoError(t, err)
	require.Equal(t, token == "tok", ok)
	return a
}

func TestPostingAdapter_InitializeRejectsBadToken(t *testing.T) {
	_, srv := newPatreonServer(t)
	a := newTestPostingAdapter(t, srv, "wrong")
	assert.False(t, a.IsInitialized("patreon-1", "client-a"))
}

func TestPostingAdapter_PostContentRendersMarkdown(t *testing.T) {
	fake, srv := newPatreonServer(t)
	a := newTestPostingAdapter(t, srv, "tok")

	res, err := a.Execute(context.Background(), model.TaskPayload{
		PlatformID: "patreon-1",
		ClientID:   "client-a",
		TaskType:   model.TaskPostContent,
		Content:    "# New drop\n\nOut **now**<script>alert(1)</script>",
		MediaURLs:  []string{"https://cdn.example/a.jpg"},
		Params:     map[string]string{"title": "New drop", "tier": "gold"},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "post-1", res.Metadata["post_id"])
	assert.Equal(t, "camp-9", res.Metadata["campaign_id"])
	assert.Equal(t, "https://patreon.example/posts/post-1", res.Metadata["url"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.posts, 1)
	body := fake.posts[0]["content"].(string)
	assert.Contains(t, body, "<h1")
	assert.Contains(t, body, "<strong>now</strong>")
	assert.NotContains(t, body, "<script>")
	assert.Equal(t, "New drop", fake.posts[0]["title"])
	assert.Equal(t, "gold", fake.posts[0]["tier"])
	assert.NotContains(t, fake.posts[0], "scheduled_for")
}

func TestPostingAdapter_SchedulePost(t *testing.T) {
	fake, srv := newPatreonServer(t)
	a := newTestPostingAdapter(t, srv, "tok")
	ctx := context.Background()

	res, err := a.Execute(ctx, model.TaskPayload{
		PlatformID: "patreon-1", ClientID: "client-a", TaskType: model.TaskSchedulePost, Content: "later",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "scheduled post has no scheduled time", res.Error)

	past := time.Now().Add(-time.Hour)
	res, err = a.Execute(ctx, model.TaskPayload{
		PlatformID: "patreon-1", ClientID: "client-a", TaskType: model.TaskSchedulePost, Content: "later", ScheduledFor: &past,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)

	when := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	res, err = a.Execute(ctx, model.TaskPayload{
		PlatformID: "patreon-1", ClientID: "client-a", TaskType: model.TaskSchedulePost, Content: "later", ScheduledFor: &when,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, when.Format(time.RFC3339), res.Metadata["scheduled_for"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.posts, 1)
	assert.Equal(t, when.Format(time.RFC3339), fake.posts[0]["scheduled_for"])
}

func TestPostingAdapter_FetchMetrics(t *testing.T) {
	fake, srv := newPatreonServer(t)
	a := newTestPostingAdapter(t, srv, "tok")

	res, err := a.Execute(context.Background(), model.TaskPayload{
		PlatformID: "patreon-1", ClientID: "client-a", TaskType: model.TaskFetchMetrics,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.EqualValues(t, 42, res.Metadata["patron_count"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.query, "patron_count")
}

func TestPostingAdapter_RejectsDM(t *testing.T) {
	_, srv := newPatreonServer(t)
	a := newTestPostingAdapter(t, srv, "tok")

	_, err := a.Execute(context.Background(), model.TaskPayload{
		PlatformID: "patreon-1", ClientID: "client-a", TaskType: model.TaskSendDM,
	})
	assert.ErrorIs(t, err, model.ErrUnsupportedTask)
}

func TestPostingAdapter_CancelledBeforePublish(t *testing.T) {
	fake, srv := newPatreonServer(t)
	a := newTestPostingAdapter(t, srv, "tok")

	ctx := model.WithCancelCheck(context.Background(), func(context.Context) bool { return true })
	_, err := a.Execute(ctx, model.TaskPayload{
		PlatformID: "patreon-1", ClientID: "client-a", TaskType: model.TaskPostContent, Content: "x",
	})
	assert.ErrorIs(t, err, model.ErrTaskCancelled)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.posts)
}
