package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformAdapter = (*PostingAdapter)(nil)

var postingTasks = []model.TaskType{model.TaskPostContent, model.TaskSchedulePost, model.TaskFetchMetrics}

type postingSession struct {
	header     http.Header
	campaignID string
}

// PostingAdapter publishes content to membership platforms (Patreon) through
// their OAuth API. Post bodies are written in markdown and sent as sanitized
// HTML.
type PostingAdapter struct {
	platformType model.PlatformType
	api          *apiClient
	sessions     *sessions[postingSession]
	now          func() time.Time
}

// NewPostingAdapter creates a PostingAdapter for platformType. httpClient may be nil.
func NewPostingAdapter(platformType model.PlatformType, ep config.Endpoint, httpClient *http.Client) (*PostingAdapter, error) {
	if platformType.Kind() != model.KindPosting {
		return nil, fmt.Errorf("%s is not a posting platform", platformType)
	}
	api, err := newAPIClient(ep, httpClient)
	if err != nil {
		return nil, fmt.Errorf("%s adapter: %w", platformType, err)
	}
	return &PostingAdapter{
		platformType: platformType,
		api:          api,
		sessions:     newSessions[postingSession](),
		now:          time.Now,
	}, nil
}

func (a *PostingAdapter) Type() model.PlatformType { return a.platformType }

func (a *PostingAdapter) CredentialRequirements() []string {
	return model.RequiredCredentialFields(a.platformType)
}

func (a *PostingAdapter) SupportedTasks() []model.TaskType {
	return append([]model.TaskType(nil), postingTasks...)
}

func (a *PostingAdapter) IsInitialized(platformID, clientID string) bool {
	_, ok := a.sessions.get(platformID, clientID)
	return ok
}

// Invalidate drops the sessions of platformID.
func (a *PostingAdapter) Invalidate(platformID string) {
	a.sessions.drop(platformID)
}

// jsonAPIDoc is the JSON:API envelope used by the campaign and post endpoints.
type jsonAPIDoc struct {
	Data jsonAPIResource `json:"data"`
}

type jsonAPIResource struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (a *PostingAdapter) campaignPath(campaignID string) string {
	return "campaigns/" + url.PathEscape(campaignID)
}

// Initialize checks that the token can read the configured campaign.
func (a *PostingAdapter) Initialize(ctx context.Context, cfg model.AdapterConfig) (bool, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Credentials[model.FieldAccessToken])
	campaignID := cfg.Credentials[model.FieldCampaignID]

	var doc jsonAPIDoc
	if err := a.api.do(ctx, http.MethodGet, a.campaignPath(campaignID), header, nil, &doc); err != nil {
		if isUnauthorized(err) {
			slog.Warn("platform rejected token", "platform_type", a.platformType, "platform_id", cfg.PlatformID)
			return false, nil
		}
		return false, err
	}

	a.sessions.put(cfg.PlatformID, cfg.ClientID, postingSession{header: header, campaignID: campaignID})
	return true, nil
}

// Execute implements driven.PlatformAdapter.
func (a *PostingAdapter) Execute(ctx context.Context, task model.TaskPayload) (model.ExecutionResult, error) {
	if !supports(postingTasks, task.TaskType) {
		return model.ExecutionResult{}, fmt.Errorf("%w: %s on %s", model.ErrUnsupportedTask, task.TaskType, a.platformType)
	}
	sess, err := session(a.sessions, task)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	switch task.TaskType {
	case model.TaskPostContent:
		return a.publish(ctx, sess, task, nil)
	case model.TaskSchedulePost:
		if task.ScheduledFor == nil {
			return model.Failed("scheduled post has no scheduled time"), nil
		}
		if !task.ScheduledFor.After(a.now()) {
			return model.Failed("scheduled time is in the past"), nil
		}
		return a.publish(ctx, sess, task, task.ScheduledFor)
	default:
		return a.fetchMetrics(ctx, sess)
	}
}

func (a *PostingAdapter) publish(ctx context.Context, sess postingSession, task model.TaskPayload, publishAt *time.Time) (model.ExecutionResult, error) {
	body := renderPostBody(task.Content)
	if body == "" {
		return model.Failed("post has no content"), nil
	}

	attrs := map[string]any{
		"title":   task.Params["title"],
		"content": body,
	}
	if len(task.MediaURLs) > 0 {
		attrs["image_urls"] = task.MediaURLs
	}
	if tier := task.Params["tier"]; tier != "" {
		attrs["tier"] = tier
	}
	if publishAt != nil {
		attrs["scheduled_for"] = publishAt.UTC().Format(time.RFC3339)
	}

	if err := beforeMutation(ctx); err != nil {
		return model.ExecutionResult{}, err
	}

	var created jsonAPIDoc
	req := jsonAPIDoc{Data: jsonAPIResource{Type: "post", Attributes: attrs}}
	if err := a.api.do(ctx, http.MethodPost, a.campaignPath(sess.campaignID)+"/posts", sess.header, req, &created); err != nil {
		return model.ExecutionResult{}, err
	}

	meta := map[string]any{
		"post_id":     created.Data.ID,
		"campaign_id": sess.campaignID,
	}
	if u, ok := created.Data.Attributes["url"]; ok {
		meta["url"] = u
	}
	if publishAt != nil {
		meta["scheduled_for"] = publishAt.UTC().Format(time.RFC3339)
	}
	return model.Succeeded(meta), nil
}

func (a *PostingAdapter) fetchMetrics(ctx context.Context, sess postingSession) (model.ExecutionResult, error) {
	path := a.campaignPath(sess.campaignID) + "?fields%5Bcampaign%5D=patron_count,paid_member_count,creation_count"

	var doc jsonAPIDoc
	if err := a.api.do(ctx, http.MethodGet, path, sess.header, nil, &doc); err != nil {
		return model.ExecutionResult{}, err
	}

	meta := map[string]any{"campaign_id": sess.campaignID}
	for k, v := range doc.Data.Attributes {
		meta[k] = v
	}
	return model.Succeeded(meta), nil
}
