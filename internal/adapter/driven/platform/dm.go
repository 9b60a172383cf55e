package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformAdapter = (*DMAdapter)(nil)

var dmTasks = []model.TaskType{model.TaskSendDM, model.TaskUpdatePricing, model.TaskFetchMetrics}

type dmSession struct {
	header    http.Header
	accountID string
}

// DMAdapter drives subscription platforms built around direct messaging
// (OnlyFans, Fansly). It authenticates with a browser session id and the
// user agent that session was created with.
type DMAdapter struct {
	platformType model.PlatformType
	api          *apiClient
	sessions     *sessions[dmSession]
}

// NewDMAdapter creates a DMAdapter for platformType. httpClient may be nil.
func NewDMAdapter(platformType model.PlatformType, ep config.Endpoint, httpClient *http.Client) (*DMAdapter, error) {
	if platformType.Kind() != model.KindDirectMessage {
		return nil, fmt.Errorf("%s is not a direct message platform", platformType)
	}
	api, err := newAPIClient(ep, httpClient)
	if err != nil {
		return nil, fmt.Errorf("%s adapter: %w", platformType, err)
	}
	return &DMAdapter{platformType: platformType, api: api, sessions: newSessions[dmSession]()}, nil
}

func (a *DMAdapter) Type() model.PlatformType { return a.platformType }

func (a *DMAdapter) CredentialRequirements() []string {
	return model.RequiredCredentialFields(a.platformType)
}

func (a *DMAdapter) SupportedTasks() []model.TaskType {
	return append([]model.TaskType(nil), dmTasks...)
}

func (a *DMAdapter) IsInitialized(platformID, clientID string) bool {
	_, ok := a.sessions.get(platformID, clientID)
	return ok
}

// Invalidate drops the sessions of platformID.
func (a *DMAdapter) Invalidate(platformID string) {
	a.sessions.drop(platformID)
}

func (a *DMAdapter) authHeader(creds map[string]string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", creds[model.FieldUserAgent])
	switch a.platformType {
	case model.PlatformFansly:
		h.Set("Authorization", creds[model.FieldSessionID])
	default:
		h.Set("Cookie", "sess="+creds[model.FieldSessionID])
	}
	return h
}

type dmAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Initialize validates the session against the account endpoint. A rejected
// session returns false without error.
func (a *DMAdapter) Initialize(ctx context.Context, cfg model.AdapterConfig) (bool, error) {
	header := a.authHeader(cfg.Credentials)

	var me dmAccount
	if err := a.api.do(ctx, http.MethodGet, "users/me", header, nil, &me); err != nil {
		if isUnauthorized(err) {
			slog.Warn("platform rejected session", "platform_type", a.platformType, "platform_id", cfg.PlatformID)
			return false, nil
		}
		return false, err
	}

	a.sessions.put(cfg.PlatformID, cfg.ClientID, dmSession{header: header, accountID: me.ID})
	return true, nil
}

// Execute implements driven.PlatformAdapter.
func (a *DMAdapter) Execute(ctx context.Context, task model.TaskPayload) (model.ExecutionResult, error) {
	if !supports(dmTasks, task.TaskType) {
		return model.ExecutionResult{}, fmt.Errorf("%w: %s on %s", model.ErrUnsupportedTask, task.TaskType, a.platformType)
	}
	sess, err := session(a.sessions, task)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	switch task.TaskType {
	case model.TaskSendDM:
		return a.sendDM(ctx, sess, task)
	case model.TaskUpdatePricing:
		return a.updatePricing(ctx, sess, task)
	default:
		return a.fetchMetrics(ctx, sess)
	}
}

type dmMessage struct {
	Text      string   `json:"text"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

type dmMessageResponse struct {
	ID string `json:"id"`
}

func (a *DMAdapter) sendDM(ctx context.Context, sess dmSession, task model.TaskPayload) (model.ExecutionResult, error) {
	text := plainMessage(task.Content)
	if text == "" && len(task.MediaURLs) == 0 {
		return model.Failed("message has no content"), nil
	}
	if len(task.Recipients) == 0 {
		return model.Failed("message has no recipients"), nil
	}

	msg := dmMessage{Text: text, MediaURLs: task.MediaURLs}
	ids := make([]string, 0, len(task.Recipients))
	for _, recipient := range task.Recipients {
		if err := beforeMutation(ctx); err != nil {
			return model.ExecutionResult{}, err
		}

		var resp dmMessageResponse
		path := "chats/" + url.PathEscape(recipient) + "/messages"
		if err := a.api.do(ctx, http.MethodPost, path, sess.header, msg, &resp); err != nil {
			if len(ids) > 0 {
				return model.ExecutionResult{}, fmt.Errorf("sent %d of %d messages: %w", len(ids), len(task.Recipients), err)
			}
			return model.ExecutionResult{}, err
		}
		ids = append(ids, resp.ID)
	}

	return model.Succeeded(map[string]any{
		"message_ids": ids,
		"sent":        len(ids),
	}), nil
}

func (a *DMAdapter) updatePricing(ctx context.Context, sess dmSession, task model.TaskPayload) (model.ExecutionResult, error) {
	if len(task.PricingData) == 0 {
		return model.Failed("pricing update has no pricing data"), nil
	}
	if err := beforeMutation(ctx); err != nil {
		return model.ExecutionResult{}, err
	}

	var updated map[string]any
	if err := a.api.do(ctx, http.MethodPut, "users/me/pricing", sess.header, task.PricingData, &updated); err != nil {
		return model.ExecutionResult{}, err
	}
	if updated == nil {
		updated = map[string]any{}
	}
	return model.Succeeded(map[string]any{"pricing": updated}), nil
}

func (a *DMAdapter) fetchMetrics(ctx context.Context, sess dmSession) (model.ExecutionResult, error) {
	var stats map[string]any
	if err := a.api.do(ctx, http.MethodGet, "users/me/stats", sess.header, nil, &stats); err != nil {
		return model.ExecutionResult{}, err
	}
	meta := map[string]any{"account_id": sess.accountID}
	for k, v := range stats {
		meta[k] = v
	}
	return model.Succeeded(meta), nil
}
