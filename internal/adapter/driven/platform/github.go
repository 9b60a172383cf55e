package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformAdapter = (*GitHubAdapter)(nil)

var githubTasks = []model.TaskType{model.TaskFetchMetrics}

type githubSession struct {
	client  *gh.Client
	account string
}

// GitHubAdapter is a metrics-only adapter that reads audience figures of a
// GitHub account (followers, repositories, stars). It rejects every
// mutating task type.
type GitHubAdapter struct {
	newClient func(token string) (*gh.Client, error)
	sessions  *sessions[githubSession]
}

// NewGitHubAdapter creates a GitHubAdapter. Each session gets its own client
// with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
func NewGitHubAdapter(ep config.Endpoint) (*GitHubAdapter, error) {
	base, err := githubBaseURL(ep.BaseURL)
	if err != nil {
		return nil, err
	}

	return &GitHubAdapter{
		newClient: func(token string) (*gh.Client, error) {
			cacheTransport := httpcache.NewMemoryCacheTransport()
			rateLimitClient := github_ratelimit.NewClient(cacheTransport)
			if ep.Timeout > 0 {
				rateLimitClient.Timeout = ep.Timeout
			}
			client := gh.NewClient(rateLimitClient).WithAuthToken(token)
			if base != nil {
				client.BaseURL = base
			}
			if ep.UserAgent != "" {
				client.UserAgent = ep.UserAgent
			}
			return client, nil
		},
		sessions: newSessions[githubSession](),
	}, nil
}

// NewGitHubAdapterWithHTTPClient creates a GitHubAdapter whose sessions use
// httpClient and baseURL. This constructor is intended for testing, allowing
// injection of an httptest server.
func NewGitHubAdapterWithHTTPClient(httpClient *http.Client, baseURL string) (*GitHubAdapter, error) {
	base, err := githubBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &GitHubAdapter{
		newClient: func(token string) (*gh.Client, error) {
			client := gh.NewClient(httpClient).WithAuthToken(token)
			if base != nil {
				client.BaseURL = base
			}
			return client, nil
		},
		sessions: newSessions[githubSession](),
	}, nil
}

func githubBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return u, nil
}

func (a *GitHubAdapter) Type() model.PlatformType { return model.PlatformGitHub }

func (a *GitHubAdapter) CredentialRequirements() []string {
	return model.RequiredCredentialFields(model.PlatformGitHub)
}

func (a *GitHubAdapter) SupportedTasks() []model.TaskType {
	return append([]model.TaskType(nil), githubTasks...)
}

func (a *GitHubAdapter) IsInitialized(platformID, clientID string) bool {
	_, ok := a.sessions.get(platformID, clientID)
	return ok
}

// Invalidate drops the sessions of platformID.
func (a *GitHubAdapter) Invalidate(platformID string) {
	a.sessions.drop(platformID)
}

// Initialize verifies the token by fetching the authenticated user.
func (a *GitHubAdapter) Initialize(ctx context.Context, cfg model.AdapterConfig) (bool, error) {
	client, err := a.newClient(cfg.Credentials[model.FieldAccessToken])
	if err != nil {
		return false, err
	}

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			slog.Warn("github rejected token", "platform_id", cfg.PlatformID)
			return false, nil
		}
		return false, fmt.Errorf("token validation failed: %w", err)
	}

	slog.Debug("github token validated", "login", user.GetLogin(), "platform_id", cfg.PlatformID)
	a.sessions.put(cfg.PlatformID, cfg.ClientID, githubSession{
		client:  client,
		account: cfg.Credentials[model.FieldAccountID],
	})
	return true, nil
}

// Execute implements driven.PlatformAdapter.
func (a *GitHubAdapter) Execute(ctx context.Context, task model.TaskPayload) (model.ExecutionResult, error) {
	if !supports(githubTasks, task.TaskType) {
		return model.ExecutionResult{}, fmt.Errorf("%w: %s on github", model.ErrUnsupportedTask, task.TaskType)
	}
	sess, err := session(a.sessions, task)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	return a.fetchMetrics(ctx, sess)
}

func (a *GitHubAdapter) fetchMetrics(ctx context.Context, sess githubSession) (model.ExecutionResult, error) {
	user, resp, err := sess.client.Users.Get(ctx, sess.account)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("fetching user %s: %w", sess.account, err)
	}
	logRateLimit(resp, "users/"+sess.account, 0, 1)

	stars, forks, repos, err := a.sumRepositories(ctx, sess)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	return model.Succeeded(map[string]any{
		"account":      user.GetLogin(),
		"followers":    user.GetFollowers(),
		"following":    user.GetFollowing(),
		"public_repos": user.GetPublicRepos(),
		"public_gists": user.GetPublicGists(),
		"stars":        stars,
		"forks":        forks,
		"repositories": repos,
	}), nil
}

// sumRepositories totals stars and forks over the account's owned
// repositories. It handles pagination automatically.
func (a *GitHubAdapter) sumRepositories(ctx context.Context, sess githubSession) (stars, forks, count int, err error) {
	opts := &gh.RepositoryListByUserOptions{
		Type:        "owner",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	for {
		repos, resp, err := sess.client.Repositories.ListByUser(ctx, sess.account, opts)
		if err != nil {
			var rateErr *gh.RateLimitError
			if errors.As(err, &rateErr) {
				return 0, 0, 0, fmt.Errorf("listing repositories for %s: rate limited until %s: %w",
					sess.account, rateErr.Rate.Reset.Format(time.RFC3339), err)
			}
			return 0, 0, 0, fmt.Errorf("listing repositories for %s (page %d): %w", sess.account, opts.Page, err)
		}

		logRateLimit(resp, "users/"+sess.account+"/repos", opts.Page, len(repos))

		for _, r := range repos {
			stars += r.GetStargazersCount()
			forks += r.GetForksCount()
			count++
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return stars, forks, count, nil
}

func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 && resp.Rate.Limit > 0 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
