// Package tracker is the issue-tracker instantiation of the resilient
// source client, backed by Jira.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/source"
)

// Operation names; also the first segment of cache keys.
const (
	opResolveUser    = "tracker_resolve_user"
	opSearchIssues   = "tracker_search_issues"
	opRecentActivity = "tracker_recent_activity"
)

type failureMode int

const (
	// degradeToEmpty absorbs any failure into an empty result after
	// retries are exhausted.
	degradeToEmpty failureMode = iota
	// propagateFault surfaces client faults and exhausted retries to the
	// caller: a failure here indicates a genuine integration defect.
	propagateFault
)

// failurePolicy declares, per operation, what happens when retries are
// exhausted or a non-retryable fault occurs. Kept in one table so the
// degrade-vs-propagate decision is auditable in one place.
var failurePolicy = map[string]failureMode{
	opResolveUser:    degradeToEmpty,
	opSearchIssues:   propagateFault,
	opRecentActivity: degradeToEmpty,
}

// recentActivityDays is the fixed lookback for the supplementary
// recently-updated list, independent of the query window.
const recentActivityDays = 7

const maxSearchResults = 50

// API is the tracker capability consumed by the client. The production
// implementation adapts go-jira; tests substitute a mock.
type API interface {
	// SearchUser runs a fuzzy user search and returns the first match,
	// or nil when there is none.
	SearchUser(ctx context.Context, text string) (*model.Identity, error)
	// SearchIssues runs a JQL query and returns normalized issues.
	SearchIssues(ctx context.Context, jql string, maxResults int) ([]model.Issue, error)
}

// Config carries the Jira connection settings.
type Config struct {
	BaseURL  string
	Email    string
	APIToken string
}

// Enabled reports whether a credential is configured.
func (c Config) Enabled() bool {
	return c.BaseURL != "" && c.APIToken != ""
}

// Client is the resilient tracker client: identity resolution and issue
// fetches under retry, caching, and the declared failure policy.
type Client struct {
	api   API
	cache source.Cache
	retry source.RetryPolicy
	ttl   time.Duration
}

// New builds a Client from config. When no credential is configured the
// client stays inert: resolution yields absent and fetches yield empty.
func New(cfg Config, cache source.Cache, retry source.RetryPolicy, ttl time.Duration) (*Client, error) {
	var api API
	if cfg.Enabled() {
		tp := jira.BasicAuthTransport{Username: cfg.Email, Password: cfg.APIToken}
		jc, err := jira.NewClient(tp.Client(), cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("creating jira client: %w", err)
		}
		api = &jiraAPI{client: jc, baseURL: strings.TrimSuffix(cfg.BaseURL, "/")}
	}
	return NewWithAPI(api, cache, retry, ttl), nil
}

// NewWithAPI wires an explicit capability implementation. Used by tests.
func NewWithAPI(api API, cache source.Cache, retry source.RetryPolicy, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = source.DefaultTTL
	}
	return &Client{api: api, cache: cache, retry: retry, ttl: ttl}
}

// ResolveIdentity looks up a cached identity by case-insensitive name,
// performing exactly one network lookup on a miss. Returns nil on no
// match, on an unconfigured credential, and on unrecoverable client
// errors; "not found" is never an error here.
func (c *Client) ResolveIdentity(ctx context.Context, name string) *model.Identity {
	if c.api == nil {
		return nil
	}

	key := source.Key(opResolveUser, name, 0)
	var cached model.Identity
	if source.GetJSON(ctx, c.cache, key, &cached) {
		return &cached
	}

	var identity *model.Identity
	err := c.retry.Do(ctx, opResolveUser, func(ctx context.Context) error {
		found, err := c.api.SearchUser(ctx, name)
		if err != nil {
			return err
		}
		identity = found
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "tracker identity lookup failed",
			"subject", name, "error", err)
		return nil
	}
	if identity == nil {
		return nil
	}

	source.SetJSON(ctx, c.cache, key, *identity, c.ttl)
	return identity
}

// FetchIssues returns the subject's issues updated within the window,
// most recent first. This operation propagates faults: a malformed query
// or exhausted retries here is an integration defect, not a valid empty
// answer.
func (c *Client) FetchIssues(ctx context.Context, identity model.Identity, windowDays int) ([]model.Issue, error) {
	jql := fmt.Sprintf("assignee = %q AND updated >= -%dd ORDER BY updated DESC",
		identity.Key, windowDays)
	return c.fetch(ctx, opSearchIssues, identity.Key, windowDays, jql)
}

// FetchRecentActivity returns issues the subject touched in the last few
// days, as supplementary narrative context. Failures degrade to empty.
func (c *Client) FetchRecentActivity(ctx context.Context, identity model.Identity) ([]model.Issue, error) {
	jql := fmt.Sprintf("assignee = %q AND updated >= -%dd ORDER BY updated DESC",
		identity.Key, recentActivityDays)
	return c.fetch(ctx, opRecentActivity, identity.Key, recentActivityDays, jql)
}

func (c *Client) fetch(ctx context.Context, op, subjectKey string, windowDays int, jql string) ([]model.Issue, error) {
	if c.api == nil {
		return nil, nil
	}

	key := source.Key(op, subjectKey, windowDays)
	var cached []model.Issue
	if source.GetJSON(ctx, c.cache, key, &cached) {
		return cached, nil
	}

	var issues []model.Issue
	err := c.retry.Do(ctx, op, func(ctx context.Context) error {
		found, err := c.api.SearchIssues(ctx, jql, maxSearchResults)
		if err != nil {
			return err
		}
		issues = found
		return nil
	})
	if err != nil {
		if source.KindOf(err) == source.FaultNotFound {
			// A 404 on a read is a valid empty answer.
			return nil, nil
		}
		if failurePolicy[op] == propagateFault {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		slog.WarnContext(ctx, "tracker fetch degraded to empty",
			"operation", op, "subject", subjectKey, "error", err)
		return nil, nil
	}

	source.SetJSON(ctx, c.cache, key, issues, c.ttl)
	return issues, nil
}

// jiraAPI adapts go-jira to the API capability, classifying transport
// failures into the shared fault taxonomy at the boundary.
type jiraAPI struct {
	client  *jira.Client
	baseURL string
}

func (a *jiraAPI) SearchUser(ctx context.Context, text string) (*model.Identity, error) {
	users, resp, err := a.client.User.FindWithContext(ctx, text)
	if err != nil {
		return nil, source.Classify(opResolveUser, statusOf(resp), err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	u := users[0]
	key := u.AccountID
	if key == "" {
		key = u.Name
	}
	return &model.Identity{Key: key, DisplayName: u.DisplayName}, nil
}

func (a *jiraAPI) SearchIssues(ctx context.Context, jql string, maxResults int) ([]model.Issue, error) {
	raw, resp, err := a.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, source.Classify(opSearchIssues, statusOf(resp), err)
	}

	issues := make([]model.Issue, 0, len(raw))
	for _, item := range raw {
		issues = append(issues, a.mapIssue(item))
	}
	return issues, nil
}

func (a *jiraAPI) mapIssue(item jira.Issue) model.Issue {
	issue := model.Issue{
		ID:   item.Key,
		Link: a.baseURL + "/browse/" + item.Key,
	}
	if item.Fields == nil {
		return issue
	}

	issue.Title = item.Fields.Summary
	issue.Category = item.Fields.Type.Name
	issue.CreatedAt = time.Time(item.Fields.Created)
	issue.UpdatedAt = time.Time(item.Fields.Updated)
	if item.Fields.Status != nil {
		issue.Status = item.Fields.Status.Name
	}
	if item.Fields.Priority != nil {
		issue.Priority = item.Fields.Priority.Name
	}
	return issue
}

func statusOf(resp *jira.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}
