// Package codehost is the code-host instantiation of the resilient
// source client, backed by GitHub.
package codehost

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v68/github"

	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/source"
)

// Operation names; also the first segment of cache keys.
const (
	opResolveUser   = "codehost_resolve_user"
	opSearchCommits = "codehost_search_commits"
	opSearchPRs     = "codehost_search_prs"
	opPRDetail      = "codehost_pr_detail"
	opRepositories  = "codehost_repositories"
)

type failureMode int

const (
	degradeToEmpty failureMode = iota
	propagateFault
)

// failurePolicy declares the degrade-vs-propagate decision per
// operation. Every code-host read treats "nothing found" and exhausted
// retries as a valid empty answer; one source going dark must never take
// the whole answer down.
var failurePolicy = map[string]failureMode{
	opResolveUser:   degradeToEmpty,
	opSearchCommits: degradeToEmpty,
	opSearchPRs:     degradeToEmpty,
	opPRDetail:      degradeToEmpty,
	opRepositories:  degradeToEmpty,
}

// rateLimitLowWater is the remaining-quota mark below which the client
// sleeps until the known reset time before issuing a request.
const rateLimitLowWater = 10

const (
	maxCommitResults = 50
	maxPRResults     = 30
)

// ticketIDPattern matches tracker keys referenced in commit messages,
// e.g. "ABC-123".
var ticketIDPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]*-[0-9]+\b`)

// ExtractTicketIDs returns the de-duplicated tracker keys found in a
// commit message, in first-occurrence order. Pure text extraction; it
// never calls the tracker.
func ExtractTicketIDs(message string) []string {
	matches := ticketIDPattern.FindAllString(message, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		ids = append(ids, m)
	}
	return ids
}

// RateLimitStatus is the last-known code-host quota.
type RateLimitStatus struct {
	Remaining int
	ResetAt   time.Time
	Known     bool
}

// API is the code-host capability consumed by the client. The production
// implementation adapts go-github; tests substitute a mock.
type API interface {
	// GetUser performs a direct login lookup.
	GetUser(ctx context.Context, name string) (*model.Identity, error)
	// SearchUsers performs a free-text user search.
	SearchUsers(ctx context.Context, text string) ([]model.Identity, error)
	// SearchCommits returns the author's commits since the given date,
	// most recent first, with ticket references already extracted.
	SearchCommits(ctx context.Context, author string, since time.Time) ([]model.Commit, error)
	// SearchOpenPRs returns the author's open pull requests without
	// branch details.
	SearchOpenPRs(ctx context.Context, author string) ([]model.PullRequest, error)
	// PullRequestDetail fetches the source and target branch of one PR.
	PullRequestDetail(ctx context.Context, repo string, number int) (sourceBranch, targetBranch string, err error)
	// RateLimit reports the last-known quota.
	RateLimit(ctx context.Context) RateLimitStatus
}

// Config carries the GitHub connection settings.
type Config struct {
	Token string
}

// Enabled reports whether a credential is configured.
func (c Config) Enabled() bool {
	return c.Token != ""
}

// Client is the resilient code-host client.
type Client struct {
	api    API
	cache  source.Cache
	retry  source.RetryPolicy
	ttl    time.Duration
	authed bool
	sleep  source.SleepFunc
	now    func() time.Time
}

// New builds a Client from config. Without a token the client still
// works against the public API, but skips the rate-limit preflight.
func New(cfg Config, cache source.Cache, retry source.RetryPolicy, ttl time.Duration) *Client {
	gh := github.NewClient(nil)
	if cfg.Enabled() {
		gh = gh.WithAuthToken(cfg.Token)
	}
	return NewWithAPI(&githubAPI{client: gh}, cfg.Enabled(), cache, retry, ttl)
}

// NewWithAPI wires an explicit capability implementation. Used by tests.
func NewWithAPI(api API, authed bool, cache source.Cache, retry source.RetryPolicy, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = source.DefaultTTL
	}
	sleep := retry.SleepFn
	if sleep == nil {
		sleep = source.Sleep
	}
	return &Client{
		api:    api,
		cache:  cache,
		retry:  retry,
		ttl:    ttl,
		authed: authed,
		sleep:  sleep,
		now:    time.Now,
	}
}

// ResolveIdentity resolves a name to a GitHub identity: direct login
// lookup first, free-text search as fallback. Returns nil on no match
// and on unrecoverable client errors.
func (c *Client) ResolveIdentity(ctx context.Context, name string) *model.Identity {
	key := source.Key(opResolveUser, name, 0)
	var cached model.Identity
	if source.GetJSON(ctx, c.cache, key, &cached) {
		return &cached
	}

	identity := c.lookupUser(ctx, name)
	if identity == nil {
		return nil
	}

	source.SetJSON(ctx, c.cache, key, *identity, c.ttl)
	return identity
}

func (c *Client) lookupUser(ctx context.Context, name string) *model.Identity {
	// Names with spaces can't be logins; go straight to search.
	login := strings.ReplaceAll(name, " ", "")

	var identity *model.Identity
	err := c.retry.Do(ctx, opResolveUser, func(ctx context.Context) error {
		c.preflight(ctx)
		found, err := c.api.GetUser(ctx, login)
		if err != nil {
			return err
		}
		identity = found
		return nil
	})
	if err == nil && identity != nil {
		return identity
	}
	if err != nil && source.KindOf(err) != source.FaultNotFound {
		slog.WarnContext(ctx, "code host direct lookup failed", "subject", name, "error", err)
		return nil
	}

	err = c.retry.Do(ctx, opResolveUser, func(ctx context.Context) error {
		c.preflight(ctx)
		found, err := c.api.SearchUsers(ctx, name)
		if err != nil {
			return err
		}
		if len(found) > 0 {
			identity = &found[0]
		}
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "code host user search failed", "subject", name, "error", err)
		return nil
	}
	return identity
}

// FetchCommits returns the subject's commits within the window, most
// recent first. Failures degrade to empty.
func (c *Client) FetchCommits(ctx context.Context, identity model.Identity, windowDays int) ([]model.Commit, error) {
	key := source.Key(opSearchCommits, identity.Key, windowDays)
	var cached []model.Commit
	if source.GetJSON(ctx, c.cache, key, &cached) {
		return cached, nil
	}

	since := c.now().AddDate(0, 0, -windowDays)
	var commits []model.Commit
	err := c.retry.Do(ctx, opSearchCommits, func(ctx context.Context) error {
		c.preflight(ctx)
		found, err := c.api.SearchCommits(ctx, identity.Key, since)
		if err != nil {
			return err
		}
		commits = found
		return nil
	})
	if err != nil {
		return nil, c.degrade(ctx, opSearchCommits, identity.Key, err)
	}

	source.SetJSON(ctx, c.cache, key, commits, c.ttl)
	return commits, nil
}

// FetchPullRequests returns the subject's open pull requests. Each
// search hit needs one follow-up detail fetch for its branches; those
// are issued concurrently and a failed detail leaves the branches blank
// rather than dropping the record.
func (c *Client) FetchPullRequests(ctx context.Context, identity model.Identity, windowDays int) ([]model.PullRequest, error) {
	key := source.Key(opSearchPRs, identity.Key, windowDays)
	var cached []model.PullRequest
	if source.GetJSON(ctx, c.cache, key, &cached) {
		return cached, nil
	}

	var prs []model.PullRequest
	err := c.retry.Do(ctx, opSearchPRs, func(ctx context.Context) error {
		c.preflight(ctx)
		found, err := c.api.SearchOpenPRs(ctx, identity.Key)
		if err != nil {
			return err
		}
		prs = found
		return nil
	})
	if err != nil {
		return nil, c.degrade(ctx, opSearchPRs, identity.Key, err)
	}

	c.fillBranches(ctx, prs)

	source.SetJSON(ctx, c.cache, key, prs, c.ttl)
	return prs, nil
}

func (c *Client) fillBranches(ctx context.Context, prs []model.PullRequest) {
	var wg sync.WaitGroup
	for i := range prs {
		wg.Add(1)
		go func(pr *model.PullRequest) {
			defer wg.Done()
			c.preflight(ctx)
			src, dst, err := c.api.PullRequestDetail(ctx, pr.Repository, pr.Number)
			if err != nil {
				slog.DebugContext(ctx, "pull request detail degraded",
					"repository", pr.Repository, "number", pr.Number, "error", err)
				return
			}
			pr.SourceBranch = src
			pr.TargetBranch = dst
		}(&prs[i])
	}
	wg.Wait()
}

// FetchRepositories returns per-repository activity derived from the
// subject's commits in the window, most recently touched first.
func (c *Client) FetchRepositories(ctx context.Context, identity model.Identity, windowDays int) ([]model.RepositoryActivity, error) {
	commits, err := c.FetchCommits(ctx, identity, windowDays)
	if err != nil {
		return nil, nil
	}

	byRepo := make(map[string]*model.RepositoryActivity)
	for _, commit := range commits {
		if commit.Repository == "" {
			continue
		}
		repo, ok := byRepo[commit.Repository]
		if !ok {
			repo = &model.RepositoryActivity{Name: commit.Repository}
			byRepo[commit.Repository] = repo
		}
		repo.CommitCount++
		if commit.Timestamp.After(repo.LastCommitAt) {
			repo.LastCommitAt = commit.Timestamp
		}
	}

	repos := make([]model.RepositoryActivity, 0, len(byRepo))
	for _, repo := range byRepo {
		repos = append(repos, *repo)
	}
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].LastCommitAt.After(repos[j].LastCommitAt)
	})
	return repos, nil
}

// degrade resolves an exhausted or non-retryable fetch per the declared
// failure policy: nil (empty result) for degrading operations, the fault
// itself for propagating ones. A 404-class miss is always a valid empty
// answer and is not even logged as a degradation.
func (c *Client) degrade(ctx context.Context, op, subject string, err error) error {
	if source.KindOf(err) == source.FaultNotFound {
		return nil
	}
	if failurePolicy[op] == propagateFault {
		return err
	}
	slog.WarnContext(ctx, "code host fetch degraded to empty",
		"operation", op, "subject", subject, "error", err)
	return nil
}

// preflight sleeps until the known quota reset when remaining quota is
// below the low-water mark. Skipped entirely without a credential.
func (c *Client) preflight(ctx context.Context) {
	if !c.authed {
		return
	}
	status := c.api.RateLimit(ctx)
	if !status.Known || status.Remaining >= rateLimitLowWater {
		return
	}
	wait := status.ResetAt.Sub(c.now())
	if wait <= 0 {
		return
	}
	slog.WarnContext(ctx, "code host quota low, waiting for reset",
		"remaining", status.Remaining, "reset_in", wait)
	c.sleep(ctx, wait)
}
