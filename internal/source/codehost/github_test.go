package codehost_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/source"
	"devpulse.app/pulse/internal/source/codehost"
)

// mockAPI implements codehost.API for testing.
type mockAPI struct {
	getUserFn       func(ctx context.Context, name string) (*model.Identity, error)
	searchUsersFn   func(ctx context.Context, text string) ([]model.Identity, error)
	searchCommitsFn func(ctx context.Context, author string, since time.Time) ([]model.Commit, error)
	searchPRsFn     func(ctx context.Context, author string) ([]model.PullRequest, error)
	prDetailFn      func(ctx context.Context, repo string, number int) (string, string, error)
	rateLimit       codehost.RateLimitStatus

	getUserCalls     int
	searchUserCalls  int
	commitCalls      int
	prCalls          int
	detailCalls      int
	rateLimitQueries int
}

func (m *mockAPI) GetUser(ctx context.Context, name string) (*model.Identity, error) {
	m.getUserCalls++
	if m.getUserFn != nil {
		return m.getUserFn(ctx, name)
	}
	return nil, source.Classify("codehost_resolve_user", 404, errors.New("not found"))
}

func (m *mockAPI) SearchUsers(ctx context.Context, text string) ([]model.Identity, error) {
	m.searchUserCalls++
	if m.searchUsersFn != nil {
		return m.searchUsersFn(ctx, text)
	}
	return nil, nil
}

func (m *mockAPI) SearchCommits(ctx context.Context, author string, since time.Time) ([]model.Commit, error) {
	m.commitCalls++
	if m.searchCommitsFn != nil {
		return m.searchCommitsFn(ctx, author, since)
	}
	return nil, nil
}

func (m *mockAPI) SearchOpenPRs(ctx context.Context, author string) ([]model.PullRequest, error) {
	m.prCalls++
	if m.searchPRsFn != nil {
		return m.searchPRsFn(ctx, author)
	}
	return nil, nil
}

func (m *mockAPI) PullRequestDetail(ctx context.Context, repo string, number int) (string, string, error) {
	m.detailCalls++
	if m.prDetailFn != nil {
		return m.prDetailFn(ctx, repo, number)
	}
	return "", "", errors.New("mock not configured")
}

func (m *mockAPI) RateLimit(context.Context) codehost.RateLimitStatus {
	m.rateLimitQueries++
	return m.rateLimit
}

func noSleepPolicy() source.RetryPolicy {
	return source.RetryPolicy{
		MaxAttempts: 3,
		SleepFn:     func(context.Context, time.Duration) {},
	}
}

var _ = Describe("Code Host Client", func() {
	var (
		api      *mockAPI
		cache    *source.MemoryCache
		client   *codehost.Client
		ctx      context.Context
		identity model.Identity
	)

	BeforeEach(func() {
		ctx = context.Background()
		api = &mockAPI{}
		cache = source.NewMemoryCache()
		client = codehost.NewWithAPI(api, true, cache, noSleepPolicy(), source.DefaultTTL)
		identity = model.Identity{Key: "mchen", DisplayName: "Maya Chen"}
	})

	Describe("ResolveIdentity", func() {
		It("prefers the direct login lookup", func() {
			api.getUserFn = func(_ context.Context, name string) (*model.Identity, error) {
				Expect(name).To(Equal("mchen"))
				return &model.Identity{Key: "mchen", DisplayName: "Maya Chen"}, nil
			}

			got := client.ResolveIdentity(ctx, "mchen")
			Expect(got).NotTo(BeNil())
			Expect(api.searchUserCalls).To(BeZero())
		})

		It("falls back to user search on a direct-lookup miss", func() {
			api.searchUsersFn = func(context.Context, string) ([]model.Identity, error) {
				return []model.Identity{{Key: "mchen", DisplayName: "Maya Chen"}}, nil
			}

			got := client.ResolveIdentity(ctx, "Maya Chen")
			Expect(got).NotTo(BeNil())
			Expect(got.Key).To(Equal("mchen"))
			Expect(api.getUserCalls).To(Equal(1))
			Expect(api.searchUserCalls).To(Equal(1))
		})

		It("strips spaces before the direct lookup", func() {
			api.getUserFn = func(_ context.Context, name string) (*model.Identity, error) {
				Expect(name).To(Equal("MayaChen"))
				return nil, source.Classify("codehost_resolve_user", 404, errors.New("not found"))
			}

			client.ResolveIdentity(ctx, "Maya Chen")
		})

		It("returns nil when both lookups miss", func() {
			Expect(client.ResolveIdentity(ctx, "Nobody")).To(BeNil())
		})

		It("caches a resolution", func() {
			api.getUserFn = func(context.Context, string) (*model.Identity, error) {
				return &model.Identity{Key: "mchen", DisplayName: "Maya Chen"}, nil
			}

			client.ResolveIdentity(ctx, "mchen")
			client.ResolveIdentity(ctx, "MCHEN")
			Expect(api.getUserCalls).To(Equal(1))
		})
	})

	Describe("FetchCommits", func() {
		commits := []model.Commit{
			{ShortHash: "a1b2c3d", FirstLine: "fix ABC-123 login", Repository: "acme/web", TicketIDs: []string{"ABC-123"}},
		}

		It("passes the window as a since date", func() {
			var gotSince time.Time
			api.searchCommitsFn = func(_ context.Context, _ string, since time.Time) ([]model.Commit, error) {
				gotSince = since
				return commits, nil
			}

			_, err := client.FetchCommits(ctx, identity, 14)
			Expect(err).NotTo(HaveOccurred())
			Expect(gotSince).To(BeTemporally("~", time.Now().AddDate(0, 0, -14), time.Minute))
		})

		It("serves repeat calls from cache", func() {
			api.searchCommitsFn = func(context.Context, string, time.Time) ([]model.Commit, error) {
				return commits, nil
			}

			_, _ = client.FetchCommits(ctx, identity, 14)
			_, _ = client.FetchCommits(ctx, identity, 14)
			Expect(api.commitCalls).To(Equal(1))
		})

		It("degrades to empty when retries are exhausted", func() {
			api.searchCommitsFn = func(context.Context, string, time.Time) ([]model.Commit, error) {
				return nil, source.Classify("codehost_search_commits", 502, errors.New("bad gateway"))
			}

			got, err := client.FetchCommits(ctx, identity, 14)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
			Expect(api.commitCalls).To(Equal(3))
		})
	})

	Describe("FetchPullRequests", func() {
		It("fills branches with one concurrent detail fetch per result", func() {
			api.searchPRsFn = func(context.Context, string) ([]model.PullRequest, error) {
				return []model.PullRequest{
					{Number: 1, Repository: "acme/web"},
					{Number: 2, Repository: "acme/api"},
				}, nil
			}
			api.prDetailFn = func(_ context.Context, repo string, number int) (string, string, error) {
				return "feature/x", "main", nil
			}

			got, err := client.FetchPullRequests(ctx, identity, 14)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(api.detailCalls).To(Equal(2))
			Expect(got[0].SourceBranch).To(Equal("feature/x"))
			Expect(got[0].TargetBranch).To(Equal("main"))
		})

		It("keeps the record when a detail fetch fails", func() {
			api.searchPRsFn = func(context.Context, string) ([]model.PullRequest, error) {
				return []model.PullRequest{{Number: 7, Repository: "acme/web", Title: "Add caching"}}, nil
			}
			api.prDetailFn = func(context.Context, string, int) (string, string, error) {
				return "", "", source.Classify("codehost_pr_detail", 500, errors.New("boom"))
			}

			got, err := client.FetchPullRequests(ctx, identity, 14)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].SourceBranch).To(BeEmpty())
		})
	})

	Describe("FetchRepositories", func() {
		It("groups commits by repository, most recently touched first", func() {
			base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			api.searchCommitsFn = func(context.Context, string, time.Time) ([]model.Commit, error) {
				return []model.Commit{
					{ShortHash: "1", Repository: "acme/web", Timestamp: base},
					{ShortHash: "2", Repository: "acme/api", Timestamp: base.Add(2 * time.Hour)},
					{ShortHash: "3", Repository: "acme/web", Timestamp: base.Add(time.Hour)},
				}, nil
			}

			repos, err := client.FetchRepositories(ctx, identity, 14)
			Expect(err).NotTo(HaveOccurred())
			Expect(repos).To(HaveLen(2))
			Expect(repos[0].Name).To(Equal("acme/api"))
			Expect(repos[1].Name).To(Equal("acme/web"))
			Expect(repos[1].CommitCount).To(Equal(2))
			Expect(repos[1].LastCommitAt).To(Equal(base.Add(time.Hour)))
		})

		It("reuses the commits cache instead of refetching", func() {
			api.searchCommitsFn = func(context.Context, string, time.Time) ([]model.Commit, error) {
				return []model.Commit{{ShortHash: "1", Repository: "acme/web"}}, nil
			}

			_, _ = client.FetchCommits(ctx, identity, 14)
			_, _ = client.FetchRepositories(ctx, identity, 14)
			Expect(api.commitCalls).To(Equal(1))
		})
	})

	Describe("rate-limit preflight", func() {
		It("waits until the reset time when quota is low", func() {
			var slept []time.Duration
			policy := source.RetryPolicy{
				MaxAttempts: 3,
				SleepFn: func(_ context.Context, d time.Duration) {
					slept = append(slept, d)
				},
			}
			api.rateLimit = codehost.RateLimitStatus{
				Remaining: 3,
				ResetAt:   time.Now().Add(30 * time.Second),
				Known:     true,
			}
			client = codehost.NewWithAPI(api, true, cache, policy, source.DefaultTTL)

			_, _ = client.FetchCommits(ctx, identity, 14)
			Expect(slept).NotTo(BeEmpty())
			Expect(slept[0]).To(BeNumerically(">", 20*time.Second))
		})

		It("is skipped when no credential is configured", func() {
			api.rateLimit = codehost.RateLimitStatus{Remaining: 0, ResetAt: time.Now().Add(time.Hour), Known: true}
			client = codehost.NewWithAPI(api, false, cache, noSleepPolicy(), source.DefaultTTL)

			_, _ = client.FetchCommits(ctx, identity, 14)
			Expect(api.rateLimitQueries).To(BeZero())
		})
	})
})
