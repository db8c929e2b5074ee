package aggregator_test

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/pulse/internal/aggregator"
	"devpulse.app/pulse/internal/model"
)

type mockTracker struct {
	identity *model.Identity
	issues   []model.Issue
	recent   []model.Issue
	issueErr error

	resolveCalls atomic.Int32
	fetchCalls   atomic.Int32
}

func (m *mockTracker) ResolveIdentity(context.Context, string) *model.Identity {
	m.resolveCalls.Add(1)
	return m.identity
}

func (m *mockTracker) FetchIssues(context.Context, model.Identity, int) ([]model.Issue, error) {
	m.fetchCalls.Add(1)
	return m.issues, m.issueErr
}

func (m *mockTracker) FetchRecentActivity(context.Context, model.Identity) ([]model.Issue, error) {
	m.fetchCalls.Add(1)
	return m.recent, nil
}

type mockCodeHost struct {
	identity *model.Identity
	commits  []model.Commit
	prs      []model.PullRequest
	repos    []model.RepositoryActivity

	resolveCalls atomic.Int32
	fetchCalls   atomic.Int32
}

func (m *mockCodeHost) ResolveIdentity(context.Context, string) *model.Identity {
	m.resolveCalls.Add(1)
	return m.identity
}

func (m *mockCodeHost) FetchCommits(context.Context, model.Identity, int) ([]model.Commit, error) {
	m.fetchCalls.Add(1)
	return m.commits, nil
}

func (m *mockCodeHost) FetchPullRequests(context.Context, model.Identity, int) ([]model.PullRequest, error) {
	m.fetchCalls.Add(1)
	return m.prs, nil
}

func (m *mockCodeHost) FetchRepositories(context.Context, model.Identity, int) ([]model.RepositoryActivity, error) {
	m.fetchCalls.Add(1)
	return m.repos, nil
}

var _ = Describe("Aggregator", func() {
	var (
		tracker  *mockTracker
		codeHost *mockCodeHost
		agg      *aggregator.Aggregator
		ctx      context.Context
	)

	trackerID := &model.Identity{Key: "acct-1", DisplayName: "Maya Chen"}
	codeHostID := &model.Identity{Key: "mchen", DisplayName: "mchen"}

	BeforeEach(func() {
		ctx = context.Background()
		tracker = &mockTracker{}
		codeHost = &mockCodeHost{}
		agg = aggregator.New(tracker, codeHost)
	})

	It("fails with UserNotFound when neither source resolves", func() {
		_, err := agg.Aggregate(ctx, "Nobody", 14)
		Expect(err).To(MatchError(aggregator.ErrUserNotFound))
		Expect(tracker.fetchCalls.Load()).To(BeZero())
		Expect(codeHost.fetchCalls.Load()).To(BeZero())
	})

	It("collects both bundles when both sources resolve", func() {
		tracker.identity = trackerID
		tracker.issues = []model.Issue{{ID: "ABC-1"}, {ID: "ABC-2"}}
		codeHost.identity = codeHostID
		codeHost.commits = []model.Commit{{ShortHash: "a1b2c3d"}}
		codeHost.prs = []model.PullRequest{{Number: 1}}
		codeHost.repos = []model.RepositoryActivity{{Name: "acme/web"}}

		result, err := agg.Aggregate(ctx, "Maya", 14)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Tracker.Issues).To(HaveLen(2))
		Expect(result.CodeHost.Commits).To(HaveLen(1))
		Expect(result.CodeHost.PullRequests).To(HaveLen(1))
		Expect(result.CodeHost.Repositories).To(HaveLen(1))
		Expect(tracker.fetchCalls.Load()).To(Equal(int32(2)))
		Expect(codeHost.fetchCalls.Load()).To(Equal(int32(3)))
	})

	It("continues with only the code host when the tracker does not resolve", func() {
		codeHost.identity = codeHostID
		codeHost.commits = []model.Commit{{ShortHash: "a1b2c3d"}}

		result, err := agg.Aggregate(ctx, "mchen", 14)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Tracker.Identity).To(BeNil())
		Expect(result.Tracker.Issues).To(BeEmpty())
		Expect(result.CodeHost.Commits).To(HaveLen(1))
		Expect(tracker.fetchCalls.Load()).To(BeZero())
	})

	It("continues with only the tracker when the code host does not resolve", func() {
		tracker.identity = trackerID
		tracker.issues = []model.Issue{{ID: "ABC-1"}}

		result, err := agg.Aggregate(ctx, "Maya", 14)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.CodeHost.Identity).To(BeNil())
		Expect(result.Tracker.Issues).To(HaveLen(1))
		Expect(codeHost.fetchCalls.Load()).To(BeZero())
	})

	It("propagates a tracker issue-fetch fault", func() {
		tracker.identity = trackerID
		tracker.issueErr = errors.New("bad jql")
		codeHost.identity = codeHostID

		_, err := agg.Aggregate(ctx, "Maya", 14)
		Expect(err).To(MatchError(tracker.issueErr))
	})

	It("prefers the tracker display name", func() {
		tracker.identity = trackerID
		codeHost.identity = codeHostID

		result, err := agg.Aggregate(ctx, "Maya", 14)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.DisplayName()).To(Equal("Maya Chen"))
	})
})
