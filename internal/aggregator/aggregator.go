// Package aggregator orchestrates the two source clients for one query:
// concurrent identity resolution followed by a settle-all fan-out of the
// activity fetches.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"devpulse.app/pulse/common/logger"
	"devpulse.app/pulse/internal/model"
)

// ErrUserNotFound is returned when the subject resolves on neither
// source. Not a crash: the caller maps it to a fixed narrative.
var ErrUserNotFound = errors.New("subject not found on any source")

// TrackerClient is the issue-tracker side of the fan-out.
type TrackerClient interface {
	ResolveIdentity(ctx context.Context, name string) *model.Identity
	FetchIssues(ctx context.Context, identity model.Identity, windowDays int) ([]model.Issue, error)
	FetchRecentActivity(ctx context.Context, identity model.Identity) ([]model.Issue, error)
}

// CodeHostClient is the code-host side of the fan-out.
type CodeHostClient interface {
	ResolveIdentity(ctx context.Context, name string) *model.Identity
	FetchCommits(ctx context.Context, identity model.Identity, windowDays int) ([]model.Commit, error)
	FetchPullRequests(ctx context.Context, identity model.Identity, windowDays int) ([]model.PullRequest, error)
	FetchRepositories(ctx context.Context, identity model.Identity, windowDays int) ([]model.RepositoryActivity, error)
}

// Result carries the raw per-source record bundles for enrichment.
type Result struct {
	Tracker  model.TrackerBundle
	CodeHost model.CodeHostBundle
}

// DisplayName picks the subject's display name, preferring the tracker's.
func (r Result) DisplayName() string {
	if r.Tracker.Identity != nil {
		return r.Tracker.Identity.DisplayName
	}
	if r.CodeHost.Identity != nil {
		return r.CodeHost.Identity.DisplayName
	}
	return ""
}

// Aggregator fans out to both sources with independent-failure
// isolation: each fetch that fails has already been degraded to empty
// inside its client, except the tracker's must-propagate issue search.
type Aggregator struct {
	tracker  TrackerClient
	codeHost CodeHostClient
}

func New(tracker TrackerClient, codeHost CodeHostClient) *Aggregator {
	return &Aggregator{tracker: tracker, codeHost: codeHost}
}

// Aggregate resolves the subject on both sources concurrently, then
// issues the per-identity activity fetches concurrently with each other
// and across sources. Both resolutions settle before any fetch begins
// because fetches are keyed by resolved identity. The fetches are
// commutative: nothing downstream may depend on their completion order.
func (a *Aggregator) Aggregate(ctx context.Context, subjectName string, windowDays int) (Result, error) {
	sc := logger.StartSpan(ctx, "pulse.aggregator.aggregate")
	defer sc.End()
	ctx = sc.Context()

	var (
		trackerID  *model.Identity
		codeHostID *model.Identity
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		trackerID = a.tracker.ResolveIdentity(ctx, subjectName)
	}()
	go func() {
		defer wg.Done()
		codeHostID = a.codeHost.ResolveIdentity(ctx, subjectName)
	}()
	wg.Wait()

	if trackerID == nil && codeHostID == nil {
		return Result{}, ErrUserNotFound
	}

	result := Result{
		Tracker:  model.TrackerBundle{Identity: trackerID},
		CodeHost: model.CodeHostBundle{Identity: codeHostID},
	}

	// Settle-all join: five independently-failing fetches, none of which
	// cancels a sibling. The tracker issue search is the only one that
	// can surface an error; everything else degrades inside its client.
	var issuesErr error
	if trackerID != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			result.Tracker.Issues, issuesErr = a.tracker.FetchIssues(ctx, *trackerID, windowDays)
		}()
		go func() {
			defer wg.Done()
			result.Tracker.RecentActivity, _ = a.tracker.FetchRecentActivity(ctx, *trackerID)
		}()
	}
	if codeHostID != nil {
		wg.Add(3)
		go func() {
			defer wg.Done()
			result.CodeHost.Commits, _ = a.codeHost.FetchCommits(ctx, *codeHostID, windowDays)
		}()
		go func() {
			defer wg.Done()
			result.CodeHost.PullRequests, _ = a.codeHost.FetchPullRequests(ctx, *codeHostID, windowDays)
		}()
		go func() {
			defer wg.Done()
			result.CodeHost.Repositories, _ = a.codeHost.FetchRepositories(ctx, *codeHostID, windowDays)
		}()
	}
	wg.Wait()

	if issuesErr != nil {
		sc.RecordError(issuesErr)
		slog.ErrorContext(ctx, "tracker issue fetch failed after retries",
			"subject", subjectName, "window_days", windowDays, "error", issuesErr)
		return Result{}, issuesErr
	}

	return result, nil
}
