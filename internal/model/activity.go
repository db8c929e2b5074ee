package model

import "time"

// Identity is a source-specific resolution of a subject name: an opaque
// per-source key (Jira account ID, GitHub login) plus a display name.
type Identity struct {
	Key         string
	DisplayName string
}

// Issue is a normalized tracker work item. Source-specific payloads are
// mapped into this shape at the client boundary; nothing downstream ever
// sees a raw upstream record.
type Issue struct {
	ID        string
	Title     string
	Status    string
	Priority  string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Link      string
}

// Commit is a normalized code-host commit.
type Commit struct {
	ShortHash  string
	FirstLine  string
	Author     string
	Timestamp  time.Time
	Link       string
	Repository string
	// TicketIDs are tracker keys referenced in the commit message
	// (e.g. "ABC-123"), de-duplicated at extraction time.
	TicketIDs []string
}

// PullRequest is a normalized code-host pull request.
type PullRequest struct {
	Number       int
	Title        string
	State        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Link         string
	Repository   string
	SourceBranch string
	TargetBranch string
}

// RepositoryActivity is a derived per-repository view of recent commits.
type RepositoryActivity struct {
	Name         string
	CommitCount  int
	LastCommitAt time.Time
}

// TrackerBundle is the raw record set fetched from the issue tracker for
// one query. RecentActivity is supplementary context and is not counted
// toward Metrics.TotalItems.
type TrackerBundle struct {
	Identity       *Identity
	Issues         []Issue
	RecentActivity []Issue
}

// CodeHostBundle is the raw record set fetched from the code host for
// one query.
type CodeHostBundle struct {
	Identity     *Identity
	Commits      []Commit
	PullRequests []PullRequest
	Repositories []RepositoryActivity
}
