package model

// ActivityLevel is a qualitative banding of the activity score.
type ActivityLevel string

const (
	LevelLow    ActivityLevel = "low"
	LevelMedium ActivityLevel = "medium"
	LevelHigh   ActivityLevel = "high"
)

// TrackerSummary tallies the tracker record set. Group maps are
// unordered tallies keyed by the raw upstream label.
type TrackerSummary struct {
	Total           int
	ByStatus        map[string]int
	ByPriority      map[string]int
	ByCategory      map[string]int
	HighPriority    int
	RecentlyUpdated int
}

// CodeHostSummary tallies the code-host record set.
type CodeHostSummary struct {
	CommitCount     int
	OpenPRCount     int
	RepositoryCount int
	TopRepositories []string
}

// LinkedPair connects a commit to a tracker issue it references by key.
// Pairs only ever link records fetched for the same query.
type LinkedPair struct {
	Commit Commit
	Ticket Issue
}

// Metrics is the quantitative view of one query's activity.
type Metrics struct {
	ActivityScore int
	ActivityLevel ActivityLevel
	TotalItems    int
	WindowDays    int
}

// PatternFlag is a qualitative observation about the shape of the work.
type PatternFlag struct {
	Kind        string
	Description string
	Impact      string
}

// EnrichedModel is the fused view of both sources for a single query.
// It is produced fresh per query and discarded after the response is
// generated.
type EnrichedModel struct {
	Tracker    TrackerSummary
	CodeHost   CodeHostSummary
	LinkedWork []LinkedPair
	Metrics    Metrics
	Patterns   []PatternFlag
}
