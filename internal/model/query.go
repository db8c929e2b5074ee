package model

// Intent is what the question is asking for. Extracted by substring
// matching, so the value is a best-effort signal rather than a guarantee.
type Intent string

const (
	IntentGeneral      Intent = "general"
	IntentCommits      Intent = "commits"
	IntentPullRequests Intent = "pull_requests"
	IntentIssues       Intent = "issues"
	IntentRepositories Intent = "repositories"
)

// PlatformBias indicates which source the question leans toward.
type PlatformBias string

const (
	BiasTracker  PlatformBias = "tracker"
	BiasCodeHost PlatformBias = "code_host"
	BiasBoth     PlatformBias = "both"
)

// ParsedQuery is the structured reading of a free-text question.
// It is constructed once by the query interpreter and never mutated.
type ParsedQuery struct {
	OriginalText string
	SubjectName  *string
	WindowDays   *int // strictly positive when present
	Intent       Intent
	PlatformBias PlatformBias
}

// Window returns the lookback period in days, applying the default when
// the question carried no time phrase.
func (q ParsedQuery) Window() int {
	if q.WindowDays != nil {
		return *q.WindowDays
	}
	return DefaultWindowDays
}

// DefaultWindowDays is the lookback applied when a question names no
// time window.
const DefaultWindowDays = 14
