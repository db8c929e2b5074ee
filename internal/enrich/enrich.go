// Package enrich fuses the two raw record bundles into a single enriched
// model: cross-references, summaries, an activity score, and qualitative
// work-pattern flags. Pure and deterministic; no I/O.
package enrich

import (
	"fmt"

	"devpulse.app/pulse/internal/model"
)

// Scoring weights. Pull requests carry the most signal per item as the
// strongest delivery indicator; commits the least, being high-volume.
const (
	issueWeight  = 2
	commitWeight = 1
	prWeight     = 3
)

// Activity-level thresholds. Strictly greater than: a score of exactly
// 20 is still medium.
const (
	highScoreCutoff   = 20
	mediumScoreCutoff = 10
)

// highPriorityNames are the tracker priorities counted as high. Business
// rule carried over as-is.
var highPriorityNames = map[string]bool{
	"High":     true,
	"Highest":  true,
	"Critical": true,
}

// Pattern-flag cut points. Exact, exclusive thresholds; business rules
// carried over as-is.
const (
	highPriorityFlagCutoff = 3
	multiRepoFlagCutoff    = 5
	openPRFlagCutoff       = 5
)

const topRepositoryCount = 5

// Enrich builds the EnrichedModel for one query. The output must not
// depend on the order the bundles' fetches completed in: all grouping is
// tally-based and linking is order-independent.
func Enrich(tracker model.TrackerBundle, codeHost model.CodeHostBundle, windowDays int) model.EnrichedModel {
	enriched := model.EnrichedModel{
		Tracker:    summarizeTracker(tracker),
		CodeHost:   summarizeCodeHost(codeHost),
		LinkedWork: linkCommitsToTickets(codeHost.Commits, tracker.Issues),
	}
	enriched.Metrics = computeMetrics(tracker, codeHost, windowDays)
	enriched.Patterns = detectPatterns(enriched)
	return enriched
}

func summarizeTracker(bundle model.TrackerBundle) model.TrackerSummary {
	summary := model.TrackerSummary{
		Total:           len(bundle.Issues),
		ByStatus:        make(map[string]int),
		ByPriority:      make(map[string]int),
		ByCategory:      make(map[string]int),
		RecentlyUpdated: len(bundle.RecentActivity),
	}

	for _, issue := range bundle.Issues {
		summary.ByStatus[issue.Status]++
		summary.ByPriority[issue.Priority]++
		summary.ByCategory[issue.Category]++
		if highPriorityNames[issue.Priority] {
			summary.HighPriority++
		}
	}
	return summary
}

func summarizeCodeHost(bundle model.CodeHostBundle) model.CodeHostSummary {
	summary := model.CodeHostSummary{
		CommitCount:     len(bundle.Commits),
		RepositoryCount: distinctCommitRepos(bundle.Commits),
	}

	for _, pr := range bundle.PullRequests {
		if pr.State == "open" {
			summary.OpenPRCount++
		}
	}

	// The repositories bundle arrives sorted by recency; the top of the
	// list is the most recently touched.
	for i, repo := range bundle.Repositories {
		if i == topRepositoryCount {
			break
		}
		summary.TopRepositories = append(summary.TopRepositories, repo.Name)
	}
	return summary
}

func distinctCommitRepos(commits []model.Commit) int {
	repos := make(map[string]bool)
	for _, commit := range commits {
		if commit.Repository != "" {
			repos[commit.Repository] = true
		}
	}
	return len(repos)
}

// linkCommitsToTickets emits one pair per (commit, referenced ticket id)
// where the id matches a ticket fetched for the same query. Ticket ids
// were de-duplicated per commit at extraction time, so no further
// de-duplication is needed here.
func linkCommitsToTickets(commits []model.Commit, issues []model.Issue) []model.LinkedPair {
	if len(commits) == 0 || len(issues) == 0 {
		return nil
	}

	byID := make(map[string]model.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	var pairs []model.LinkedPair
	for _, commit := range commits {
		for _, ticketID := range commit.TicketIDs {
			if ticket, ok := byID[ticketID]; ok {
				pairs = append(pairs, model.LinkedPair{Commit: commit, Ticket: ticket})
			}
		}
	}
	return pairs
}

func computeMetrics(tracker model.TrackerBundle, codeHost model.CodeHostBundle, windowDays int) model.Metrics {
	issues := len(tracker.Issues)
	commits := len(codeHost.Commits)
	prs := len(codeHost.PullRequests)

	score := issues*issueWeight + commits*commitWeight + prs*prWeight

	return model.Metrics{
		ActivityScore: score,
		ActivityLevel: levelFor(score),
		// Repositories are a derived view, not a first-class activity
		// unit; they are excluded from the total.
		TotalItems: issues + commits + prs,
		WindowDays: windowDays,
	}
}

func levelFor(score int) model.ActivityLevel {
	switch {
	case score > highScoreCutoff:
		return model.LevelHigh
	case score > mediumScoreCutoff:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

// detectPatterns evaluates each flag independently, in display order.
// Several flags may co-occur.
func detectPatterns(enriched model.EnrichedModel) []model.PatternFlag {
	var flags []model.PatternFlag

	if enriched.Tracker.HighPriority > highPriorityFlagCutoff {
		flags = append(flags, model.PatternFlag{
			Kind:        "multiple_high_priority",
			Description: fmt.Sprintf("%d high-priority tickets in flight", enriched.Tracker.HighPriority),
			Impact:      "high",
		})
	}
	if enriched.CodeHost.RepositoryCount > multiRepoFlagCutoff {
		flags = append(flags, model.PatternFlag{
			Kind:        "multi_repository",
			Description: fmt.Sprintf("commits spread across %d repositories", enriched.CodeHost.RepositoryCount),
			Impact:      "medium",
		})
	}
	if enriched.CodeHost.OpenPRCount > openPRFlagCutoff {
		flags = append(flags, model.PatternFlag{
			Kind:        "many_open_prs",
			Description: fmt.Sprintf("%d pull requests open at once", enriched.CodeHost.OpenPRCount),
			Impact:      "medium",
		})
	}
	// Strict majority: more than half of all commits reference a ticket
	// that was actually fetched.
	if len(enriched.LinkedWork)*2 > enriched.CodeHost.CommitCount {
		flags = append(flags, model.PatternFlag{
			Kind:        "good_tracking",
			Description: "most commits reference a tracked ticket",
			Impact:      "positive",
		})
	}
	return flags
}
