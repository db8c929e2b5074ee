package narrative

import (
	"fmt"
	"sort"
	"strings"

	"devpulse.app/pulse/internal/model"
)

// renderTemplate builds the deterministic answer. Every enriched field
// shows up somewhere in the output so the template path is a complete
// substitute for the generative one.
func renderTemplate(enriched model.EnrichedModel, displayName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Here's what %s has been up to in the last %d days:\n",
		displayName, enriched.Metrics.WindowDays)

	renderTrackerSection(&b, enriched.Tracker)
	renderCodeHostSection(&b, enriched.CodeHost)

	if n := len(enriched.LinkedWork); n > 0 {
		fmt.Fprintf(&b, "\n%d of those commits reference tickets they're assigned to.\n", n)
	}

	fmt.Fprintf(&b, "\nOverall activity is %s (%d items, score %d).\n",
		enriched.Metrics.ActivityLevel, enriched.Metrics.TotalItems, enriched.Metrics.ActivityScore)

	if len(enriched.Patterns) > 0 {
		b.WriteString("\nWorth noting:\n")
		for _, flag := range enriched.Patterns {
			fmt.Fprintf(&b, "- %s\n", flag.Description)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderTrackerSection(b *strings.Builder, tracker model.TrackerSummary) {
	if tracker.Total == 0 {
		b.WriteString("\nNo assigned tickets on the issue tracker.\n")
		return
	}

	fmt.Fprintf(b, "\nOn the issue tracker: %d assigned %s", tracker.Total, plural(tracker.Total, "ticket"))
	if tracker.HighPriority > 0 {
		fmt.Fprintf(b, ", %d of them high priority", tracker.HighPriority)
	}
	b.WriteString(".\n")

	if line := tallyLine(tracker.ByStatus); line != "" {
		fmt.Fprintf(b, "By status: %s.\n", line)
	}
	if line := tallyLine(tracker.ByPriority); line != "" {
		fmt.Fprintf(b, "By priority: %s.\n", line)
	}
	if line := tallyLine(tracker.ByCategory); line != "" {
		fmt.Fprintf(b, "By type: %s.\n", line)
	}
	if tracker.RecentlyUpdated > 0 {
		fmt.Fprintf(b, "%d %s touched in the last week.\n",
			tracker.RecentlyUpdated, plural(tracker.RecentlyUpdated, "ticket"))
	}
}

func renderCodeHostSection(b *strings.Builder, codeHost model.CodeHostSummary) {
	if codeHost.CommitCount == 0 && codeHost.OpenPRCount == 0 {
		b.WriteString("\nNo commits or open pull requests on the code host.\n")
		return
	}

	fmt.Fprintf(b, "\nOn the code host: %d %s across %d %s, with %d open %s.\n",
		codeHost.CommitCount, plural(codeHost.CommitCount, "commit"),
		codeHost.RepositoryCount, plural(codeHost.RepositoryCount, "repository"),
		codeHost.OpenPRCount, plural(codeHost.OpenPRCount, "pull request"))

	if len(codeHost.TopRepositories) > 0 {
		fmt.Fprintf(b, "Most active in: %s.\n", strings.Join(codeHost.TopRepositories, ", "))
	}
}

// tallyLine renders a tally map deterministically, sorted by count
// descending then name, so the same model always renders the same text.
func tallyLine(tally map[string]int) string {
	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(tally))
	for name, count := range tally {
		if name == "" {
			name = "uncategorized"
		}
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%d %s", e.count, e.name))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	if noun == "repository" {
		return "repositories"
	}
	return noun + "s"
}
