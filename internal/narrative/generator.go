// Package narrative renders an enriched model into human text. A
// generative strategy is tried first; any failure falls back silently to
// a deterministic template so the system stays fully functional with no
// generative dependency at all.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"devpulse.app/pulse/common/llm"
	"devpulse.app/pulse/internal/model"
)

const systemPrompt = "You are a concise engineering-team assistant. " +
	"Summarize a person's recent work from the structured data you are given. " +
	"Write a short conversational paragraph or two. Mention concrete counts. " +
	"Never invent items that are not in the data."

// Generator renders narratives. The llm client may be nil, in which case
// only the template strategy runs.
type Generator struct {
	llm llm.Client
}

func New(client llm.Client) *Generator {
	return &Generator{llm: client}
}

// Generate renders the narrative for one answered query. An empty model
// short-circuits to a fixed no-activity line regardless of the strategy
// configured.
func (g *Generator) Generate(ctx context.Context, parsed model.ParsedQuery, enriched model.EnrichedModel, displayName string) string {
	if enriched.Metrics.TotalItems == 0 {
		return noActivityText(displayName, enriched.Metrics.WindowDays)
	}

	if g.llm != nil {
		text, err := g.llm.Complete(ctx, systemPrompt, buildPrompt(parsed, enriched, displayName))
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		// The caller never sees this failure; the template answer is
		// complete on its own.
		slog.WarnContext(ctx, "generative narrative failed, using template",
			"subject", displayName, "error", err)
	}

	return renderTemplate(enriched, displayName)
}

// ErrorResponse maps an error kind to its fixed user-facing sentence.
// This path never calls the generative strategy.
func (g *Generator) ErrorResponse(kind model.ErrorKind, displayName string) string {
	switch kind {
	case model.ErrSubjectNotExtracted:
		return "I couldn't work out who you're asking about. " +
			"Try something like \"What is Maya working on this week?\""
	case model.ErrUserNotFound:
		return fmt.Sprintf("I couldn't find %s on the issue tracker or the code host. "+
			"Double-check the spelling of the name.", displayName)
	case model.ErrNoActivity:
		return noActivityText(displayName, 0)
	case model.ErrUpstreamFault:
		return fmt.Sprintf("I couldn't fetch %s's activity right now because an upstream "+
			"service is misbehaving. Please try again in a little while.", displayName)
	default:
		return "Something unexpected happened while answering that."
	}
}

func noActivityText(displayName string, windowDays int) string {
	if windowDays > 0 {
		return fmt.Sprintf("I couldn't find any recent activity for %s in the last %d days. "+
			"They may be working on something not tracked here.", displayName, windowDays)
	}
	return fmt.Sprintf("I couldn't find any recent activity for %s. "+
		"They may be working on something not tracked here.", displayName)
}

// buildPrompt serializes every enriched field into the user prompt so
// the model has the full picture without any retrieval of its own.
func buildPrompt(parsed model.ParsedQuery, enriched model.EnrichedModel, displayName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n", parsed.OriginalText)
	fmt.Fprintf(&b, "Subject: %s\n", displayName)
	fmt.Fprintf(&b, "Window: last %d days\n", enriched.Metrics.WindowDays)
	fmt.Fprintf(&b, "Intent: %s\n\n", parsed.Intent)

	fmt.Fprintf(&b, "Tracker: %d issues", enriched.Tracker.Total)
	if enriched.Tracker.HighPriority > 0 {
		fmt.Fprintf(&b, " (%d high priority)", enriched.Tracker.HighPriority)
	}
	b.WriteString("\n")
	writeTally(&b, "  by status", enriched.Tracker.ByStatus)
	writeTally(&b, "  by priority", enriched.Tracker.ByPriority)
	writeTally(&b, "  by category", enriched.Tracker.ByCategory)
	if enriched.Tracker.RecentlyUpdated > 0 {
		fmt.Fprintf(&b, "  recently updated: %d\n", enriched.Tracker.RecentlyUpdated)
	}

	fmt.Fprintf(&b, "Code host: %d commits, %d open PRs, %d repositories\n",
		enriched.CodeHost.CommitCount, enriched.CodeHost.OpenPRCount, enriched.CodeHost.RepositoryCount)
	if len(enriched.CodeHost.TopRepositories) > 0 {
		fmt.Fprintf(&b, "  most active: %s\n", strings.Join(enriched.CodeHost.TopRepositories, ", "))
	}

	if len(enriched.LinkedWork) > 0 {
		fmt.Fprintf(&b, "Commits referencing fetched tickets: %d\n", len(enriched.LinkedWork))
	}

	fmt.Fprintf(&b, "Activity: score %d, level %s, %d items total\n",
		enriched.Metrics.ActivityScore, enriched.Metrics.ActivityLevel, enriched.Metrics.TotalItems)

	for _, flag := range enriched.Patterns {
		fmt.Fprintf(&b, "Pattern: %s (%s impact): %s\n", flag.Kind, flag.Impact, flag.Description)
	}

	return b.String()
}

func writeTally(b *strings.Builder, label string, tally map[string]int) {
	if len(tally) == 0 {
		return
	}
	parts := make([]string, 0, len(tally))
	for k, v := range tally {
		if k == "" {
			k = "(none)"
		}
		parts = append(parts, fmt.Sprintf("%s: %d", k, v))
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(parts, ", "))
}
