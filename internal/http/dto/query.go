package dto

import (
	"strconv"
	"time"

	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/service"
)

type QueryRequest struct {
	Text string `json:"text" binding:"required"`
}

type QueryResponse struct {
	QueryID     string         `json:"query_id"`
	Answer      string         `json:"answer"`
	Subject     string         `json:"subject,omitempty"`
	ParsedQuery ParsedQuery    `json:"parsed_query"`
	Enriched    *EnrichedModel `json:"enriched,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
}

type ParsedQuery struct {
	Subject      *string `json:"subject"`
	WindowDays   int     `json:"window_days"`
	Intent       string  `json:"intent"`
	PlatformBias string  `json:"platform_bias"`
}

type EnrichedModel struct {
	Tracker    TrackerSummary  `json:"tracker"`
	CodeHost   CodeHostSummary `json:"code_host"`
	LinkedWork []LinkedPair    `json:"linked_work,omitempty"`
	Metrics    Metrics         `json:"metrics"`
	Patterns   []PatternFlag   `json:"patterns,omitempty"`
}

type TrackerSummary struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status,omitempty"`
	ByPriority      map[string]int `json:"by_priority,omitempty"`
	ByCategory      map[string]int `json:"by_category,omitempty"`
	HighPriority    int            `json:"high_priority"`
	RecentlyUpdated int            `json:"recently_updated"`
}

type CodeHostSummary struct {
	CommitCount     int      `json:"commit_count"`
	OpenPRCount     int      `json:"open_pr_count"`
	RepositoryCount int      `json:"repository_count"`
	TopRepositories []string `json:"top_repositories,omitempty"`
}

type LinkedPair struct {
	CommitHash    string    `json:"commit_hash"`
	CommitMessage string    `json:"commit_message"`
	Repository    string    `json:"repository"`
	CommittedAt   time.Time `json:"committed_at"`
	TicketID      string    `json:"ticket_id"`
	TicketTitle   string    `json:"ticket_title"`
	TicketStatus  string    `json:"ticket_status"`
}

type Metrics struct {
	ActivityScore int    `json:"activity_score"`
	ActivityLevel string `json:"activity_level"`
	TotalItems    int    `json:"total_items"`
	WindowDays    int    `json:"window_days"`
}

type PatternFlag struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// FromAnswerResult maps a service result onto the wire shape. Snowflake
// ids are serialized as strings so JavaScript clients don't lose
// precision.
func FromAnswerResult(result service.AnswerResult) QueryResponse {
	resp := QueryResponse{
		QueryID: strconv.FormatInt(result.QueryID, 10),
		Answer:  result.Answer,
		Subject: result.Subject,
		ParsedQuery: ParsedQuery{
			Subject:      result.Parsed.SubjectName,
			WindowDays:   result.Parsed.Window(),
			Intent:       string(result.Parsed.Intent),
			PlatformBias: string(result.Parsed.PlatformBias),
		},
	}
	if result.ErrorKind != nil {
		resp.ErrorKind = string(*result.ErrorKind)
	}
	if result.Enriched != nil {
		enriched := fromEnriched(*result.Enriched)
		resp.Enriched = &enriched
	}
	return resp
}

func fromEnriched(m model.EnrichedModel) EnrichedModel {
	out := EnrichedModel{
		Tracker: TrackerSummary{
			Total:           m.Tracker.Total,
			ByStatus:        m.Tracker.ByStatus,
			ByPriority:      m.Tracker.ByPriority,
			ByCategory:      m.Tracker.ByCategory,
			HighPriority:    m.Tracker.HighPriority,
			RecentlyUpdated: m.Tracker.RecentlyUpdated,
		},
		CodeHost: CodeHostSummary{
			CommitCount:     m.CodeHost.CommitCount,
			OpenPRCount:     m.CodeHost.OpenPRCount,
			RepositoryCount: m.CodeHost.RepositoryCount,
			TopRepositories: m.CodeHost.TopRepositories,
		},
		Metrics: Metrics{
			ActivityScore: m.Metrics.ActivityScore,
			ActivityLevel: string(m.Metrics.ActivityLevel),
			TotalItems:    m.Metrics.TotalItems,
			WindowDays:    m.Metrics.WindowDays,
		},
	}
	for _, pair := range m.LinkedWork {
		out.LinkedWork = append(out.LinkedWork, LinkedPair{
			CommitHash:    pair.Commit.ShortHash,
			CommitMessage: pair.Commit.FirstLine,
			Repository:    pair.Commit.Repository,
			CommittedAt:   pair.Commit.Timestamp,
			TicketID:      pair.Ticket.ID,
			TicketTitle:   pair.Ticket.Title,
			TicketStatus:  pair.Ticket.Status,
		})
	}
	for _, flag := range m.Patterns {
		out.Patterns = append(out.Patterns, PatternFlag{
			Kind:        flag.Kind,
			Description: flag.Description,
			Impact:      flag.Impact,
		})
	}
	return out
}
