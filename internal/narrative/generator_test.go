package narrative_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/narrative"
)

type mockLLM struct {
	response string
	err      error
	calls    int

	lastSystem string
	lastUser   string
}

func (m *mockLLM) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	m.lastSystem = systemPrompt
	m.lastUser = userPrompt
	return m.response, m.err
}

func (m *mockLLM) Model() string { return "mock" }

func sampleEnriched() model.EnrichedModel {
	return model.EnrichedModel{
		Tracker: model.TrackerSummary{
			Total:           3,
			ByStatus:        map[string]int{"In Progress": 2, "In Review": 1},
			ByPriority:      map[string]int{"High": 1, "Medium": 2},
			ByCategory:      map[string]int{"Bug": 2, "Story": 1},
			HighPriority:    1,
			RecentlyUpdated: 2,
		},
		CodeHost: model.CodeHostSummary{
			CommitCount:     5,
			OpenPRCount:     2,
			RepositoryCount: 2,
			TopRepositories: []string{"acme/web", "acme/api"},
		},
		LinkedWork: []model.LinkedPair{
			{Commit: model.Commit{ShortHash: "a1b2c3d"}, Ticket: model.Issue{ID: "ABC-1"}},
		},
		Metrics: model.Metrics{
			ActivityScore: 17,
			ActivityLevel: model.LevelMedium,
			TotalItems:    10,
			WindowDays:    7,
		},
		Patterns: []model.PatternFlag{
			{Kind: "good_tracking", Description: "most commits reference a tracked ticket", Impact: "positive"},
		},
	}
}

func sampleParsed() model.ParsedQuery {
	subject := "Maya"
	window := 7
	return model.ParsedQuery{
		OriginalText: "What is Maya working on this week?",
		SubjectName:  &subject,
		WindowDays:   &window,
		Intent:       model.IntentGeneral,
		PlatformBias: model.BiasBoth,
	}
}

var _ = Describe("Generator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("generative strategy", func() {
		It("returns the completion when it succeeds", func() {
			mock := &mockLLM{response: "Maya shipped a busy week."}
			gen := narrative.New(mock)

			got := gen.Generate(ctx, sampleParsed(), sampleEnriched(), "Maya Chen")
			Expect(got).To(Equal("Maya shipped a busy week."))
			Expect(mock.calls).To(Equal(1))
		})

		It("feeds the full enriched model into the prompt", func() {
			mock := &mockLLM{response: "ok"}
			gen := narrative.New(mock)

			gen.Generate(ctx, sampleParsed(), sampleEnriched(), "Maya Chen")
			Expect(mock.lastUser).To(ContainSubstring("Maya Chen"))
			Expect(mock.lastUser).To(ContainSubstring("3 issues"))
			Expect(mock.lastUser).To(ContainSubstring("5 commits"))
			Expect(mock.lastUser).To(ContainSubstring("2 open PRs"))
			Expect(mock.lastUser).To(ContainSubstring("acme/web"))
			Expect(mock.lastUser).To(ContainSubstring("level medium"))
			Expect(mock.lastSystem).NotTo(BeEmpty())
		})

		It("falls back to the template when the completion errors", func() {
			mock := &mockLLM{err: errors.New("rate limited")}
			gen := narrative.New(mock)

			got := gen.Generate(ctx, sampleParsed(), sampleEnriched(), "Maya Chen")
			Expect(mock.calls).To(Equal(1))
			Expect(got).To(ContainSubstring("Maya Chen"))
			Expect(got).To(ContainSubstring("3 assigned tickets"))
		})

		It("falls back to the template when the completion is blank", func() {
			mock := &mockLLM{response: "   \n"}
			gen := narrative.New(mock)

			got := gen.Generate(ctx, sampleParsed(), sampleEnriched(), "Maya Chen")
			Expect(got).To(ContainSubstring("3 assigned tickets"))
		})
	})

	Describe("template strategy", func() {
		var gen *narrative.Generator

		BeforeEach(func() {
			gen = narrative.New(nil)
		})

		It("covers every part of the enriched model", func() {
			got := gen.Generate(ctx, sampleParsed(), sampleEnriched(), "Maya Chen")

			Expect(got).To(ContainSubstring("Maya Chen"))
			Expect(got).To(ContainSubstring("last 7 days"))
			Expect(got).To(ContainSubstring("3 assigned tickets"))
			Expect(got).To(ContainSubstring("1 of them high priority"))
			Expect(got).To(ContainSubstring("2 In Progress"))
			Expect(got).To(ContainSubstring("2 Bug"))
			Expect(got).To(ContainSubstring("5 commits"))
			Expect(got).To(ContainSubstring("2 open pull requests"))
			Expect(got).To(ContainSubstring("acme/web, acme/api"))
			Expect(got).To(ContainSubstring("1 of those commits reference"))
			Expect(got).To(ContainSubstring("medium"))
			Expect(got).To(ContainSubstring("10 items"))
			Expect(got).To(ContainSubstring("score 17"))
			Expect(got).To(ContainSubstring("most commits reference a tracked ticket"))
		})

		It("renders the same text for the same model every time", func() {
			first := gen.Generate(ctx, sampleParsed(), sampleEnriched(), "Maya Chen")
			for i := 0; i < 5; i++ {
				Expect(gen.Generate(ctx, sampleParsed(), sampleEnriched(), "Maya Chen")).To(Equal(first))
			}
		})

		It("says so when a source contributed nothing", func() {
			enriched := sampleEnriched()
			enriched.Tracker = model.TrackerSummary{}

			got := gen.Generate(ctx, sampleParsed(), enriched, "Maya Chen")
			Expect(got).To(ContainSubstring("No assigned tickets"))
		})
	})

	Describe("empty model", func() {
		It("short-circuits without calling the completion client", func() {
			mock := &mockLLM{response: "should not be used"}
			gen := narrative.New(mock)

			enriched := model.EnrichedModel{Metrics: model.Metrics{WindowDays: 14}}
			got := gen.Generate(ctx, sampleParsed(), enriched, "Maya Chen")

			Expect(mock.calls).To(BeZero())
			Expect(got).To(ContainSubstring("couldn't find any recent activity for Maya Chen"))
			Expect(got).To(ContainSubstring("last 14 days"))
		})
	})

	Describe("error responses", func() {
		var gen *narrative.Generator

		BeforeEach(func() {
			gen = narrative.New(nil)
		})

		It("names the subject when the user was not found", func() {
			got := gen.ErrorResponse(model.ErrUserNotFound, "Jane Smith")
			Expect(got).To(ContainSubstring("couldn't find Jane Smith"))
		})

		It("suggests a rephrasing when no subject was extracted", func() {
			got := gen.ErrorResponse(model.ErrSubjectNotExtracted, "")
			Expect(got).To(ContainSubstring("who you're asking about"))
		})

		It("asks for a retry on an upstream fault", func() {
			got := gen.ErrorResponse(model.ErrUpstreamFault, "Maya")
			Expect(got).To(ContainSubstring("try again"))
		})
	})
})
