package query

import (
	"strings"
	"unicode"

	"devpulse.app/pulse/internal/model"
)

// leadingWords are interrogative/verb openers stripped from the front of
// a question before looking for a subject name.
var leadingWords = map[string]bool{
	"what": true, "show": true, "tell": true, "give": true,
	"list": true, "find": true, "me": true, "us": true,
	"is": true, "has": true, "have": true, "was": true,
	"were": true, "does": true, "did": true,
}

// trailingWords are gerunds and filler commonly left dangling after the
// subject ("what is Maya working on").
var trailingWords = map[string]bool{
	"working": true, "been": true, "doing": true, "up": true,
	"on": true, "committed": true, "created": true,
}

// subjectStopWords are capitalized tokens that are never a person's name:
// question words, platform nouns, and common verbs.
var subjectStopWords = map[string]bool{
	"what": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "which": true, "jira": true, "github": true,
	"gitlab": true, "git": true, "pr": true, "prs": true, "repo": true,
	"repos": true, "repository": true, "repositories": true,
	"commit": true, "commits": true, "ticket": true, "tickets": true,
	"issue": true, "issues": true, "show": true, "tell": true,
	"list": true, "find": true, "give": true, "working": true,
	"doing": true, "done": true, "recently": true, "lately": true,
	"today": true, "yesterday": true, "this": true, "last": true,
	"the": true, "week": true, "month": true,
}

// windowPattern maps a time phrase to a lookback in days. Patterns are
// checked in order and the first match wins, so "this week" beats a
// "last month" appearing later in the same question.
type windowPattern struct {
	phrases []string
	days    int
}

var windowPatterns = []windowPattern{
	{[]string{"this week"}, 7},
	{[]string{"last week"}, 14},
	{[]string{"this month"}, 30},
	{[]string{"last month"}, 60},
	{[]string{"recently", "lately", "these days"}, 14},
	{[]string{"today"}, 1},
	{[]string{"yesterday"}, 2},
}

var trackerKeywords = []string{"jira", "ticket", "issue", "sprint", "backlog"}

var codeHostKeywords = []string{"github", "commit", "pull request", "pr", "repo", "code", "branch"}

// Parse turns a free-text question into a ParsedQuery. It is a pure
// function and never fails: a signal the text does not carry is simply
// left absent.
func Parse(text string) model.ParsedQuery {
	parsed := model.ParsedQuery{
		OriginalText: text,
		Intent:       extractIntent(text),
		PlatformBias: extractBias(text),
	}

	if days, ok := extractWindow(text); ok {
		parsed.WindowDays = &days
	}

	if name, ok := extractSubject(text); ok {
		parsed.SubjectName = &name
	}

	return parsed
}

// extractSubject looks for a run of up to three consecutive capitalized
// tokens after stripping the question's leading verb phrase and trailing
// gerunds. Falls back to the first capitalized run (one or two tokens)
// anywhere in the cleaned text.
func extractSubject(text string) (string, bool) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return "", false
	}

	cleaned := tokens
	for len(cleaned) > 0 && leadingWords[strings.ToLower(cleaned[0])] {
		cleaned = cleaned[1:]
	}
	for len(cleaned) > 0 && trailingWords[strings.ToLower(cleaned[len(cleaned)-1])] {
		cleaned = cleaned[:len(cleaned)-1]
	}

	if name := capitalizedRun(cleaned, 3); name != "" {
		return name, true
	}
	if name := capitalizedRun(tokens, 2); name != "" {
		return name, true
	}
	return "", false
}

// capitalizedRun returns the first run of consecutive capitalized,
// non-stop-word tokens, joined with spaces and capped at maxLen tokens.
func capitalizedRun(tokens []string, maxLen int) string {
	var run []string
	for _, tok := range tokens {
		if isNameToken(tok) {
			run = append(run, tok)
			if len(run) == maxLen {
				break
			}
			continue
		}
		if len(run) > 0 {
			break
		}
	}
	return strings.Join(run, " ")
}

func isNameToken(tok string) bool {
	if tok == "" || subjectStopWords[strings.ToLower(tok)] {
		return false
	}
	r := []rune(tok)[0]
	return unicode.IsUpper(r) && unicode.IsLetter(r)
}

// tokenize splits on whitespace and trims surrounding punctuation so
// "Maya?" and "Maya" are the same token.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		t = strings.TrimSuffix(strings.TrimSuffix(t, "'s"), "’s")
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func extractWindow(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, p := range windowPatterns {
		for _, phrase := range p.phrases {
			if strings.Contains(lower, phrase) {
				return p.days, true
			}
		}
	}
	return 0, false
}

// extractIntent does ordered substring checks. "pull request" and "pr"
// must run before "commit" and the rest: these are substring matches,
// not whole-word matches, so order decides ambiguous questions.
func extractIntent(text string) model.Intent {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "pull request") || strings.Contains(lower, "pr"):
		return model.IntentPullRequests
	case strings.Contains(lower, "commit"):
		return model.IntentCommits
	case strings.Contains(lower, "ticket") || strings.Contains(lower, "issue"):
		return model.IntentIssues
	case strings.Contains(lower, "repository") || strings.Contains(lower, "repo"):
		return model.IntentRepositories
	default:
		return model.IntentGeneral
	}
}

// extractBias counts per-source keyword occurrences; the strictly higher
// count wins and ties (including zero-zero) resolve to both.
func extractBias(text string) model.PlatformBias {
	lower := strings.ToLower(text)

	tracker := 0
	for _, kw := range trackerKeywords {
		tracker += strings.Count(lower, kw)
	}
	codeHost := 0
	for _, kw := range codeHostKeywords {
		codeHost += strings.Count(lower, kw)
	}

	switch {
	case tracker > codeHost:
		return model.BiasTracker
	case codeHost > tracker:
		return model.BiasCodeHost
	default:
		return model.BiasBoth
	}
}
