package codehost

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v68/github"

	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/source"
)

// githubAPI adapts go-github to the API capability. It classifies
// transport failures into the shared fault taxonomy and tracks the
// rate-limit quota reported on every response.
type githubAPI struct {
	client *github.Client

	mu   sync.Mutex
	rate *github.Rate
}

func (a *githubAPI) GetUser(ctx context.Context, name string) (*model.Identity, error) {
	user, resp, err := a.client.Users.Get(ctx, name)
	a.observeRate(resp)
	if err != nil {
		return nil, source.Classify(opResolveUser, statusOf(resp), err)
	}
	return identityOf(user), nil
}

func (a *githubAPI) SearchUsers(ctx context.Context, text string) ([]model.Identity, error) {
	result, resp, err := a.client.Search.Users(ctx, text, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 5},
	})
	a.observeRate(resp)
	if err != nil {
		return nil, source.Classify(opResolveUser, statusOf(resp), err)
	}

	identities := make([]model.Identity, 0, len(result.Users))
	for _, user := range result.Users {
		if id := identityOf(user); id != nil {
			identities = append(identities, *id)
		}
	}
	return identities, nil
}

func (a *githubAPI) SearchCommits(ctx context.Context, author string, since time.Time) ([]model.Commit, error) {
	query := fmt.Sprintf("author:%s author-date:>=%s", author, since.Format("2006-01-02"))
	result, resp, err := a.client.Search.Commits(ctx, query, &github.SearchOptions{
		Sort:        "author-date",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: maxCommitResults},
	})
	a.observeRate(resp)
	if err != nil {
		return nil, source.Classify(opSearchCommits, statusOf(resp), err)
	}

	commits := make([]model.Commit, 0, len(result.Commits))
	for _, item := range result.Commits {
		commits = append(commits, mapCommit(item))
	}
	return commits, nil
}

func (a *githubAPI) SearchOpenPRs(ctx context.Context, author string) ([]model.PullRequest, error) {
	query := fmt.Sprintf("type:pr state:open author:%s", author)
	result, resp, err := a.client.Search.Issues(ctx, query, &github.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: maxPRResults},
	})
	a.observeRate(resp)
	if err != nil {
		return nil, source.Classify(opSearchPRs, statusOf(resp), err)
	}

	prs := make([]model.PullRequest, 0, len(result.Issues))
	for _, item := range result.Issues {
		prs = append(prs, mapPullRequest(item))
	}
	return prs, nil
}

func (a *githubAPI) PullRequestDetail(ctx context.Context, repo string, number int) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok {
		return "", "", source.Classify(opPRDetail, 0, fmt.Errorf("malformed repository %q", repo))
	}

	pr, resp, err := a.client.PullRequests.Get(ctx, owner, name, number)
	a.observeRate(resp)
	if err != nil {
		return "", "", source.Classify(opPRDetail, statusOf(resp), err)
	}
	return pr.GetHead().GetRef(), pr.GetBase().GetRef(), nil
}

func (a *githubAPI) RateLimit(_ context.Context) RateLimitStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rate == nil {
		return RateLimitStatus{}
	}
	return RateLimitStatus{
		Remaining: a.rate.Remaining,
		ResetAt:   a.rate.Reset.Time,
		Known:     true,
	}
}

func (a *githubAPI) observeRate(resp *github.Response) {
	if resp == nil {
		return
	}
	a.mu.Lock()
	rate := resp.Rate
	a.rate = &rate
	a.mu.Unlock()
}

func identityOf(user *github.User) *model.Identity {
	if user == nil || user.GetLogin() == "" {
		return nil
	}
	display := user.GetName()
	if display == "" {
		display = user.GetLogin()
	}
	return &model.Identity{Key: user.GetLogin(), DisplayName: display}
}

func mapCommit(item *github.CommitResult) model.Commit {
	commit := model.Commit{
		Link:       item.GetHTMLURL(),
		Repository: item.GetRepository().GetFullName(),
	}

	if sha := item.GetSHA(); len(sha) >= 7 {
		commit.ShortHash = sha[:7]
	} else {
		commit.ShortHash = sha
	}

	if item.GetAuthor() != nil {
		commit.Author = item.GetAuthor().GetLogin()
	}

	if inner := item.GetCommit(); inner != nil {
		message := inner.GetMessage()
		commit.FirstLine, _, _ = strings.Cut(message, "\n")
		commit.TicketIDs = ExtractTicketIDs(message)
		if commit.Author == "" {
			commit.Author = inner.GetAuthor().GetName()
		}
		if date := inner.GetAuthor().GetDate(); !date.Time.IsZero() {
			commit.Timestamp = date.Time
		}
	}
	return commit
}

func mapPullRequest(item *github.Issue) model.PullRequest {
	return model.PullRequest{
		Number:     item.GetNumber(),
		Title:      item.GetTitle(),
		State:      item.GetState(),
		CreatedAt:  item.GetCreatedAt().Time,
		UpdatedAt:  item.GetUpdatedAt().Time,
		Link:       item.GetHTMLURL(),
		Repository: repoFromURL(item.GetRepositoryURL()),
	}
}

// repoFromURL extracts "owner/name" from an API repository URL like
// "https://api.github.com/repos/owner/name".
func repoFromURL(url string) string {
	_, after, ok := strings.Cut(url, "/repos/")
	if !ok {
		return ""
	}
	return after
}

func statusOf(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}
