// Package github implements the RepoClient port using the go-github library.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoClient = (*Client)(nil)

// buildDispatchEvent is the repository_dispatch event type used to restart
// CI for a pull request.
const buildDispatchEvent = "repowarden-revalidate"

// Client implements the driven.RepoClient port for one monitored repository.
type Client struct {
	gh            *gh.Client
	owner         string
	name          string
	tier          model.RepoTier
	defaultBranch string
	hooks         map[model.HookType][]string
}

// NewClient creates a repository client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token, repoFullName string, tier model.RepoTier, defaultBranch string, hooks map[model.HookType][]string) (*Client, error) {
	owner, name, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:            client,
		owner:         owner,
		name:          name,
		tier:          tier,
		defaultBranch: defaultBranch,
		hooks:         hooks,
	}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, repoFullName string, tier model.RepoTier, defaultBranch string) (*Client, error) {
	owner, name, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(httpClient)
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	client.BaseURL = u

	return &Client{
		gh:            client,
		owner:         owner,
		name:          name,
		tier:          tier,
		defaultBranch: defaultBranch,
	}, nil
}

// FullName returns the "org/name" slug of the repository.
func (c *Client) FullName() string { return c.owner + "/" + c.name }

// Owner returns the organization or user owning the repository.
func (c *Client) Owner() string { return c.owner }

// Name returns the bare repository name.
func (c *Client) Name() string { return c.name }

// Tier returns the configured repository tier.
func (c *Client) Tier() model.RepoTier { return c.tier }

// DefaultBranch returns the branch governance applies to.
func (c *Client) DefaultBranch() string { return c.defaultBranch }

// HookCommands returns the shell commands configured for the given hook type.
func (c *Client) HookCommands(t model.HookType) []string { return c.hooks[t] }

// SearchOpenPullRequests returns every open pull request linked to the given
// commit SHA, using the issue search API scoped to this repository.
func (c *Client) SearchOpenPullRequests(ctx context.Context, sha string) ([]model.PullRequest, error) {
	query := fmt.Sprintf("%s state:open type:pr repo:%s", sha, c.FullName())
	opts := &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var linked []model.PullRequest

	for {
		result, resp, err := c.gh.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("searching open PRs for %s@%s: %w", c.FullName(), sha, err)
		}

		logRateLimit(resp, c.FullName()+"/search", opts.Page, len(result.Issues))

		for _, issue := range result.Issues {
			linked = append(linked, mapIssueAsPullRequest(issue, c.FullName(), sha))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return linked, nil
}

// ListOpenPullRequests returns all open pull requests for the repository,
// labels included. It handles pagination automatically.
func (c *Client) ListOpenPullRequests(ctx context.Context) ([]model.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:     "open",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var allPRs []model.PullRequest

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, c.owner, c.name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing open pull requests for %s (page %d): %w", c.FullName(), opts.Page, err)
		}

		logRateLimit(resp, c.FullName(), opts.Page, len(prs))

		for _, pr := range prs {
			allPRs = append(allPRs, mapPullRequest(pr, c.FullName()))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allPRs == nil {
		allPRs = []model.PullRequest{}
	}

	return allPRs, nil
}

// ListStatuses returns the status history for a commit.
func (c *Client) ListStatuses(ctx context.Context, sha string) ([]model.Status, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var allStatuses []model.Status

	for {
		statuses, resp, err := c.gh.Repositories.ListStatuses(ctx, c.owner, c.name, sha, opts)
		if err != nil {
			return nil, fmt.Errorf("listing statuses for %s@%s (page %d): %w", c.FullName(), sha, opts.Page, err)
		}

		for _, s := range statuses {
			allStatuses = append(allStatuses, mapStatus(s))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allStatuses, nil
}

// GetCommit fetches a single commit by SHA.
func (c *Client) GetCommit(ctx context.Context, sha string) (model.Commit, error) {
	commit, resp, err := c.gh.Repositories.GetCommit(ctx, c.owner, c.name, sha, nil)
	if err != nil {
		return model.Commit{}, fmt.Errorf("fetching commit %s@%s: %w", c.FullName(), sha, err)
	}

	logRateLimit(resp, c.FullName()+"/commit", 0, 1)

	return mapCommit(commit), nil
}

// GetLastCommit fetches the most recent commit on a pull request.
func (c *Client) GetLastCommit(ctx context.Context, prNumber int) (model.Commit, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var last *gh.RepositoryCommit

	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, c.owner, c.name, prNumber, opts)
		if err != nil {
			return model.Commit{}, fmt.Errorf("listing commits for %s#%d (page %d): %w", c.FullName(), prNumber, opts.Page, err)
		}

		if len(commits) > 0 {
			last = commits[len(commits)-1]
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if last == nil {
		return model.Commit{}, fmt.Errorf("pull request %s#%d has no commits", c.FullName(), prNumber)
	}

	return mapCommit(last), nil
}

// GetContents lists the directory entries at the given path ("" for the
// repository root).
func (c *Client) GetContents(ctx context.Context, path string) ([]model.RepoContent, error) {
	_, dirContents, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.name, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching contents of %s at %q: %w", c.FullName(), path, err)
	}

	logRateLimit(resp, c.FullName()+"/contents", 0, len(dirContents))

	contents := make([]model.RepoContent, 0, len(dirContents))
	for _, entry := range dirContents {
		contents = append(contents, model.RepoContent{
			Name: entry.GetName(),
			Path: entry.GetPath(),
		})
	}

	return contents, nil
}

// CompareCommits returns the files changed between base and head.
func (c *Client) CompareCommits(ctx context.Context, base, head string) ([]model.CompareFile, error) {
	comparison, resp, err := c.gh.Repositories.CompareCommits(ctx, c.owner, c.name, base, head, nil)
	if err != nil {
		return nil, fmt.Errorf("comparing %s...%s on %s: %w", base, head, c.FullName(), err)
	}

	logRateLimit(resp, c.FullName()+"/compare", 0, len(comparison.Files))

	files := make([]model.CompareFile, 0, len(comparison.Files))
	for _, f := range comparison.Files {
		files = append(files, model.CompareFile{
			Filename: f.GetFilename(),
			Status:   f.GetStatus(),
		})
	}

	return files, nil
}

// CreateStatus posts a commit status.
func (c *Client) CreateStatus(ctx context.Context, sha string, status model.Status) error {
	repoStatus := &gh.RepoStatus{
		State:       gh.Ptr(status.State),
		Context:     gh.Ptr(status.Context),
		Description: gh.Ptr(status.Description),
	}
	if status.TargetURL != "" {
		repoStatus.TargetURL = gh.Ptr(status.TargetURL)
	}

	_, _, err := c.gh.Repositories.CreateStatus(ctx, c.owner, c.name, sha, *repoStatus)
	if err != nil {
		return fmt.Errorf("creating status %q on %s@%s: %w", status.Context, c.FullName(), sha, err)
	}

	return nil
}

// CreateComment adds a PR-level comment via the Issues API.
func (c *Client) CreateComment(ctx context.Context, prNumber int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.name, prNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating comment on %s#%d: %w", c.FullName(), prNumber, err)
	}

	return nil
}

// ClosePullRequest closes a pull request without merging.
func (c *Client) ClosePullRequest(ctx context.Context, prNumber int) error {
	_, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.name, prNumber, &gh.PullRequest{
		State: gh.Ptr("closed"),
	})
	if err != nil {
		return fmt.Errorf("closing %s#%d: %w", c.FullName(), prNumber, err)
	}

	return nil
}

// TriggerBuild restarts CI for a pull request by firing a repository_dispatch
// event carrying the PR number.
func (c *Client) TriggerBuild(ctx context.Context, prNumber int) error {
	payload := json.RawMessage(fmt.Sprintf(`{"pr_number":%d}`, prNumber))
	_, _, err := c.gh.Repositories.Dispatch(ctx, c.owner, c.name, gh.DispatchRequestOptions{
		EventType:     buildDispatchEvent,
		ClientPayload: &payload,
	})
	if err != nil {
		return fmt.Errorf("triggering build for %s#%d: %w", c.FullName(), prNumber, err)
	}

	return nil
}

// ConfirmWebhook ensures a webhook delivering to the given URL exists on the
// repository, creating one when absent.
func (c *Client) ConfirmWebhook(ctx context.Context, deliveryURL string, events []string) error {
	opts := &gh.ListOptions{PerPage: 100}

	for {
		hooks, resp, err := c.gh.Repositories.ListHooks(ctx, c.owner, c.name, opts)
		if err != nil {
			return fmt.Errorf("listing webhooks for %s: %w", c.FullName(), err)
		}

		for _, hook := range hooks {
			if hook.GetConfig().GetURL() == deliveryURL {
				slog.Debug("webhook already registered", "repo", c.FullName(), "url", deliveryURL)
				return nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	_, _, err := c.gh.Repositories.CreateHook(ctx, c.owner, c.name, &gh.Hook{
		Events: events,
		Active: gh.Ptr(true),
		Config: &gh.HookConfig{
			URL:         gh.Ptr(deliveryURL),
			ContentType: gh.Ptr("json"),
		},
	})
	if err != nil {
		return fmt.Errorf("creating webhook for %s: %w", c.FullName(), err)
	}

	slog.Info("webhook registered", "repo", c.FullName(), "url", deliveryURL)
	return nil
}

// RateLimitRemaining returns the number of core API calls left before the
// rate limit is exhausted.
func (c *Client) RateLimitRemaining(ctx context.Context) (int, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching rate limit: %w", err)
	}

	core := limits.GetCore()
	slog.Debug("github rate limit",
		"remaining", core.Remaining,
		"limit", core.Limit,
		"resets_at", core.Reset.Time,
	)

	return core.Remaining, nil
}

// mapPullRequest converts a go-github PullRequest to a domain snapshot.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	return model.PullRequest{
		Number:       pr.GetNumber(),
		RepoFullName: repoFullName,
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		Author:       pr.GetUser().GetLogin(),
		HTMLURL:      pr.GetHTMLURL(),
		HeadSHA:      pr.GetHead().GetSHA(),
		BaseBranch:   pr.GetBase().GetRef(),
		Merged:       !pr.GetMergedAt().IsZero(),
		Labels:       labels,
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
	}
}

// mapIssueAsPullRequest converts an issue-search hit into a PR snapshot. The
// search API does not return head information, so the head SHA is the SHA
// the search was keyed on.
func mapIssueAsPullRequest(issue *gh.Issue, repoFullName, sha string) model.PullRequest {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	return model.PullRequest{
		Number:       issue.GetNumber(),
		RepoFullName: repoFullName,
		Title:        issue.GetTitle(),
		Body:         issue.GetBody(),
		Author:       issue.GetUser().GetLogin(),
		HTMLURL:      issue.GetHTMLURL(),
		HeadSHA:      sha,
		Labels:       labels,
		CreatedAt:    issue.GetCreatedAt().Time,
		UpdatedAt:    issue.GetUpdatedAt().Time,
	}
}

// mapStatus converts a go-github RepoStatus to a domain Status.
func mapStatus(s *gh.RepoStatus) model.Status {
	return model.Status{
		Context:     s.GetContext(),
		State:       s.GetState(),
		Description: s.GetDescription(),
		TargetURL:   s.GetTargetURL(),
		CreatedAt:   s.GetCreatedAt().Time,
	}
}

// mapCommit converts a go-github RepositoryCommit to a domain Commit. The
// top-level author is a GitHub user and may legitimately be absent; the git
// author name from the nested commit object serves as a fallback.
func mapCommit(commit *gh.RepositoryCommit) model.Commit {
	return model.Commit{
		SHA:         commit.GetSHA(),
		AuthorLogin: commit.GetAuthor().GetLogin(),
		AuthorName:  commit.GetCommit().GetAuthor().GetName(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
