// Package driven defines the driven ports: capability interfaces the
// application core uses to reach GitHub and the outbound mail transport.
package driven

import (
	"context"

	"github.com/kestrelworks/repowarden/internal/domain/model"
)

// RepoClient is the capability handle for one monitored repository. It is
// created once at startup, shared read-only across concurrent validator
// executions, and never mutated afterwards.
type RepoClient interface {
	// FullName returns the "org/name" slug of the repository.
	FullName() string
	// Owner returns the organization or user owning the repository.
	Owner() string
	// Name returns the bare repository name.
	Name() string
	// Tier returns the configured repository tier.
	Tier() model.RepoTier
	// DefaultBranch returns the branch governance applies to.
	DefaultBranch() string
	// HookCommands returns the shell commands configured for the given hook
	// type on this repository.
	HookCommands(t model.HookType) []string

	// Read operations.

	// SearchOpenPullRequests returns every open pull request linked to the
	// given commit SHA. More than one PR can be linked when a PR is opened
	// against another PR's branch.
	SearchOpenPullRequests(ctx context.Context, sha string) ([]model.PullRequest, error)
	// ListOpenPullRequests returns all open pull requests, labels included.
	ListOpenPullRequests(ctx context.Context) ([]model.PullRequest, error)
	// ListStatuses returns the status history for a commit.
	ListStatuses(ctx context.Context, sha string) ([]model.Status, error)
	// GetCommit fetches a single commit by SHA.
	GetCommit(ctx context.Context, sha string) (model.Commit, error)
	// GetLastCommit fetches the most recent commit on a pull request.
	GetLastCommit(ctx context.Context, prNumber int) (model.Commit, error)
	// GetContents lists the directory entries at the given path ("" for root).
	GetContents(ctx context.Context, path string) ([]model.RepoContent, error)
	// CompareCommits returns the files changed between base and head.
	CompareCommits(ctx context.Context, base, head string) ([]model.CompareFile, error)

	// Write operations.

	// CreateStatus posts a commit status.
	CreateStatus(ctx context.Context, sha string, status model.Status) error
	// CreateComment adds a PR-level comment.
	CreateComment(ctx context.Context, prNumber int, body string) error
	// ClosePullRequest closes a pull request without merging.
	ClosePullRequest(ctx context.Context, prNumber int) error
	// TriggerBuild restarts the CI build for a pull request.
	TriggerBuild(ctx context.Context, prNumber int) error

	// Startup operations.

	// ConfirmWebhook ensures a webhook delivering to the given URL exists on
	// the repository, creating one when absent.
	ConfirmWebhook(ctx context.Context, url string, events []string) error
	// RateLimitRemaining returns the number of core API calls left before the
	// rate limit is exhausted.
	RateLimitRemaining(ctx context.Context) (int, error)
}
