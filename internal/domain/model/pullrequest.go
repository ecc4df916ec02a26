// Package model holds the domain types shared by the dispatcher, the
// validation orchestrator, and the staleness sweeper.
package model

import (
	"slices"
	"time"
)

// PullRequest is a point-in-time snapshot of a GitHub pull request. It is
// fetched fresh on every dispatch or sweep and never persisted.
type PullRequest struct {
	Number       int
	RepoFullName string
	Title        string
	Body         string
	Author       string
	HTMLURL      string
	HeadSHA      string
	BaseBranch   string
	Merged       bool
	Labels       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasLabel reports whether the snapshot carries the given label.
func (pr PullRequest) HasLabel(name string) bool {
	return slices.Contains(pr.Labels, name)
}

// UpdatedBefore reports whether the PR's last update is older than the given
// cutoff.
func (pr PullRequest) UpdatedBefore(cutoff time.Time) bool {
	return pr.UpdatedAt.Before(cutoff)
}
