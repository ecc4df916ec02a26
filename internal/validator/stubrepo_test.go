package validator_test

import (
	"context"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// stubRepo implements the handful of RepoClient methods the validators
// touch. The embedded interface panics on anything else, which is exactly
// what a test should do when a validator reaches for an unexpected call.
type stubRepo struct {
	driven.RepoClient

	fullName      string
	tier          model.RepoTier
	defaultBranch string

	contents   []model.RepoContent
	compare    []model.CompareFile
	prs        []model.PullRequest
	contentErr error
	compareErr error
	searchErr  error
}

func (s *stubRepo) FullName() string      { return s.fullName }
func (s *stubRepo) Tier() model.RepoTier  { return s.tier }
func (s *stubRepo) DefaultBranch() string { return s.defaultBranch }

func (s *stubRepo) GetContents(_ context.Context, _ string) ([]model.RepoContent, error) {
	return s.contents, s.contentErr
}

func (s *stubRepo) CompareCommits(_ context.Context, _, _ string) ([]model.CompareFile, error) {
	return s.compare, s.compareErr
}

func (s *stubRepo) SearchOpenPullRequests(_ context.Context, _ string) ([]model.PullRequest, error) {
	return s.prs, s.searchErr
}
