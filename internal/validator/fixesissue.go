package validator

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// Closing-keyword patterns per
// https://help.github.com/articles/closing-issues-via-commit-messages/.
var (
	fixesNumberRe = regexp.MustCompile(`(?i)(close[sd]?|fix|fixes|resolve[sd]?):? #\d+`)
	fixesURLRe    = regexp.MustCompile(`(?i)(close[sd]?|fix|fixes|resolve[sd]?):? https?://github\.com/[\da-z.-]+/[\da-z.-]+/issues/\d{1,10}`)
)

// FixesIssue verifies that the pull request body links an issue with a
// closing keyword. Only primary-tier repositories require issue links;
// everything else passes automatically, as do allowlisted actors.
type FixesIssue struct {
	allowlist []string
	guideURL  string
}

// NewFixesIssue creates the fixes-issue validator.
func NewFixesIssue(allowlist []string, guideURL string) *FixesIssue {
	return &FixesIssue{allowlist: allowlist, guideURL: guideURL}
}

// Name implements Validator.
func (f *FixesIssue) Name() string { return "Fixes Issue Validator" }

// Validate implements Validator.
func (f *FixesIssue) Validate(ctx context.Context, sha, actor string, repo driven.RepoClient) (model.Verdict, error) {
	slog.Info("validating issue link", "sha", sha, "repo", repo.FullName())

	if slices.Contains(f.allowlist, actor) {
		return model.Verdict{
			State:       model.StateSuccess,
			Description: "commit authored by a service account",
			TargetURL:   f.guideURL,
		}, nil
	}

	if repo.Tier() != model.TierPrimary {
		return model.Verdict{
			State:       model.StateSuccess,
			Description: string(repo.Tier()) + " repos don't require issues for PRs",
			TargetURL:   f.guideURL,
		}, nil
	}

	prs, err := repo.SearchOpenPullRequests(ctx, sha)
	if err != nil {
		return model.Verdict{}, err
	}

	if len(prs) == 0 {
		return model.Verdict{
			State:       model.StateFailure,
			Description: "No PR for commit",
			TargetURL:   f.guideURL,
		}, nil
	}
	if len(prs) > 1 {
		slog.Warn("commit linked to more than one open PR", "sha", sha, "count", len(prs))
	}

	pr := prs[0]
	if HasFixLinkToIssue(pr.Number, pr.Body) {
		return model.Verdict{
			State:       model.StateSuccess,
			Description: "PR is properly linked to an issue",
			TargetURL:   f.guideURL,
		}, nil
	}

	return model.Verdict{
		State:       model.StateFailure,
		Description: "This PR must be linked to an issue",
		TargetURL:   f.guideURL,
	}, nil
}

// HasFixLinkToIssue reports whether text links an issue with a closing
// keyword. A match pointing at the PR itself does not count.
func HasFixLinkToIssue(prNumber int, text string) bool {
	if text == "" {
		return false
	}

	prRef := strconv.Itoa(prNumber)

	if m := fixesNumberRe.FindString(text); m != "" && !strings.Contains(m, prRef) {
		return true
	}
	if m := fixesURLRe.FindString(text); m != "" && !strings.Contains(m, prRef) {
		return true
	}

	return false
}
