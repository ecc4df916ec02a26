package validator

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// Changelog verifies that the repository's CHANGELOG file was modified
// between the default branch head and the commit under validation. A repo
// with no CHANGELOG passes; an unmodified CHANGELOG yields a pending verdict
// so a maintainer can decide whether an entry is warranted.
type Changelog struct {
	allowlist []string
	guideURL  string // Linked from statuses; points at the changelog guidelines.
}

// NewChangelog creates the changelog validator.
func NewChangelog(allowlist []string, guideURL string) *Changelog {
	return &Changelog{allowlist: allowlist, guideURL: guideURL}
}

// Name implements Validator.
func (c *Changelog) Name() string { return "CHANGELOG Validator" }

// Validate implements Validator.
func (c *Changelog) Validate(ctx context.Context, sha, actor string, repo driven.RepoClient) (model.Verdict, error) {
	slog.Info("validating changelog update", "sha", sha, "repo", repo.FullName())

	if slices.Contains(c.allowlist, actor) {
		return model.Verdict{
			State:       model.StateSuccess,
			Description: "commit authored by a service account",
			TargetURL:   c.guideURL,
		}, nil
	}

	changelogName, err := findChangelog(ctx, repo)
	if err != nil {
		return model.Verdict{}, err
	}
	if changelogName == "" {
		return model.Verdict{
			State:       model.StateSuccess,
			Description: "No CHANGELOG to update",
			TargetURL:   c.guideURL,
		}, nil
	}

	files, err := repo.CompareCommits(ctx, repo.DefaultBranch(), sha)
	if err != nil {
		return model.Verdict{}, err
	}

	if changelogModified(files, changelogName) {
		return model.Verdict{
			State:       model.StateSuccess,
			Description: changelogName + " was updated",
			TargetURL:   c.guideURL,
		}, nil
	}

	return model.Verdict{
		State:       model.StatePending,
		Description: "Update " + changelogName + " if necessary",
		TargetURL:   c.guideURL,
	}, nil
}

// findChangelog returns the name of the CHANGELOG file at the repository
// root, or "" when none exists.
func findChangelog(ctx context.Context, repo driven.RepoClient) (string, error) {
	contents, err := repo.GetContents(ctx, "")
	if err != nil {
		return "", err
	}

	for _, entry := range contents {
		if strings.Contains(entry.Name, "CHANGELOG") {
			return entry.Name, nil
		}
	}

	return "", nil
}

func changelogModified(files []model.CompareFile, changelogName string) bool {
	for _, f := range files {
		if f.Filename == changelogName && f.Status == "modified" {
			return true
		}
	}
	return false
}
