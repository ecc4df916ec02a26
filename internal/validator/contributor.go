package validator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// RosterFunc returns the GitHub logins of everyone who has signed the
// contributor license. The roster lives outside any single repository, so
// the provider is injected rather than read through the repo client.
type RosterFunc func(ctx context.Context) ([]string, error)

// Contributor verifies that the commit actor appears on the contributor
// roster. Logins on the allowlist (service accounts) pass automatically.
type Contributor struct {
	roster    RosterFunc
	allowlist []string
	rosterURL string // Linked from the status for humans to check the roster.
	signURL   string // Linked from failure statuses.
}

// NewContributor creates the contributor validator.
func NewContributor(roster RosterFunc, allowlist []string, rosterURL, signURL string) *Contributor {
	return &Contributor{
		roster:    roster,
		allowlist: allowlist,
		rosterURL: rosterURL,
		signURL:   signURL,
	}
}

// Name implements Validator.
func (c *Contributor) Name() string { return "Contributor Validator" }

// Validate implements Validator. A roster fetch error is reported as a
// failure verdict rather than an error so the result is visible on the
// commit instead of vanishing into a log.
func (c *Contributor) Validate(ctx context.Context, sha, actor string, repo driven.RepoClient) (model.Verdict, error) {
	slog.Info("validating contributor", "actor", actor, "sha", sha, "repo", repo.FullName())

	if slices.Contains(c.allowlist, actor) {
		return model.Verdict{
			State:       model.StateSuccess,
			Description: actor + " is allowlisted as a contributor",
			TargetURL:   "https://github.com/" + actor,
		}, nil
	}

	logins, err := c.roster(ctx)
	if err != nil {
		return model.Verdict{
			State:       model.StateFailure,
			Description: fmt.Sprintf("error fetching contributor roster: %v", err),
		}, nil
	}

	for _, login := range logins {
		if strings.EqualFold(login, actor) {
			return model.Verdict{
				State:       model.StateSuccess,
				Description: actor + " signed the Contributor License",
				TargetURL:   c.rosterURL,
			}, nil
		}
	}

	return model.Verdict{
		State:       model.StateFailure,
		Description: actor + " must sign the Contributor License",
		TargetURL:   c.signURL,
	}, nil
}
