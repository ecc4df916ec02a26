// Package application contains the use-case services: the validation
// orchestrator, the webhook dispatcher, the hook command runner, and the
// staleness sweeper.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
	"github.com/kestrelworks/repowarden/internal/validator"
)

// ErrNoLinkedPullRequest is returned by Validate when the commit has no open
// pull request. Direct pushes are legitimately unlinked, so callers treat
// this as a recoverable skip, not a failure.
var ErrNoLinkedPullRequest = errors.New("commit has no linked open pull request")

// SlotKey identifies one (pull request, validator) pair within a validation
// run.
type SlotKey struct {
	PRNumber  int
	Validator string
}

// SlotResult is the outcome of one slot. Err captures a validator execution
// or status-posting error without aborting sibling slots.
type SlotResult struct {
	Verdict model.Verdict
	Posted  bool
	Err     error
}

// Result is the aggregate of one validation run against a commit.
type Result struct {
	SHA   string
	Slots map[SlotKey]SlotResult
}

// Failed returns the keys of slots that captured an error.
func (r *Result) Failed() []SlotKey {
	var failed []SlotKey
	for key, slot := range r.Slots {
		if slot.Err != nil {
			failed = append(failed, key)
		}
	}
	return failed
}

// Orchestrator runs every registered validator against a commit and posts
// one status per validator back to GitHub.
type Orchestrator struct {
	registry *validator.Registry
	marker   string
}

// NewOrchestrator creates an Orchestrator. marker is the product prefix
// stamped on every posted status description.
func NewOrchestrator(registry *validator.Registry, marker string) *Orchestrator {
	return &Orchestrator{registry: registry, marker: marker}
}

// Validate looks up the open pull requests linked to sha and runs the full
// validator set once per linked PR. All (PR, validator) pairs execute
// concurrently; the call returns only after every pair has completed. A
// single validator's error is captured in its slot and never cancels
// siblings. When postStatus is true, each successful verdict is posted
// eagerly on slot completion, exactly once per slot.
//
// Only a failure to enumerate the linked pull requests is a hard error.
func (o *Orchestrator) Validate(ctx context.Context, sha, actor string, repo driven.RepoClient, postStatus bool) (*Result, error) {
	prs, err := repo.SearchOpenPullRequests(ctx, sha)
	if err != nil {
		return nil, fmt.Errorf("enumerating pull requests for %s@%s: %w", repo.FullName(), sha, err)
	}

	if len(prs) == 0 {
		return nil, fmt.Errorf("%s on %s: %w", sha, repo.FullName(), ErrNoLinkedPullRequest)
	}

	validators := o.registry.All()
	result := &Result{
		SHA:   sha,
		Slots: make(map[SlotKey]SlotResult, len(prs)*len(validators)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, pr := range prs {
		slog.Info("validating pull request", "pr", pr.HTMLURL, "sha", sha)

		for _, v := range validators {
			wg.Add(1)
			go func(prNumber int, v validator.Validator) {
				defer wg.Done()

				slot := o.runSlot(ctx, sha, actor, repo, v, postStatus)

				mu.Lock()
				result.Slots[SlotKey{PRNumber: prNumber, Validator: v.Name()}] = slot
				mu.Unlock()
			}(pr.Number, v)
		}
	}

	wg.Wait()
	return result, nil
}

// runSlot executes one validator and, when requested, posts its status.
func (o *Orchestrator) runSlot(ctx context.Context, sha, actor string, repo driven.RepoClient, v validator.Validator, postStatus bool) SlotResult {
	slog.Debug("running commit validator", "validator", v.Name(), "sha", sha)

	verdict, err := v.Validate(ctx, sha, actor, repo)
	if err != nil {
		slog.Error("validator failed", "validator", v.Name(), "sha", sha, "error", err)
		return SlotResult{Err: err}
	}

	verdict = model.NormalizeVerdict(verdict, v.Name())

	if !postStatus {
		return SlotResult{Verdict: verdict}
	}

	status := model.Status{
		Context:     v.Name(),
		State:       string(verdict.State),
		Description: o.marker + verdict.Description,
		TargetURL:   verdict.TargetURL,
	}

	slog.Info("posting status",
		"validator", v.Name(),
		"sha", sha,
		"state", string(verdict.State),
	)

	if err := repo.CreateStatus(ctx, sha, status); err != nil {
		slog.Error("status post failed", "validator", v.Name(), "sha", sha, "error", err)
		return SlotResult{Verdict: verdict, Err: err}
	}

	return SlotResult{Verdict: verdict, Posted: true}
}

// RetriggerOpenPullRequests restarts CI builds for every open pull request
// except the one numbered exclude (pass 0 to retrigger all). A merge changes
// base-branch state for all siblings, so each needs a fresh build.
func (o *Orchestrator) RetriggerOpenPullRequests(ctx context.Context, repo driven.RepoClient, exclude int) error {
	prs, err := repo.ListOpenPullRequests(ctx)
	if err != nil {
		return fmt.Errorf("listing open pull requests for %s: %w", repo.FullName(), err)
	}

	slog.Debug("retriggering builds on open pull requests", "repo", repo.FullName(), "count", len(prs))

	g, gctx := errgroup.WithContext(ctx)
	for _, pr := range prs {
		if pr.Number == exclude {
			continue
		}
		g.Go(func() error {
			return repo.TriggerBuild(gctx, pr.Number)
		})
	}

	return g.Wait()
}
