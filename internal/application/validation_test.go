package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/validator"
)

func passingValidator(name string) *stubValidator {
	return &stubValidator{
		name: name,
		fn: func(_ context.Context, _, _ string) (model.Verdict, error) {
			return model.Verdict{State: model.StateSuccess, Description: "ok"}, nil
		},
	}
}

func mustRegistry(t *testing.T, validators ...validator.Validator) *validator.Registry {
	t.Helper()
	r, err := validator.NewRegistry(validators...)
	require.NoError(t, err)
	return r
}

func TestValidate_RunsEverySlot(t *testing.T) {
	registry := mustRegistry(t, passingValidator("alpha"), passingValidator("beta"))

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) {
		return []model.PullRequest{
			{Number: 1, HTMLURL: "https://github.com/org/repo/pull/1"},
			{Number: 2, HTMLURL: "https://github.com/org/repo/pull/2"},
		}, nil
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	result, err := o.Validate(context.Background(), "abc123", "alice", repo, true)
	require.NoError(t, err)

	assert.Len(t, result.Slots, 4)
	assert.Empty(t, result.Failed())
	for _, key := range []SlotKey{
		{PRNumber: 1, Validator: "alpha"},
		{PRNumber: 1, Validator: "beta"},
		{PRNumber: 2, Validator: "alpha"},
		{PRNumber: 2, Validator: "beta"},
	} {
		slot, ok := result.Slots[key]
		require.True(t, ok, "missing slot %v", key)
		assert.True(t, slot.Posted)
	}

	// One status per completed slot, each stamped with the marker.
	statuses := repo.postedStatuses()
	assert.Len(t, statuses, 4)
	for _, s := range statuses {
		assert.True(t, strings.HasPrefix(s.Description, "Bot Status: "), "description %q lacks marker", s.Description)
	}
}

func TestValidate_NoLinkedPullRequest(t *testing.T) {
	registry := mustRegistry(t, passingValidator("alpha"))

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) { return nil, nil }

	o := NewOrchestrator(registry, "Bot Status: ")
	result, err := o.Validate(context.Background(), "abc123", "alice", repo, true)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoLinkedPullRequest)
	assert.Empty(t, repo.postedStatuses())
}

func TestValidate_SearchErrorIsHard(t *testing.T) {
	registry := mustRegistry(t, passingValidator("alpha"))

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) {
		return nil, errors.New("api down")
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	_, err := o.Validate(context.Background(), "abc123", "alice", repo, true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoLinkedPullRequest)
}

func TestValidate_ValidatorErrorDoesNotCancelSiblings(t *testing.T) {
	broken := &stubValidator{
		name: "broken",
		fn: func(_ context.Context, _, _ string) (model.Verdict, error) {
			return model.Verdict{}, errors.New("boom")
		},
	}
	registry := mustRegistry(t, broken, passingValidator("alpha"))

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) {
		return []model.PullRequest{{Number: 7}}, nil
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	result, err := o.Validate(context.Background(), "abc123", "alice", repo, true)
	require.NoError(t, err)

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, SlotKey{PRNumber: 7, Validator: "broken"}, failed[0])

	// The healthy sibling still completed and posted.
	healthy := result.Slots[SlotKey{PRNumber: 7, Validator: "alpha"}]
	assert.True(t, healthy.Posted)
	assert.Len(t, repo.postedStatuses(), 1)
}

func TestValidate_InvalidStateNormalizedToFailure(t *testing.T) {
	weird := &stubValidator{
		name: "weird",
		fn: func(_ context.Context, _, _ string) (model.Verdict, error) {
			return model.Verdict{State: "maybe", Description: "shrug"}, nil
		},
	}
	registry := mustRegistry(t, weird)

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) {
		return []model.PullRequest{{Number: 1}}, nil
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	result, err := o.Validate(context.Background(), "abc123", "alice", repo, true)
	require.NoError(t, err)

	slot := result.Slots[SlotKey{PRNumber: 1, Validator: "weird"}]
	assert.Equal(t, model.StateFailure, slot.Verdict.State)

	statuses := repo.postedStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, string(model.StateFailure), statuses[0].State)
}

func TestValidate_NoPostingWhenDisabled(t *testing.T) {
	registry := mustRegistry(t, passingValidator("alpha"))

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) {
		return []model.PullRequest{{Number: 1}}, nil
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	result, err := o.Validate(context.Background(), "abc123", "alice", repo, false)
	require.NoError(t, err)

	assert.False(t, result.Slots[SlotKey{PRNumber: 1, Validator: "alpha"}].Posted)
	assert.Empty(t, repo.postedStatuses())
}

func TestValidate_ActorReachesValidators(t *testing.T) {
	var gotActor string
	spy := &stubValidator{
		name: "spy",
		fn: func(_ context.Context, _, actor string) (model.Verdict, error) {
			gotActor = actor
			return model.Verdict{State: model.StateSuccess, Description: "ok"}, nil
		},
	}
	registry := mustRegistry(t, spy)

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) {
		return []model.PullRequest{{Number: 1}}, nil
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	_, err := o.Validate(context.Background(), "abc123", "carol", repo, false)
	require.NoError(t, err)
	assert.Equal(t, "carol", gotActor)
}

func TestValidate_RepeatRunsAgree(t *testing.T) {
	registry := mustRegistry(t, passingValidator("alpha"), passingValidator("beta"))

	repo := newFakeRepo("org/repo")
	repo.searchPRs = func(_ string) ([]model.PullRequest, error) {
		return []model.PullRequest{{Number: 1}, {Number: 2}}, nil
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	first, err := o.Validate(context.Background(), "abc123", "alice", repo, false)
	require.NoError(t, err)
	second, err := o.Validate(context.Background(), "abc123", "alice", repo, false)
	require.NoError(t, err)

	require.Len(t, second.Slots, len(first.Slots))
	for key, slot := range first.Slots {
		again, ok := second.Slots[key]
		require.True(t, ok, "missing slot %v on second run", key)
		assert.Equal(t, slot.Verdict.State, again.Verdict.State)
	}
}

func TestRetriggerOpenPullRequests_ExcludesOne(t *testing.T) {
	registry := mustRegistry(t, passingValidator("alpha"))

	repo := newFakeRepo("org/repo")
	repo.openPRs = func() ([]model.PullRequest, error) {
		return []model.PullRequest{{Number: 1}, {Number: 2}, {Number: 3}}, nil
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	require.NoError(t, o.RetriggerOpenPullRequests(context.Background(), repo, 2))

	assert.ElementsMatch(t, []int{1, 3}, repo.triggeredPRs)
}

func TestRetriggerOpenPullRequests_ListError(t *testing.T) {
	registry := mustRegistry(t, passingValidator("alpha"))

	repo := newFakeRepo("org/repo")
	repo.openPRs = func() ([]model.PullRequest, error) {
		return nil, fmt.Errorf("api down")
	}

	o := NewOrchestrator(registry, "Bot Status: ")
	assert.Error(t, o.RetriggerOpenPullRequests(context.Background(), repo, 0))
}
