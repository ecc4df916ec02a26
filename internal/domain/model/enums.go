package model

import "fmt"

// StatusState is the verdict state of a commit status, as accepted by the
// GitHub Statuses API.
type StatusState string

const (
	StateSuccess StatusState = "success"
	StatePending StatusState = "pending"
	StateFailure StatusState = "failure"
)

// IsValid reports whether s is one of the three recognized verdict states.
func (s StatusState) IsValid() bool {
	switch s {
	case StateSuccess, StatePending, StateFailure:
		return true
	}
	return false
}

// RepoTier classifies a monitored repository. Some validators only apply to
// primary-tier repositories.
type RepoTier string

const (
	TierPrimary   RepoTier = "primary"
	TierAuxiliary RepoTier = "auxiliary"
	TierUnknown   RepoTier = "unknown"
)

// HookType identifies the event class a configured hook command responds to.
type HookType string

const (
	HookPush  HookType = "push"
	HookTag   HookType = "tag"
	HookBuild HookType = "build"
)

// NormalizeVerdict forces a verdict with an unrecognized state into a failure
// carrying a diagnostic description. A validator returning anything other
// than success, pending, or failure is defective and must not have its raw
// state forwarded to GitHub.
func NormalizeVerdict(v Verdict, validatorName string) Verdict {
	if v.State.IsValid() {
		return v
	}
	return Verdict{
		State:       StateFailure,
		Description: fmt.Sprintf("validator %q returned invalid state %q", validatorName, v.State),
		TargetURL:   v.TargetURL,
	}
}
