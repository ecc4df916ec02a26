package model

import (
	"strings"
	"time"
)

// Verdict is the outcome of a single validator run against a commit.
type Verdict struct {
	State       StatusState
	Description string
	TargetURL   string
}

// Status is an externally visible commit status record, either one this
// service posted or one authored by an outside system (CI, other bots).
type Status struct {
	Context     string
	State       string
	Description string
	TargetURL   string
	CreatedAt   time.Time
}

// IsSelfAuthored reports whether the status was posted by this service,
// recognized by the product marker prefix on the description. The marker is
// the sole signal distinguishing our statuses from external ones.
func (s Status) IsSelfAuthored(marker string) bool {
	return strings.HasPrefix(s.Description, marker)
}

// NewestStatus returns the most recently created status in the slice, or nil
// when the slice is empty.
func NewestStatus(statuses []Status) *Status {
	var newest *Status
	for i := range statuses {
		if newest == nil || statuses[i].CreatedAt.After(newest.CreatedAt) {
			newest = &statuses[i]
		}
	}
	return newest
}
