package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// StalenessAction is the escalation a sweep assigns to one pull request.
type StalenessAction int

const (
	ActionNone StalenessAction = iota
	ActionRemind
	ActionWarn
	ActionClose
)

// StalenessPolicy holds the thresholds and label names driving the sweep.
// Classification is re-derived from labels on every run; nothing is
// persisted between runs.
type StalenessPolicy struct {
	ReadyReminderAfter time.Duration
	WarnAfter          time.Duration
	CloseAfter         time.Duration
	ReadyLabel         string
	InProgressLabel    string
	HelpWantedLabel    string
}

// Classify buckets one pull request at one evaluation instant. The ready
// label takes priority over the in-progress labels when both are present,
// since a reminder is less destructive than a warn or close.
func (p StalenessPolicy) Classify(pr model.PullRequest, now time.Time) StalenessAction {
	switch {
	case pr.HasLabel(p.ReadyLabel):
		if pr.UpdatedBefore(now.Add(-p.ReadyReminderAfter)) {
			return ActionRemind
		}
	case pr.HasLabel(p.InProgressLabel) || pr.HasLabel(p.HelpWantedLabel):
		if pr.UpdatedBefore(now.Add(-p.CloseAfter)) {
			return ActionClose
		}
		if pr.UpdatedBefore(now.Add(-p.WarnAfter)) {
			return ActionWarn
		}
	}
	return ActionNone
}

// WarnComment is the comment posted on a PR entering the warn bucket.
func (p StalenessPolicy) WarnComment() string {
	warnDays := int(p.WarnAfter.Hours() / 24)
	graceDays := int((p.CloseAfter - p.WarnAfter).Hours() / 24)
	return fmt.Sprintf("**WARNING!** This Pull Request has been inactive for %d days,"+
		" and will be **automatically closed in %d days** if not updated before then."+
		" *This is an automated message.*", warnDays, graceDays)
}

// CloseComment is the comment posted after auto-closing a PR.
func (p StalenessPolicy) CloseComment() string {
	graceDays := int((p.CloseAfter - p.WarnAfter).Hours() / 24)
	return fmt.Sprintf("This Pull Request is now automatically **closed due to inactivity**,"+
		" as warned about %d days ago. *This is an automated message.*", graceDays)
}

// sweepEntry pairs a classified PR with the client able to act on it.
type sweepEntry struct {
	pr   model.PullRequest
	repo driven.RepoClient
}

// Sweeper walks every monitored repository's open pull requests on a fixed
// schedule and escalates them by label and age.
type Sweeper struct {
	repos      map[string]driven.RepoClient
	mailer     driven.Mailer
	policy     StalenessPolicy
	reminderTo string
	interval   time.Duration
	now        func() time.Time
}

// NewSweeper creates a Sweeper. reminderTo receives the review-reminder
// digest; when empty the remind bucket is logged and dropped.
func NewSweeper(
	repos map[string]driven.RepoClient,
	mailer driven.Mailer,
	policy StalenessPolicy,
	reminderTo string,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		repos:      repos,
		mailer:     mailer,
		policy:     policy,
		reminderTo: reminderTo,
		interval:   interval,
		now:        time.Now,
	}
}

// Start runs an immediate sweep, then sweeps on the configured interval
// until the context is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	if err := s.Sweep(ctx); err != nil {
		slog.Error("initial staleness sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("staleness sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("staleness sweep failed", "error", err)
			}
		}
	}
}

// Sweep performs one full pass: fetch open PRs for every repository,
// classify all of them, then execute the three action batches. All
// classification completes before any action executes so the reminder
// digest always lists every qualifying PR across all repositories. One
// repository's fetch failure never blocks the others.
func (s *Sweeper) Sweep(ctx context.Context) error {
	start := s.now()

	var (
		remind []sweepEntry
		warn   []sweepEntry
		closed []sweepEntry
		total  int
		fails  int
	)

	for _, repo := range s.repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		prs, err := repo.ListOpenPullRequests(ctx)
		if err != nil {
			slog.Error("open PR fetch failed", "repo", repo.FullName(), "error", err)
			fails++
			continue
		}

		total += len(prs)
		for _, pr := range prs {
			switch s.policy.Classify(pr, start) {
			case ActionRemind:
				remind = append(remind, sweepEntry{pr: pr, repo: repo})
			case ActionWarn:
				warn = append(warn, sweepEntry{pr: pr, repo: repo})
			case ActionClose:
				closed = append(closed, sweepEntry{pr: pr, repo: repo})
			}
		}
	}

	if len(remind) > 0 {
		s.sendReviewReminder(ctx, remind)
	}
	if len(closed) > 0 {
		s.closeExpired(ctx, closed)
	}
	if len(warn) > 0 {
		s.warnExpiring(ctx, warn)
	}

	slog.Info("staleness sweep complete",
		"repos", len(s.repos),
		"fetch_errors", fails,
		"open_prs", total,
		"remind", len(remind),
		"warn", len(warn),
		"close", len(closed),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// sendReviewReminder mails one digest listing every PR awaiting review.
func (s *Sweeper) sendReviewReminder(ctx context.Context, entries []sweepEntry) {
	slog.Info("sending review reminders", "count", len(entries))

	if s.reminderTo == "" {
		slog.Error("no recipient configured for PR review reminders")
		return
	}

	subject := fmt.Sprintf("%d pull requests need review", len(entries))

	var body strings.Builder
	body.WriteString("Hello! Here is a list of pull requests awaiting review:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&body, "- %s --- %s\n", e.pr.Title, e.pr.HTMLURL)
	}
	body.WriteString("\nThese pull requests have been ready for review for over a week!\n")
	body.WriteString("Please make it a priority to review these contributions\n")
	body.WriteString("or discuss reasons why they cannot be merged.\n")

	if err := s.mailer.Send(ctx, s.reminderTo, subject, body.String()); err != nil {
		slog.Error("review reminder send failed", "to", s.reminderTo, "error", err)
	}
}

// closeExpired closes each expired PR and posts an explanatory comment.
// Per-PR failures are logged and do not stop the batch.
func (s *Sweeper) closeExpired(ctx context.Context, entries []sweepEntry) {
	slog.Info("closing expired pull requests", "count", len(entries))

	for _, e := range entries {
		if err := e.repo.ClosePullRequest(ctx, e.pr.Number); err != nil {
			slog.Error("close failed", "repo", e.repo.FullName(), "pr", e.pr.Number, "error", err)
			continue
		}
		slog.Info("closed due to inactivity", "repo", e.repo.FullName(), "pr", e.pr.Number)

		if err := e.repo.CreateComment(ctx, e.pr.Number, s.policy.CloseComment()); err != nil {
			slog.Error("close comment failed", "repo", e.repo.FullName(), "pr", e.pr.Number, "error", err)
		}
	}
}

// warnExpiring comments on each PR approaching expiration.
func (s *Sweeper) warnExpiring(ctx context.Context, entries []sweepEntry) {
	slog.Info("warning expiring pull requests", "count", len(entries))

	for _, e := range entries {
		if err := e.repo.CreateComment(ctx, e.pr.Number, s.policy.WarnComment()); err != nil {
			slog.Error("warn comment failed", "repo", e.repo.FullName(), "pr", e.pr.Number, "error", err)
		}
	}
}
