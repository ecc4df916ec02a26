package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
	"github.com/kestrelworks/repowarden/internal/validator"
)

// Event kinds this dispatcher routes. Anything else is acknowledged and
// ignored.
const (
	EventPush         = "push"
	EventStatus       = "status"
	EventPullRequest  = "pull_request"
	EventIssueComment = "issue_comment"
	EventGollum       = "gollum"
)

// Dispatcher classifies inbound webhook events, resolves the target
// repository context, and routes to the correct handler while suppressing
// feedback loops caused by this service's own status writes. It holds no
// per-event state: the repository map and registry are read-only after
// construction.
type Dispatcher struct {
	repos        map[string]driven.RepoClient
	registry     *validator.Registry
	orchestrator *Orchestrator
	hooks        *HookRunner
	mailer       driven.Mailer

	statusMarker    string
	ciContextPrefix string
	wikiDigestTo    string
}

// NewDispatcher wires a Dispatcher. repos is keyed by "org/name".
func NewDispatcher(
	repos map[string]driven.RepoClient,
	registry *validator.Registry,
	orchestrator *Orchestrator,
	hooks *HookRunner,
	mailer driven.Mailer,
	statusMarker string,
	ciContextPrefix string,
	wikiDigestTo string,
) *Dispatcher {
	return &Dispatcher{
		repos:           repos,
		registry:        registry,
		orchestrator:    orchestrator,
		hooks:           hooks,
		mailer:          mailer,
		statusMarker:    statusMarker,
		ciContextPrefix: ciContextPrefix,
		wikiDigestTo:    wikiDigestTo,
	}
}

// Dispatch routes one webhook delivery. Unrecognized event kinds and
// unmonitored repositories are expected noise: both are logged and
// acknowledged as nil. Errors returned here are for server-side logging
// only; the webhook endpoint answers 200 regardless.
func (d *Dispatcher) Dispatch(ctx context.Context, eventKind string, payload []byte) error {
	switch eventKind {
	case EventPush:
		return d.handlePush(ctx, payload)
	case EventStatus:
		return d.handleStatus(ctx, payload)
	case EventPullRequest:
		return d.handlePullRequest(ctx, payload)
	case EventIssueComment:
		return d.handleIssueComment(ctx, payload)
	case EventGollum:
		return d.handleGollum(ctx, payload)
	default:
		slog.Warn("ignoring unrecognized webhook event", "event", eventKind)
		return nil
	}
}

// repoFor resolves the repository client for a payload's repository slug.
// A nil return means the repository is not monitored.
func (d *Dispatcher) repoFor(fullName string) driven.RepoClient {
	repo, ok := d.repos[fullName]
	if !ok {
		slog.Info("event for unmonitored repository", "repo", fullName)
		return nil
	}
	return repo
}

// handlePush runs configured push hooks on a default-branch push and tag
// hooks on any tag push. Everything else is a no-op.
func (d *Dispatcher) handlePush(ctx context.Context, payload []byte) error {
	var event pushEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decoding push payload: %w", err)
	}

	repo := d.repoFor(event.Repository.FullName)
	if repo == nil {
		return nil
	}

	refType, refName, ok := splitRef(event.Ref)
	if !ok {
		slog.Debug("push to unhandled ref", "repo", repo.FullName(), "ref", event.Ref)
		return nil
	}

	switch refType {
	case "heads":
		slog.Info("push event", "repo", repo.FullName(), "branch", refName)
		if refName == repo.DefaultBranch() {
			d.hooks.Run(ctx, repo.HookCommands(model.HookPush))
		}
	case "tags":
		slog.Info("tag event", "repo", repo.FullName(), "tag", refName)
		d.hooks.Run(ctx, repo.HookCommands(model.HookTag))
	}

	return nil
}

// handleStatus reacts to a commit state change. A successful CI build of the
// default branch runs the build hooks and nothing else. An externally
// authored state change triggers full validation. A state change whose
// context matches a registered validator is this service's own feedback and
// is dropped to prevent infinite recursion.
func (d *Dispatcher) handleStatus(ctx context.Context, payload []byte) error {
	var event statusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decoding status payload: %w", err)
	}

	repo := d.repoFor(event.Repository.FullName)
	if repo == nil {
		return nil
	}

	slog.Info("commit state changed",
		"repo", repo.FullName(),
		"sha", event.SHA,
		"state", event.State,
		"context", event.Context,
	)

	onDefault := false
	for _, branch := range event.Branches {
		if branch.Name == repo.DefaultBranch() {
			onDefault = true
			break
		}
	}

	if event.State == "success" && onDefault && strings.HasPrefix(event.Context, d.ciContextPrefix) {
		slog.Info("build success on default branch", "repo", repo.FullName())
		d.hooks.Run(ctx, repo.HookCommands(model.HookBuild))
		return nil
	}

	if d.registry.Contains(event.Context) {
		// Our own status write echoing back; validating again would loop forever.
		slog.Debug("ignoring self-authored state change", "sha", event.SHA, "context", event.Context)
		return nil
	}

	commit, err := repo.GetCommit(ctx, event.SHA)
	if err != nil {
		return err
	}
	if commit.AuthorLogin == "" {
		// The API occasionally returns commits with no linked author. Surface
		// the gap instead of validating an unknown identity.
		return fmt.Errorf("no commit author specified for sha %s on %s", event.SHA, repo.FullName())
	}

	return d.validateAndLogSkips(ctx, event.SHA, commit.AuthorLogin, repo)
}

// handlePullRequest routes PR lifecycle events. A merge re-triggers builds on
// every sibling open PR. Other actions validate only when the most recent
// status on the head SHA was externally authored.
func (d *Dispatcher) handlePullRequest(ctx context.Context, payload []byte) error {
	var event pullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decoding pull_request payload: %w", err)
	}

	repo := d.repoFor(event.Repository.FullName)
	if repo == nil {
		return nil
	}

	pr := event.PullRequest
	slog.Info("pull request event",
		"pr", pr.HTMLURL,
		"action", event.Action,
		"author", pr.User.Login,
	)

	switch event.Action {
	case "closed":
		if !pr.Merged {
			return nil
		}
		slog.Debug("pull request merged, re-validating siblings", "repo", repo.FullName(), "pr", pr.Number)
		return d.orchestrator.RetriggerOpenPullRequests(ctx, repo, pr.Number)
	case "labeled", "unlabeled":
		return nil
	default:
		external, err := d.lastStatusWasExternal(ctx, repo, pr.Head.SHA)
		if err != nil {
			return err
		}
		if !external {
			slog.Debug("most recent status is self-authored, skipping validation", "sha", pr.Head.SHA)
			return nil
		}
		return d.validateAndLogSkips(ctx, pr.Head.SHA, pr.User.Login, repo)
	}
}

// handleIssueComment validates the tip commit of the commented pull request.
// Comments on plain issues are ignored.
func (d *Dispatcher) handleIssueComment(ctx context.Context, payload []byte) error {
	var event issueCommentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decoding issue_comment payload: %w", err)
	}

	repo := d.repoFor(event.Repository.FullName)
	if repo == nil {
		return nil
	}

	if event.Issue.PullRequest == nil {
		slog.Debug("comment on non-PR issue, ignoring", "repo", repo.FullName(), "issue", event.Issue.Number)
		return nil
	}

	commit, err := repo.GetLastCommit(ctx, event.Issue.Number)
	if err != nil {
		return err
	}

	return d.validateAndLogSkips(ctx, commit.SHA, commit.Actor(), repo)
}

// handleGollum mails a digest of wiki page edits when a digest recipient is
// configured.
func (d *Dispatcher) handleGollum(ctx context.Context, payload []byte) error {
	if d.wikiDigestTo == "" {
		return nil
	}

	var event gollumEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decoding gollum payload: %w", err)
	}

	repo := d.repoFor(event.Repository.FullName)
	if repo == nil {
		return nil
	}

	changes := make([]model.WikiChange, 0, len(event.Pages))
	for _, page := range event.Pages {
		changes = append(changes, model.WikiChange{
			PageTitle: page.Title,
			Action:    page.Action,
			HTMLURL:   page.HTMLURL,
		})
	}

	subject := fmt.Sprintf("[wiki-change] %s updated by %s", repo.FullName(), event.Sender.Login)

	var body strings.Builder
	for _, change := range changes {
		fmt.Fprintf(&body, "%s was %s: %s\n\n", change.PageTitle, change.Action, change.HTMLURL)
	}

	if err := d.mailer.Send(ctx, d.wikiDigestTo, subject, body.String()); err != nil {
		slog.Error("wiki digest send failed", "to", d.wikiDigestTo, "error", err)
		return err
	}

	return nil
}

// validateAndLogSkips runs full validation with status posting, downgrading
// the no-linked-PR condition to a warning.
func (d *Dispatcher) validateAndLogSkips(ctx context.Context, sha, actor string, repo driven.RepoClient) error {
	_, err := d.orchestrator.Validate(ctx, sha, actor, repo, true)
	if errors.Is(err, ErrNoLinkedPullRequest) {
		slog.Warn("skipping validation", "reason", err)
		return nil
	}
	return err
}

// lastStatusWasExternal reports whether the most recent status on sha was
// authored outside this service. A commit with no status history at all is
// treated as not external, matching the posting semantics: the first status
// arrives via the status event path, not here.
func (d *Dispatcher) lastStatusWasExternal(ctx context.Context, repo driven.RepoClient, sha string) (bool, error) {
	statuses, err := repo.ListStatuses(ctx, sha)
	if err != nil {
		return false, err
	}

	newest := model.NewestStatus(statuses)
	if newest == nil {
		return false, nil
	}

	return !newest.IsSelfAuthored(d.statusMarker), nil
}

// splitRef parses "refs/heads/name" or "refs/tags/name" into its type and
// name. Other ref shapes report ok=false.
func splitRef(ref string) (refType, refName string, ok bool) {
	parts := strings.SplitN(ref, "/", 3)
	if len(parts) != 3 || parts[0] != "refs" {
		return "", "", false
	}
	if parts[1] != "heads" && parts[1] != "tags" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
