package application

import (
	"context"
	"sync"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// --- Fake repository client ---

type postedComment struct {
	PRNumber int
	Body     string
}

// fakeRepoClient implements driven.RepoClient with overridable read
// behavior and recorded writes. Recording is mutex-guarded because the
// orchestrator posts statuses from concurrent goroutines.
type fakeRepoClient struct {
	mu sync.Mutex

	fullName      string
	tier          model.RepoTier
	defaultBranch string
	hooks         map[model.HookType][]string

	searchPRs  func(sha string) ([]model.PullRequest, error)
	openPRs    func() ([]model.PullRequest, error)
	statuses   func(sha string) ([]model.Status, error)
	commit     func(sha string) (model.Commit, error)
	lastCommit func(prNumber int) (model.Commit, error)
	contents   func(path string) ([]model.RepoContent, error)
	compare    func(base, head string) ([]model.CompareFile, error)

	createdStatuses []model.Status
	comments        []postedComment
	closedPRs       []int
	triggeredPRs    []int
}

func newFakeRepo(fullName string) *fakeRepoClient {
	return &fakeRepoClient{
		fullName:      fullName,
		tier:          model.TierPrimary,
		defaultBranch: "master",
	}
}

func (f *fakeRepoClient) FullName() string            { return f.fullName }
func (f *fakeRepoClient) Owner() string               { return "org" }
func (f *fakeRepoClient) Name() string                { return "repo" }
func (f *fakeRepoClient) Tier() model.RepoTier        { return f.tier }
func (f *fakeRepoClient) DefaultBranch() string       { return f.defaultBranch }
func (f *fakeRepoClient) HookCommands(t model.HookType) []string {
	return f.hooks[t]
}

func (f *fakeRepoClient) SearchOpenPullRequests(_ context.Context, sha string) ([]model.PullRequest, error) {
	if f.searchPRs == nil {
		return nil, nil
	}
	return f.searchPRs(sha)
}

func (f *fakeRepoClient) ListOpenPullRequests(_ context.Context) ([]model.PullRequest, error) {
	if f.openPRs == nil {
		return nil, nil
	}
	return f.openPRs()
}

func (f *fakeRepoClient) ListStatuses(_ context.Context, sha string) ([]model.Status, error) {
	if f.statuses == nil {
		return nil, nil
	}
	return f.statuses(sha)
}

func (f *fakeRepoClient) GetCommit(_ context.Context, sha string) (model.Commit, error) {
	if f.commit == nil {
		return model.Commit{SHA: sha}, nil
	}
	return f.commit(sha)
}

func (f *fakeRepoClient) GetLastCommit(_ context.Context, prNumber int) (model.Commit, error) {
	if f.lastCommit == nil {
		return model.Commit{}, nil
	}
	return f.lastCommit(prNumber)
}

func (f *fakeRepoClient) GetContents(_ context.Context, path string) ([]model.RepoContent, error) {
	if f.contents == nil {
		return nil, nil
	}
	return f.contents(path)
}

func (f *fakeRepoClient) CompareCommits(_ context.Context, base, head string) ([]model.CompareFile, error) {
	if f.compare == nil {
		return nil, nil
	}
	return f.compare(base, head)
}

func (f *fakeRepoClient) CreateStatus(_ context.Context, _ string, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdStatuses = append(f.createdStatuses, status)
	return nil
}

func (f *fakeRepoClient) CreateComment(_ context.Context, prNumber int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, postedComment{PRNumber: prNumber, Body: body})
	return nil
}

func (f *fakeRepoClient) ClosePullRequest(_ context.Context, prNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedPRs = append(f.closedPRs, prNumber)
	return nil
}

func (f *fakeRepoClient) TriggerBuild(_ context.Context, prNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggeredPRs = append(f.triggeredPRs, prNumber)
	return nil
}

func (f *fakeRepoClient) ConfirmWebhook(_ context.Context, _ string, _ []string) error {
	return nil
}

func (f *fakeRepoClient) RateLimitRemaining(_ context.Context) (int, error) {
	return 5000, nil
}

func (f *fakeRepoClient) postedStatuses() []model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Status(nil), f.createdStatuses...)
}

// --- Fake mailer ---

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// --- Stub validator ---

type stubValidator struct {
	name string
	fn   func(ctx context.Context, sha, actor string) (model.Verdict, error)
}

func (v *stubValidator) Name() string { return v.name }

func (v *stubValidator) Validate(ctx context.Context, sha, actor string, _ driven.RepoClient) (model.Verdict, error) {
	return v.fn(ctx, sha, actor)
}
