package workflow

import (
	"context"
	"sync"

	"flatconnect/internal/domain"
	sdk "flatconnect/sdk/go"
)

type assignCall struct {
	issueID  string
	workerID int64
}

type fakeAssigner struct {
	mu    sync.Mutex
	calls []assignCall
	err   error
	gate  chan struct{}
}

func (f *fakeAssigner) Assign(ctx context.Context, issueID string, workerID int64) (sdk.AssignResult, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, assignCall{issueID, workerID})
	if f.err != nil {
		return sdk.AssignResult{}, f.err
	}
	return sdk.AssignResult{Status: "Issue assigned", IssueID: issueID, IssueStatus: domain.StatusAssigned, AssignedTo: domain.Worker{ID: workerID}}, nil
}

type statusCall struct {
	issueID string
	status  domain.Status
	photos  []sdk.Attachment
}

type fakeUpdater struct {
	mu    sync.Mutex
	calls []statusCall
	err   error
	gate  chan struct{}
}

func (f *fakeUpdater) UpdateStatus(ctx context.Context, issueID string, status domain.Status, photos []sdk.Attachment) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statusCall{issueID, status, photos})
	return f.err
}

func (f *fakeUpdater) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCreator struct {
	calls   []sdk.CreateIssueRequest
	err     error
	partial domain.Issue
}

func (f *fakeCreator) Create(ctx context.Context, in sdk.CreateIssueRequest) (domain.Issue, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return f.partial, f.err
	}
	return domain.Issue{ID: "issue-1", Title: in.Title, Status: domain.StatusNew}, nil
}

type refreshCounter struct {
	mu sync.Mutex
	n  int
}

func (r *refreshCounter) refresh(context.Context) error {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
	return nil
}

func (r *refreshCounter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

type errLocator struct{ err error }

func (l errLocator) Locate(context.Context) (Coordinates, error) { return Coordinates{}, l.err }

type fakeAuthClient struct {
	logins    int
	registers []sdk.RegisterRequest
	result    sdk.LoginResult
	loginErr  error
}

func (f *fakeAuthClient) Login(ctx context.Context, email, password string) (sdk.LoginResult, error) {
	f.logins++
	return f.result, f.loginErr
}

func (f *fakeAuthClient) Register(ctx context.Context, in sdk.RegisterRequest) error {
	f.registers = append(f.registers, in)
	return nil
}

func (f *fakeAuthClient) GoogleLoginURL(context.Context) (string, error) {
	return "https://accounts.example/o/oauth2", nil
}

type fakeProfileClient struct {
	updates []sdk.Profile
	err     error
}

func (f *fakeProfileClient) Profile(context.Context) (sdk.Profile, error) {
	if len(f.updates) == 0 {
		return sdk.Profile{}, nil
	}
	return f.updates[len(f.updates)-1], nil
}

func (f *fakeProfileClient) UpdateProfile(ctx context.Context, p sdk.Profile) (sdk.Profile, error) {
	if f.err != nil {
		return sdk.Profile{}, f.err
	}
	f.updates = append(f.updates, p)
	return p, nil
}
