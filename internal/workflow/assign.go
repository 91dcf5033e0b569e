package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"flatconnect/internal/domain"
	"flatconnect/internal/lifecycle"
	sdk "flatconnect/sdk/go"
)

// Assigner performs the assignment call.
type Assigner interface {
	Assign(ctx context.Context, issueID string, workerID int64) (sdk.AssignResult, error)
}

// RefreshFunc re-fetches the collection a page shows.
type RefreshFunc func(ctx context.Context) error

type AssignState int

const (
	AssignIdle AssignState = iota
	AssignSelecting
	AssignSubmitting
)

func (s AssignState) String() string {
	switch s {
	case AssignSelecting:
		return "selecting"
	case AssignSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

var ErrNotSelecting = errors.New("no assignment is open")

// Assignment is the admin's assign-to-worker modal.
type Assignment struct {
	Client  Assigner
	Refresh RefreshFunc
	Log     zerolog.Logger

	mu       sync.Mutex
	state    AssignState
	issue    domain.Issue
	workerID int64
	lastErr  error
}

// NewAssignment builds an idle assignment workflow.
func NewAssignment(client Assigner, refresh RefreshFunc, log zerolog.Logger) *Assignment {
	return &Assignment{Client: client, Refresh: refresh, Log: log}
}

// Open captures the target issue and shows the worker selection.
func (a *Assignment) Open(issue domain.Issue) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AssignSubmitting {
		return ErrBusy
	}
	if !lifecycle.Can(issue.Status, lifecycle.EventAssign) {
		return opErr(OpAssign, lifecycle.TransitionError{From: issue.Status, Event: lifecycle.EventAssign})
	}
	a.state = AssignSelecting
	a.issue = issue
	a.workerID = 0
	a.lastErr = nil
	return nil
}

// SelectWorker records the chosen worker. Zero clears the selection.
func (a *Assignment) SelectWorker(workerID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case AssignSubmitting:
		return ErrBusy
	case AssignIdle:
		return ErrNotSelecting
	}
	a.workerID = workerID
	return nil
}

// Cancel closes the modal and drops the selection.
func (a *Assignment) Cancel() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AssignSubmitting {
		return ErrBusy
	}
	a.reset()
	return nil
}

// Confirm sends the assignment. Without a selected worker it fails before any call.
// On failure the modal stays open with the selection kept; on success it closes
// and the page is refreshed.
func (a *Assignment) Confirm(ctx context.Context) (sdk.AssignResult, error) {
	a.mu.Lock()
	switch a.state {
	case AssignSubmitting:
		a.mu.Unlock()
		return sdk.AssignResult{}, ErrBusy
	case AssignIdle:
		a.mu.Unlock()
		return sdk.AssignResult{}, ErrNotSelecting
	}
	if a.workerID <= 0 {
		a.lastErr = ErrNoWorkerSelected
		a.mu.Unlock()
		return sdk.AssignResult{}, ErrNoWorkerSelected
	}
	if _, err := lifecycle.Fire(a.issue.Status, lifecycle.EventAssign, lifecycle.Guard{WorkerID: a.workerID}); err != nil {
		a.lastErr = opErr(OpAssign, err)
		a.mu.Unlock()
		return sdk.AssignResult{}, a.lastErr
	}
	a.state = AssignSubmitting
	issueID, workerID := a.issue.ID, a.workerID
	a.mu.Unlock()

	res, err := a.Client.Assign(ctx, issueID, workerID)

	a.mu.Lock()
	if err != nil {
		a.state = AssignSelecting
		a.lastErr = opErr(OpAssign, err)
		a.mu.Unlock()
		a.Log.Warn().Err(err).Str("issue", issueID).Int64("worker", workerID).Msg("assign failed")
		return res, a.lastErr
	}
	a.reset()
	a.mu.Unlock()
	a.Log.Info().Str("issue", issueID).Int64("worker", workerID).Msg("issue assigned")
	if a.Refresh != nil {
		if err := a.Refresh(ctx); err != nil {
			a.Log.Warn().Err(err).Msg("refresh after assign failed")
		}
	}
	return res, nil
}

func (a *Assignment) reset() {
	a.state = AssignIdle
	a.issue = domain.Issue{}
	a.workerID = 0
	a.lastErr = nil
}

// State reports the modal state.
func (a *Assignment) State() AssignState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Issue returns the issue the modal was opened for.
func (a *Assignment) Issue() domain.Issue {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issue
}

// SelectedWorker returns the current selection, zero when none.
func (a *Assignment) SelectedWorker() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workerID
}

// LastError is the failure shown in the open modal.
func (a *Assignment) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
