package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"flatconnect/internal/domain"
	"flatconnect/internal/lifecycle"
	sdk "flatconnect/sdk/go"
)

// StatusUpdater performs the status-change call.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, issueID string, status domain.Status, photos []sdk.Attachment) error
}

// Advance drives the worker's side of the lifecycle: start, then complete with photos.
type Advance struct {
	Client  StatusUpdater
	Refresh RefreshFunc
	Log     zerolog.Logger

	pending inflight
}

// NewAdvance builds the worker status workflow.
func NewAdvance(client StatusUpdater, refresh RefreshFunc, log zerolog.Logger) *Advance {
	return &Advance{Client: client, Refresh: refresh, Log: log}
}

// Start moves an assigned issue to in_progress.
func (a *Advance) Start(ctx context.Context, issue domain.Issue) error {
	next, err := lifecycle.Fire(issue.Status, lifecycle.EventStart, lifecycle.Guard{})
	if err != nil {
		return opErr(OpStart, err)
	}
	return a.update(ctx, OpStart, issue.ID, next, nil)
}

// Busy reports whether a status change for issueID is in flight.
func (a *Advance) Busy(issueID string) bool {
	return a.pending.busy(issueID)
}

func (a *Advance) update(ctx context.Context, op Op, issueID string, status domain.Status, photos []sdk.Attachment) error {
	if !a.pending.begin(issueID) {
		return ErrBusy
	}
	err := a.Client.UpdateStatus(ctx, issueID, status, photos)
	a.pending.end(issueID)
	if err != nil {
		a.Log.Warn().Err(err).Str("issue", issueID).Str("status", string(status)).Msg("status update failed")
		return opErr(op, err)
	}
	a.Log.Info().Str("issue", issueID).Str("status", string(status)).Int("photos", len(photos)).Msg("status updated")
	if a.Refresh != nil {
		if err := a.Refresh(ctx); err != nil {
			a.Log.Warn().Err(err).Msg("refresh after status update failed")
		}
	}
	return nil
}

var ErrCompletionClosed = errors.New("completion dialog is closed")

// Completion is the photo-collection dialog for resolving an in-progress issue.
// Photos stay local until Submit.
type Completion struct {
	adv   *Advance
	issue domain.Issue

	mu     sync.Mutex
	photos []sdk.Attachment
	closed bool
}

// OpenCompletion opens the dialog for an in_progress issue.
func (a *Advance) OpenCompletion(issue domain.Issue) (*Completion, error) {
	if !lifecycle.Can(issue.Status, lifecycle.EventComplete) {
		return nil, opErr(OpComplete, lifecycle.TransitionError{From: issue.Status, Event: lifecycle.EventComplete})
	}
	return &Completion{adv: a, issue: issue}, nil
}

// Issue returns the issue being completed.
func (c *Completion) Issue() domain.Issue { return c.issue }

// AddPhoto queues a photo for upload.
func (c *Completion) AddPhoto(p sdk.Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompletionClosed
	}
	c.photos = append(c.photos, p)
	return nil
}

// RemovePhoto drops the i-th queued photo.
func (c *Completion) RemovePhoto(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompletionClosed
	}
	if i < 0 || i >= len(c.photos) {
		return fmt.Errorf("photo %d out of range (have %d)", i, len(c.photos))
	}
	c.photos = append(c.photos[:i], c.photos[i+1:]...)
	return nil
}

// Photos returns a copy of the queued photos.
func (c *Completion) Photos() []sdk.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sdk.Attachment, len(c.photos))
	copy(out, c.photos)
	return out
}

// Submit resolves the issue with every queued photo. With none queued it fails
// without calling the backend. On failure the dialog stays open with its photos.
func (c *Completion) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCompletionClosed
	}
	photos := make([]sdk.Attachment, len(c.photos))
	copy(photos, c.photos)
	c.mu.Unlock()

	next, err := lifecycle.Fire(c.issue.Status, lifecycle.EventComplete, lifecycle.Guard{PhotoCount: len(photos)})
	if err != nil {
		if errors.Is(err, lifecycle.ErrPhotosRequired) {
			return ErrPhotosRequired
		}
		return opErr(OpComplete, err)
	}
	if err := c.adv.update(ctx, OpComplete, c.issue.ID, next, photos); err != nil {
		return err
	}
	c.Close()
	return nil
}

// Close discards queued photos.
func (c *Completion) Close() {
	c.mu.Lock()
	c.photos = nil
	c.closed = true
	c.mu.Unlock()
}

// Closed reports whether the dialog has been closed.
func (c *Completion) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
