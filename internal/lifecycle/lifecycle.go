// Package lifecycle is the issue state machine shared by the client workflows
// and the local API emulator.
package lifecycle

import (
	"errors"
	"fmt"

	"flatconnect/internal/domain"
)

// Event drives a transition.
type Event string

const (
	EventAssign   Event = "assign"
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventClose    Event = "close"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrWorkerRequired    = errors.New("a worker must be selected")
	ErrPhotosRequired    = errors.New("at least one photo is required")
)

// Guard carries what the guarded transitions inspect.
type Guard struct {
	WorkerID   int64
	PhotoCount int
}

type transition struct {
	from  domain.Status
	event Event
	to    domain.Status
	check func(Guard) error
}

var transitions = []transition{
	{domain.StatusNew, EventAssign, domain.StatusAssigned, requireWorker},
	{domain.StatusAssigned, EventStart, domain.StatusInProgress, nil},
	{domain.StatusInProgress, EventComplete, domain.StatusResolved, requirePhotos},
	{domain.StatusResolved, EventClose, domain.StatusClosed, nil},
}

func requireWorker(g Guard) error {
	if g.WorkerID <= 0 {
		return ErrWorkerRequired
	}
	return nil
}

func requirePhotos(g Guard) error {
	if g.PhotoCount < 1 {
		return ErrPhotosRequired
	}
	return nil
}

// TransitionError reports a rejected transition.
type TransitionError struct {
	From  domain.Status
	Event Event
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an issue that is %s", e.Event, e.From)
}

func (e TransitionError) Unwrap() error { return ErrInvalidTransition }

// Fire applies ev to from, returning the new status when the guard holds.
func Fire(from domain.Status, ev Event, g Guard) (domain.Status, error) {
	for _, t := range transitions {
		if t.from != from || t.event != ev {
			continue
		}
		if t.check != nil {
			if err := t.check(g); err != nil {
				return from, err
			}
		}
		return t.to, nil
	}
	return from, TransitionError{From: from, Event: ev}
}

// EventFor finds the event that moves from one status to another.
func EventFor(from, to domain.Status) (Event, bool) {
	for _, t := range transitions {
		if t.from == from && t.to == to {
			return t.event, true
		}
	}
	return "", false
}

// Next returns the status ev would lead to from, ignoring guards.
func Next(from domain.Status, ev Event) (domain.Status, bool) {
	for _, t := range transitions {
		if t.from == from && t.event == ev {
			return t.to, true
		}
	}
	return "", false
}

// Can reports whether ev is defined for from.
func Can(from domain.Status, ev Event) bool {
	_, ok := Next(from, ev)
	return ok
}
