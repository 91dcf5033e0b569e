// Package pages loads the issue collections each screen shows and renders them.
// Every load re-fetches the whole collection; nothing is cached between loads.
package pages

import (
	"context"
	"fmt"
	"time"

	"flatconnect/internal/domain"
	"flatconnect/internal/workflow"
)

// Source is the slice of the SDK the pages read from.
type Source interface {
	ListAll(ctx context.Context) ([]domain.Issue, error)
	ListMine(ctx context.Context) ([]domain.Issue, error)
	ListAssignedToMe(ctx context.Context) ([]domain.Issue, error)
	ListWorkers(ctx context.Context) ([]domain.Worker, error)
}

// Kind identifies a page.
type Kind string

const (
	KindAllComplaints   Kind = "all"
	KindMyComplaints    Kind = "mine"
	KindWorkerDashboard Kind = "worker"
	KindAdminAssignment Kind = "assign"
	KindDashboardHome   Kind = "dashboard"
)

var titles = map[Kind]string{
	KindAllComplaints:   "All Complaints",
	KindMyComplaints:    "My Complaints",
	KindWorkerDashboard: "Worker Dashboard",
	KindAdminAssignment: "Admin Task Assignment",
	KindDashboardHome:   "Dashboard",
}

// Counts aggregates issues by status.
type Counts struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Assigned   int `json:"assigned"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
	Other      int `json:"other"`
}

// CountByStatus tallies issues per status. Unknown statuses count as Other.
func CountByStatus(issues []domain.Issue) Counts {
	c := Counts{Total: len(issues)}
	for _, i := range issues {
		switch i.Status {
		case domain.StatusNew:
			c.New++
		case domain.StatusAssigned:
			c.Assigned++
		case domain.StatusInProgress:
			c.InProgress++
		case domain.StatusResolved:
			c.Resolved++
		case domain.StatusClosed:
			c.Closed++
		default:
			c.Other++
		}
	}
	return c
}

// Unassigned keeps new issues nobody holds yet.
func Unassigned(issues []domain.Issue) []domain.Issue {
	out := []domain.Issue{}
	for _, i := range issues {
		if i.Status == domain.StatusNew && i.AssignedTo == nil {
			out = append(out, i)
		}
	}
	return out
}

// Page is one loaded screen.
type Page struct {
	Kind     Kind            `json:"kind"`
	Title    string          `json:"title"`
	Role     domain.Role     `json:"role"`
	Issues   []domain.Issue  `json:"issues"`
	Workers  []domain.Worker `json:"workers,omitempty"`
	Counts   Counts          `json:"counts"`
	LoadedAt time.Time       `json:"loaded_at"`
}

// Pending returns the issues awaiting assignment on an assignment page.
func (p Page) Pending() []domain.Issue {
	return Unassigned(p.Issues)
}

// AllComplaints lists every issue the caller can see.
func AllComplaints(ctx context.Context, src Source, role domain.Role) (Page, error) {
	issues, err := src.ListAll(ctx)
	return build(KindAllComplaints, role, issues, nil, err)
}

// MyComplaints lists issues the caller reported.
func MyComplaints(ctx context.Context, src Source, role domain.Role) (Page, error) {
	issues, err := src.ListMine(ctx)
	return build(KindMyComplaints, role, issues, nil, err)
}

// WorkerDashboard lists issues assigned to the caller.
func WorkerDashboard(ctx context.Context, src Source, role domain.Role) (Page, error) {
	issues, err := src.ListAssignedToMe(ctx)
	return build(KindWorkerDashboard, role, issues, nil, err)
}

// AdminAssignment loads every issue plus the workers they can go to.
func AdminAssignment(ctx context.Context, src Source, role domain.Role) (Page, error) {
	issues, err := src.ListAll(ctx)
	if err != nil {
		return build(KindAdminAssignment, role, nil, nil, err)
	}
	workers, err := src.ListWorkers(ctx)
	return build(KindAdminAssignment, role, issues, workers, err)
}

// DashboardHome shows the collection that matters to the role: everything for
// admins, reported issues for members, assigned work for workers.
func DashboardHome(ctx context.Context, src Source, role domain.Role) (Page, error) {
	var (
		issues []domain.Issue
		err    error
	)
	switch {
	case role.CanAssign():
		issues, err = src.ListAll(ctx)
	case role == domain.RoleMember:
		issues, err = src.ListMine(ctx)
	default:
		issues, err = src.ListAssignedToMe(ctx)
	}
	return build(KindDashboardHome, role, issues, nil, err)
}

// LoadFunc loads one page.
type LoadFunc func(ctx context.Context, src Source, role domain.Role) (Page, error)

// ForKind returns the loader of a page kind.
func ForKind(k Kind) (LoadFunc, error) {
	switch k {
	case KindAllComplaints:
		return AllComplaints, nil
	case KindMyComplaints:
		return MyComplaints, nil
	case KindWorkerDashboard:
		return WorkerDashboard, nil
	case KindAdminAssignment:
		return AdminAssignment, nil
	case KindDashboardHome:
		return DashboardHome, nil
	}
	return nil, fmt.Errorf("unknown page %q", k)
}

func build(kind Kind, role domain.Role, issues []domain.Issue, workers []domain.Worker, err error) (Page, error) {
	if err != nil {
		return Page{}, &workflow.OpError{Op: workflow.OpLoad, Err: err}
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return Page{
		Kind:     kind,
		Title:    titles[kind],
		Role:     role,
		Issues:   issues,
		Workers:  workers,
		Counts:   CountByStatus(issues),
		LoadedAt: time.Now().UTC(),
	}, nil
}
