// Package view derives what an issue looks like to a given viewer: badge and
// priority labels and the single action the viewer may take on it.
package view

import (
	"flatconnect/internal/domain"
	"flatconnect/internal/lifecycle"
)

var statusLabels = map[domain.Status]string{
	domain.StatusNew:        "New",
	domain.StatusAssigned:   "Assigned",
	domain.StatusInProgress: "In Progress",
	domain.StatusResolved:   "Resolved",
	domain.StatusClosed:     "Closed",
}

// StatusLabel returns the badge text. Unknown statuses pass through verbatim.
func StatusLabel(s domain.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	if s == "" {
		return "Unknown"
	}
	return string(s)
}

// PriorityLabel maps the ordinal priority to its label.
func PriorityLabel(p domain.Priority) string {
	switch p {
	case domain.PriorityLow:
		return "Low"
	case domain.PriorityMedium:
		return "Medium"
	case domain.PriorityHigh:
		return "High"
	case domain.PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

var categoryLabels = map[int]string{
	1: "Plumbing",
	2: "Electrical",
	3: "Cleaning",
	4: "Security",
	5: "Other",
}

// CategoryLabel names the issue's category, preferring the fixed code table.
func CategoryLabel(i domain.Issue) string {
	if label, ok := categoryLabels[i.Category]; ok {
		return label
	}
	if i.CategoryName != "" {
		return i.CategoryName
	}
	return "Uncategorized"
}

// Action is what a viewer may do with an issue. The set of implementations is closed.
type Action interface {
	Label() string
	action()
}

type (
	NoAction             struct{}
	AssignAction         struct{}
	StartAction          struct{}
	CompletePhotosAction struct{}
	ViewPhotosAction     struct{ Photos []string }
	// TaskCompleted is the read-only notice a worker sees on a resolved task.
	TaskCompleted struct{ ResolvedAt string }
)

func (NoAction) Label() string             { return "" }
func (AssignAction) Label() string         { return "Assign to Worker" }
func (StartAction) Label() string          { return "Start Work" }
func (CompletePhotosAction) Label() string { return "Complete with Photos" }
func (ViewPhotosAction) Label() string     { return "View Photos" }
func (TaskCompleted) Label() string        { return "Task Completed" }

func (NoAction) action()             {}
func (AssignAction) action()         {}
func (StartAction) action()          {}
func (CompletePhotosAction) action() {}
func (ViewPhotosAction) action()     {}
func (TaskCompleted) action()        {}

// Event returns the lifecycle event an action fires, if it fires one.
func Event(a Action) (lifecycle.Event, bool) {
	switch a.(type) {
	case AssignAction:
		return lifecycle.EventAssign, true
	case StartAction:
		return lifecycle.EventStart, true
	case CompletePhotosAction:
		return lifecycle.EventComplete, true
	default:
		return "", false
	}
}

// ActionFor returns the one action role may take on issue. Every pair maps to exactly
// one variant; NoAction covers everything without an affordance.
func ActionFor(issue domain.Issue, role domain.Role) Action {
	switch {
	case role.CanAssign():
		switch issue.Status {
		case domain.StatusNew:
			return AssignAction{}
		case domain.StatusResolved:
			if issue.HasPhotos() {
				return ViewPhotosAction{Photos: issue.CompletionPhotos}
			}
		}
	case role == domain.RoleWorker:
		switch issue.Status {
		case domain.StatusAssigned:
			return StartAction{}
		case domain.StatusInProgress:
			return CompletePhotosAction{}
		case domain.StatusResolved:
			resolved := ""
			if issue.ResolvedAt != nil {
				resolved = *issue.ResolvedAt
			}
			return TaskCompleted{ResolvedAt: resolved}
		}
	}
	return NoAction{}
}

// FormatDate renders a backend timestamp as a date, or "Not Available".
func FormatDate(s string) string {
	t := domain.ParseTime(s)
	if t.IsZero() {
		return "Not Available"
	}
	return t.Format("2006-01-02")
}
