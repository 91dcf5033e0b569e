package domain

import "time"

// Status is an issue's position in its lifecycle.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Statuses lists the known statuses in lifecycle order.
var Statuses = []Status{StatusNew, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed}

// Known reports whether s is one of the lifecycle statuses.
func (s Status) Known() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority is the backend's ordinal priority code.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// Role is the session role tag.
type Role string

const (
	RoleMember    Role = "member"
	RoleSecretary Role = "secretary"
	RoleWorker    Role = "worker"
	RoleAdmin     Role = "admin"
)

// CanAssign reports whether the role may assign issues and list workers.
func (r Role) CanAssign() bool {
	return r == RoleAdmin || r == RoleSecretary
}

// Assignable reports whether a user with this role may be assigned an issue.
func (r Role) Assignable() bool {
	return r == RoleWorker || r == RoleAdmin
}

// UserRef is the nested user shape the backend embeds in issues.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type IssueImage struct {
	ID         int64  `json:"id"`
	Image      string `json:"image"`
	UploadedAt string `json:"uploaded_at,omitempty" format:"date-time"`
}

type Issue struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Category         int          `json:"category,omitempty"`
	CategoryName     string       `json:"category_name,omitempty"`
	Priority         Priority     `json:"priority"`
	Status           Status       `json:"status"`
	Reporter         *UserRef     `json:"reporter,omitempty"`
	AssignedTo       *UserRef     `json:"assigned_to,omitempty"`
	Latitude         *string      `json:"latitude,omitempty"`
	Longitude        *string      `json:"longitude,omitempty"`
	CreatedAt        string       `json:"created_at" format:"date-time"`
	UpdatedAt        string       `json:"updated_at,omitempty" format:"date-time"`
	ResolvedAt       *string      `json:"resolved_at,omitempty" format:"date-time"`
	CompletionPhotos []string     `json:"completion_photos"`
	Images           []IssueImage `json:"images,omitempty"`
}

// ReporterName returns the reporter's username or a placeholder.
func (i Issue) ReporterName() string {
	if i.Reporter == nil || i.Reporter.Username == "" {
		return "Unknown"
	}
	return i.Reporter.Username
}

// AssigneeName returns the assignee's username, or "" when unassigned.
func (i Issue) AssigneeName() string {
	if i.AssignedTo == nil {
		return ""
	}
	return i.AssignedTo.Username
}

// HasPhotos reports whether completion evidence is attached.
func (i Issue) HasPhotos() bool {
	return len(i.CompletionPhotos) > 0
}

// CheckInvariants reports the first lifecycle invariant the issue breaks, if any.
// The backend owns these; the client only checks copies it has fetched.
func (i Issue) CheckInvariants() error {
	held := i.Status == StatusAssigned || i.Status == StatusInProgress || i.Status == StatusResolved
	if held && i.AssignedTo == nil {
		return invariantError{issueID: i.ID, rule: "status " + string(i.Status) + " requires assigned_to"}
	}
	if !held && i.AssignedTo != nil {
		return invariantError{issueID: i.ID, rule: "assigned_to set while status is " + string(i.Status)}
	}
	if i.HasPhotos() && i.Status != StatusResolved {
		return invariantError{issueID: i.ID, rule: "completion photos on a " + string(i.Status) + " issue"}
	}
	resolvedOrLater := i.Status == StatusResolved || i.Status == StatusClosed
	if resolvedOrLater != (i.ResolvedAt != nil) {
		return invariantError{issueID: i.ID, rule: "resolved_at does not match status " + string(i.Status)}
	}
	return nil
}

type invariantError struct {
	issueID string
	rule    string
}

func (e invariantError) Error() string {
	return "issue " + e.issueID + ": " + e.rule
}

// ParseTime parses the backend's RFC3339 timestamps; zero time on failure.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type Worker struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Role        Role   `json:"role"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsVerified  bool   `json:"is_verified"`
}

// DisplayName prefers the full name.
func (w Worker) DisplayName() string {
	if w.FullName != "" {
		return w.FullName
	}
	return w.Username
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Session is what the client persists between invocations.
type Session struct {
	Token            string `json:"token"`
	Role             Role   `json:"role"`
	ProfileCompleted bool   `json:"profile_completed"`
}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

type Profile struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email,omitempty"`
	Role             Role   `json:"role,omitempty"`
	FlatNumber       string `json:"flat_number,omitempty"`
	BuildingBlock    string `json:"building_block,omitempty"`
	PhoneNumber      string `json:"phone_number,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Specialization   string `json:"specialization,omitempty"`
	IsVerified       bool   `json:"is_verified"`
}

// FullName joins first and last names.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Notification is an in-app message about an issue.
type Notification struct {
	ID        int64  `json:"id"`
	IssueID   string `json:"issue_id,omitempty"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
