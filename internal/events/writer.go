package events

import (
	"context"
	"database/sql"
	"time"

	"flatconnect/internal/domain"
	"flatconnect/internal/repo"
)

// Notification types.
const (
	TypeIssueAssigned = "issue_assigned"
	TypeIssueUpdated  = "issue_updated"
	TypeIssueResolved = "issue_resolved"
	TypeSystem        = "system"
)

// Writer records user notifications inside the caller's transaction.
type Writer struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, userID int64, issueID, typ, message string) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	if typ == "" {
		typ = TypeSystem
	}
	_, err := w.Repo.InsertNotification(ctx, tx, userID, domain.Notification{
		IssueID:   issueID,
		Type:      typ,
		Message:   message,
		CreatedAt: w.Now().UTC().Format(time.RFC3339),
	})
	return err
}

// TypeForStatus picks the notification type for a status change.
func TypeForStatus(s domain.Status) string {
	if s == domain.StatusResolved {
		return TypeIssueResolved
	}
	return TypeIssueUpdated
}
