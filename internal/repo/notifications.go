package repo

import (
	"context"
	"database/sql"

	"flatconnect/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, userID int64, n domain.Notification) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO notifications(user_id,issue_id,type,message,is_read,created_at) VALUES (?,?,?,?,?,?)`,
		userID, nullable(n.IssueID), n.Type, n.Message, n.IsRead, n.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotifications returns a user's notifications newest first.
func (r Repo) ListNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(issue_id,''),type,message,is_read,created_at FROM notifications WHERE user_id=? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.IssueID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}
