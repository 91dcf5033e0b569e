package repo

import (
	"context"
	"database/sql"

	"flatconnect/internal/domain"
)

// Image kinds.
const (
	ImageReport     = "report"
	ImageCompletion = "completion"
)

func (r Repo) InsertImage(ctx context.Context, tx *sql.Tx, issueID, kind, path, uploadedAt string) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO issue_images(issue_id,kind,path,uploaded_at) VALUES (?,?,?,?)`,
		issueID, kind, path, uploadedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListImages returns an issue's images of one kind in upload order. Image holds
// the stored relative path.
func (r Repo) ListImages(ctx context.Context, tx *sql.Tx, issueID, kind string) ([]domain.IssueImage, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,path,uploaded_at FROM issue_images WHERE issue_id=? AND kind=? ORDER BY id`, issueID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.IssueImage{}
	for rows.Next() {
		var img domain.IssueImage
		if err := rows.Scan(&img.ID, &img.Image, &img.UploadedAt); err != nil {
			return nil, err
		}
		res = append(res, img)
	}
	return res, rows.Err()
}
