package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"flatconnect/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// IssueRow is an issue as stored; user references are ids.
type IssueRow struct {
	ID           string
	Title        string
	Description  string
	CategoryID   int
	CategoryName string
	Priority     domain.Priority
	Status       domain.Status
	ReporterID   int64
	AssignedToID *int64
	Latitude     *string
	Longitude    *string
	CreatedAt    string
	UpdatedAt    string
	ResolvedAt   *string
}

// IssueFilters narrows ListIssues. Zero values match everything.
type IssueFilters struct {
	ReporterID int64
	AssigneeID int64
	Status     domain.Status
}

const issueColumns = `i.id,i.title,i.description,COALESCE(i.category_id,0),COALESCE(c.name,''),i.priority,i.status,i.reporter_id,i.assigned_to_id,i.latitude,i.longitude,i.created_at,i.updated_at,i.resolved_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(s scanner) (IssueRow, error) {
	var (
		row        IssueRow
		assignee   sql.NullInt64
		lat, lng   sql.NullString
		resolvedAt sql.NullString
	)
	err := s.Scan(&row.ID, &row.Title, &row.Description, &row.CategoryID, &row.CategoryName, &row.Priority, &row.Status,
		&row.ReporterID, &assignee, &lat, &lng, &row.CreatedAt, &row.UpdatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return row, ErrNotFound
	}
	if err != nil {
		return row, err
	}
	if assignee.Valid {
		row.AssignedToID = &assignee.Int64
	}
	row.Latitude = nullString(lat)
	row.Longitude = nullString(lng)
	row.ResolvedAt = nullString(resolvedAt)
	return row, nil
}

func (r Repo) InsertIssue(ctx context.Context, tx *sql.Tx, i IssueRow) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO issues(id,title,description,category_id,priority,status,reporter_id,assigned_to_id,latitude,longitude,created_at,updated_at,resolved_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.Title, i.Description, nullableInt(i.CategoryID), i.Priority, i.Status, i.ReporterID,
		nullableInt64Ptr(i.AssignedToID), nullableStringPtr(i.Latitude), nullableStringPtr(i.Longitude),
		i.CreatedAt, i.UpdatedAt, nullableStringPtr(i.ResolvedAt))
	return err
}

// UpdateIssueState writes the mutable lifecycle fields.
func (r Repo) UpdateIssueState(ctx context.Context, tx *sql.Tx, i IssueRow) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE issues SET status=?, assigned_to_id=?, resolved_at=?, updated_at=? WHERE id=?`,
		i.Status, nullableInt64Ptr(i.AssignedToID), nullableStringPtr(i.ResolvedAt), i.UpdatedAt, i.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetIssue(ctx context.Context, tx *sql.Tx, id string) (IssueRow, error) {
	return scanIssue(r.q(tx).QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues i LEFT JOIN categories c ON c.id=i.category_id WHERE i.id=?`, id))
}

// ListIssues returns matching issues newest first.
func (r Repo) ListIssues(ctx context.Context, f IssueFilters) ([]IssueRow, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ReporterID != 0 {
		clauses = append(clauses, "i.reporter_id=?")
		args = append(args, f.ReporterID)
	}
	if f.AssigneeID != 0 {
		clauses = append(clauses, "i.assigned_to_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.Status != "" {
		clauses = append(clauses, "i.status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM issues i LEFT JOIN categories c ON c.id=i.category_id %s ORDER BY i.created_at DESC, i.id`, issueColumns, where)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []IssueRow
	for rows.Next() {
		row, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

func (r Repo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,description FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) CategoryExists(ctx context.Context, id int) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id=?`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
