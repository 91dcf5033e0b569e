package repo

import (
	"context"
	"database/sql"
	"strings"

	"flatconnect/internal/domain"
)

// User is an account row.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsStaff      bool
	CreatedAt    string
}

// FullName joins the name parts, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

const userColumns = `id,username,email,password_hash,first_name,last_name,is_staff,created_at`

func scanUser(s scanner) (User, error) {
	var u User
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsStaff, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// InsertUser creates an account and returns its id. Duplicate username or email is ErrConflict.
func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u User) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(username,email,password_hash,first_name,last_name,is_staff,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.Username, strings.ToLower(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.IsStaff, u.CreatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, ErrConflict
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id int64) (User, error) {
	return scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

// UserByLogin finds a user by email or username.
func (r Repo) UserByLogin(ctx context.Context, login string) (User, error) {
	login = strings.TrimSpace(login)
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=? OR username=? LIMIT 1`, strings.ToLower(login), login))
}

func (r Repo) UpdateUserNames(ctx context.Context, tx *sql.Tx, id int64, first, last string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE users SET first_name=?, last_name=? WHERE id=?`, first, last, id)
	return err
}

// GetProfile returns the profile of a user. A user without a profile row gets
// ErrNotFound.
func (r Repo) GetProfile(ctx context.Context, tx *sql.Tx, userID int64) (domain.Profile, error) {
	row := r.q(tx).QueryRowContext(ctx, `
SELECT u.first_name,u.last_name,u.email,COALESCE(p.role,''),COALESCE(p.flat_number,''),COALESCE(p.building_block,''),
  COALESCE(p.phone_number,''),COALESCE(p.emergency_contact,''),COALESCE(p.date_of_birth,''),COALESCE(p.specialization,''),p.is_verified
FROM profiles p JOIN users u ON u.id=p.user_id WHERE p.user_id=?`, userID)
	var p domain.Profile
	err := row.Scan(&p.FirstName, &p.LastName, &p.Email, &p.Role, &p.FlatNumber, &p.BuildingBlock,
		&p.PhoneNumber, &p.EmergencyContact, &p.DateOfBirth, &p.Specialization, &p.IsVerified)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) UpsertProfile(ctx context.Context, tx *sql.Tx, userID int64, p domain.Profile, updatedAt string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO profiles(user_id,role,flat_number,building_block,phone_number,emergency_contact,date_of_birth,specialization,is_verified,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET role=excluded.role, flat_number=excluded.flat_number, building_block=excluded.building_block,
  phone_number=excluded.phone_number, emergency_contact=excluded.emergency_contact, date_of_birth=excluded.date_of_birth,
  specialization=excluded.specialization, is_verified=excluded.is_verified, updated_at=excluded.updated_at`,
		userID, nullable(string(p.Role)), nullable(p.FlatNumber), nullable(p.BuildingBlock), nullable(p.PhoneNumber),
		nullable(p.EmergencyContact), nullable(p.DateOfBirth), nullable(p.Specialization), p.IsVerified, updatedAt)
	return err
}

// ListAssignable returns users whose role lets them hold issues.
func (r Repo) ListAssignable(ctx context.Context) ([]domain.Worker, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT u.id,u.username,u.email,u.first_name,u.last_name,p.role,COALESCE(p.phone_number,''),p.is_verified
FROM profiles p JOIN users u ON u.id=p.user_id
WHERE p.role IN ('worker','admin') ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Worker{}
	for rows.Next() {
		var (
			w           domain.Worker
			first, last string
		)
		if err := rows.Scan(&w.ID, &w.Username, &w.Email, &first, &last, &w.Role, &w.PhoneNumber, &w.IsVerified); err != nil {
			return nil, err
		}
		w.FullName = User{Username: w.Username, FirstName: first, LastName: last}.FullName()
		res = append(res, w)
	}
	return res, rows.Err()
}
