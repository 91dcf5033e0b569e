// Package session persists the signed-in user's token and role in the
// workspace database. Nothing is cached in memory: every read goes to disk.
package session

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"time"

	"flatconnect/internal/db"
	"flatconnect/internal/domain"
	"flatconnect/internal/migrate"
)

const (
	keyToken            = "token"
	keyRole             = "role"
	keyProfileCompleted = "profileCompleted"
)

// Store is a key/value session store on SQLite.
type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

// Open opens (and migrates) the session database of a workspace.
func Open(workspace string) (*Store, error) {
	conn, err := db.Open(db.Config{Workspace: workspace, Name: db.SessionDB})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn, migrate.Session); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{DB: conn, Now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Session reads the persisted session.
func (s *Store) Session(ctx context.Context) (domain.Session, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key, value FROM kv WHERE key IN (?,?,?)`, keyToken, keyRole, keyProfileCompleted)
	if err != nil {
		return domain.Session{}, err
	}
	defer rows.Close()
	var out domain.Session
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domain.Session{}, err
		}
		switch k {
		case keyToken:
			out.Token = v
		case keyRole:
			out.Role = domain.Role(v)
		case keyProfileCompleted:
			out.ProfileCompleted, _ = strconv.ParseBool(v)
		}
	}
	return out, rows.Err()
}

// Save stores a fresh login, replacing whatever was there.
func (s *Store) Save(ctx context.Context, token string, role domain.Role) error {
	if token == "" {
		return errors.New("session token is required")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.put(ctx, tx, keyToken, token); err != nil {
		return err
	}
	if err := s.put(ctx, tx, keyRole, string(role)); err != nil {
		return err
	}
	return tx.Commit()
}

// SetRole updates the role, as profile completion does.
func (s *Store) SetRole(ctx context.Context, role domain.Role) error {
	return s.putOne(ctx, keyRole, string(role))
}

// MarkProfileCompleted records that the profile form was submitted.
func (s *Store) MarkProfileCompleted(ctx context.Context) error {
	return s.putOne(ctx, keyProfileCompleted, "true")
}

// Clear forgets everything, as logout and a new signup do.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM kv`)
	return err
}

func (s *Store) putOne(ctx context.Context, key, value string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.put(ctx, tx, key, value); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) put(ctx context.Context, tx *sql.Tx, key, value string) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO kv(key,value,updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, now().UTC().Format(time.RFC3339))
	return err
}

// Static is an in-memory session source for tests and one-off tokens.
type Static struct {
	mu sync.Mutex
	s  domain.Session
}

func NewStatic(token string, role domain.Role) *Static {
	return &Static{s: domain.Session{Token: token, Role: role}}
}

func (st *Static) Session(context.Context) (domain.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s, nil
}

func (st *Static) Save(_ context.Context, token string, role domain.Role) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Token, st.s.Role = token, role
	return nil
}

func (st *Static) SetRole(_ context.Context, role domain.Role) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Role = role
	return nil
}

func (st *Static) MarkProfileCompleted(context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ProfileCompleted = true
	return nil
}

func (st *Static) Clear(context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = domain.Session{}
	return nil
}
