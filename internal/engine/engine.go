package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"flatconnect/internal/domain"
	"flatconnect/internal/engine/auth"
	"flatconnect/internal/events"
	"flatconnect/internal/repo"
)

// Engine holds the emulated backend's rules. Handlers translate HTTP to calls here.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Tokens auth.Tokens
	Media  MediaStore
	Log    zerolog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, tokens auth.Tokens, mediaDir string, log zerolog.Logger) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{Repo: r},
		Tokens: tokens,
		Media:  MediaStore{Dir: mediaDir, URLPrefix: "/media/"},
		Log:    log,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// ValidationError is a rejected request body; it maps to 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// NotFoundError names the missing thing and unwraps to repo.ErrNotFound.
type NotFoundError struct {
	What string
}

func (e NotFoundError) Error() string { return e.What + " not found" }

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

var (
	ErrInvalidCredentials = errors.New("Unable to log in with provided credentials.")
	ErrUnsupportedMedia   = errors.New("only image uploads are accepted")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID   int64
	Username string
	Role     domain.Role
	IsStaff  bool
}

// Allowed reports whether the caller holds perm. Staff accounts get admin rights
// on top of their profile role.
func (p Principal) Allowed(perm string) bool {
	if auth.HasPermission(p.Role, perm) {
		return true
	}
	return p.IsStaff && auth.HasPermission(domain.RoleAdmin, perm)
}

// require fails with auth.ForbiddenError carrying msg. Staff fall back to the
// admin grants.
func (p Principal) require(perm, msg string) error {
	err := auth.Require(p.Role, perm, msg)
	if err != nil && p.IsStaff {
		return auth.Require(domain.RoleAdmin, perm, msg)
	}
	return err
}

// PrincipalFromToken resolves a session token to the current user and role.
func (e Engine) PrincipalFromToken(ctx context.Context, token string) (Principal, error) {
	id, err := e.Tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	u, err := e.Repo.GetUser(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Principal{}, auth.ErrInvalidToken
		}
		return Principal{}, err
	}
	p := Principal{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff}
	prof, err := e.Repo.GetProfile(ctx, nil, u.ID)
	switch {
	case err == nil:
		p.Role = prof.Role
	case !errors.Is(err, repo.ErrNotFound):
		return Principal{}, err
	}
	return p, nil
}

func knownRole(r domain.Role) bool {
	switch r {
	case domain.RoleMember, domain.RoleSecretary, domain.RoleWorker, domain.RoleAdmin:
		return true
	}
	return false
}

func userRef(u repo.User) *domain.UserRef {
	return &domain.UserRef{ID: u.ID, Username: u.Username, Email: u.Email}
}

func wrapTx(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
