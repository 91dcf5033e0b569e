package engine

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"flatconnect/internal/domain"
	"flatconnect/internal/repo"
)

// RegisterInput mirrors the registration form.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

type LoginUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

type LoginProfile struct {
	Role          domain.Role `json:"role"`
	FlatNumber    string      `json:"flat_number"`
	BuildingBlock string      `json:"building_block"`
	IsVerified    bool        `json:"is_verified"`
	HasProfile    bool        `json:"has_profile"`
}

// LoginResult is the token plus user and profile summaries.
type LoginResult struct {
	Key     string       `json:"key"`
	User    LoginUser    `json:"user"`
	Profile LoginProfile `json:"profile"`
}

// ProfileStatus says whether a profile row exists and carries the required fields.
type ProfileStatus struct {
	Exists     bool `json:"exists"`
	IsComplete bool `json:"is_complete"`
}

const minPasswordLen = 8

// Register creates an account with an empty profile.
func (e Engine) Register(ctx context.Context, in RegisterInput) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return 0, ValidationError{Field: "email", Message: "Enter a valid email address."}
	}
	if in.Password1 != in.Password2 {
		return 0, ValidationError{Field: "password2", Message: "The two password fields didn't match."}
	}
	if len(in.Password1) < minPasswordLen {
		return 0, ValidationError{Field: "password1", Message: "This password is too short. It must contain at least 8 characters."}
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password1), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	now := e.stamp()
	id, err := e.Repo.InsertUser(ctx, tx, repo.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	})
	if errors.Is(err, repo.ErrConflict) {
		return 0, ValidationError{Field: "email", Message: "A user is already registered with this e-mail address."}
	}
	if err != nil {
		return 0, wrapTx("insert user", err)
	}
	if err := e.Repo.UpsertProfile(ctx, tx, id, domain.Profile{}, now); err != nil {
		return 0, wrapTx("insert profile", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.Log.Info().Int64("user_id", id).Str("username", username).Msg("user registered")
	return id, nil
}

// Authenticate checks credentials (email or username) and issues a token.
func (e Engine) Authenticate(ctx context.Context, login, password string) (LoginResult, error) {
	if strings.TrimSpace(login) == "" || password == "" {
		return LoginResult{}, ValidationError{Field: "email", Message: "Email and password are required"}
	}
	u, err := e.Repo.UserByLogin(ctx, login)
	if errors.Is(err, repo.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	token, err := e.Tokens.Issue(u.ID)
	if err != nil {
		return LoginResult{}, err
	}
	res := LoginResult{
		Key: token,
		User: LoginUser{
			ID:          u.ID,
			Username:    u.Username,
			Email:       u.Email,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			IsStaff:     u.IsStaff,
			IsSuperuser: u.IsStaff,
		},
	}
	prof, err := e.Repo.GetProfile(ctx, nil, u.ID)
	switch {
	case err == nil:
		res.Profile = LoginProfile{
			Role:          prof.Role,
			FlatNumber:    prof.FlatNumber,
			BuildingBlock: prof.BuildingBlock,
			IsVerified:    prof.IsVerified,
			HasProfile:    true,
		}
	case !errors.Is(err, repo.ErrNotFound):
		return LoginResult{}, err
	}
	e.Log.Debug().Int64("user_id", u.ID).Msg("login")
	return res, nil
}

// Profile returns the caller's profile, creating an empty one on first read.
func (e Engine) Profile(ctx context.Context, p Principal) (domain.Profile, error) {
	prof, err := e.Repo.GetProfile(ctx, nil, p.UserID)
	if !errors.Is(err, repo.ErrNotFound) {
		return prof, err
	}
	if err := e.Repo.UpsertProfile(ctx, nil, p.UserID, domain.Profile{}, e.stamp()); err != nil {
		return domain.Profile{}, err
	}
	return e.Repo.GetProfile(ctx, nil, p.UserID)
}

// UpdateProfile merges the non-empty fields of patch into the caller's profile.
func (e Engine) UpdateProfile(ctx context.Context, p Principal, patch domain.Profile) (domain.Profile, error) {
	if patch.Role != "" && !knownRole(patch.Role) {
		return domain.Profile{}, ValidationError{Field: "role", Message: "\"" + string(patch.Role) + "\" is not a valid choice."}
	}
	if patch.DateOfBirth != "" && !validDate(patch.DateOfBirth) {
		return domain.Profile{}, ValidationError{Field: "date_of_birth", Message: "Date has wrong format. Use YYYY-MM-DD."}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Profile{}, err
	}
	defer tx.Rollback()
	cur, err := e.Repo.GetProfile(ctx, tx, p.UserID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Profile{}, err
	}
	mergeRole(&cur.Role, patch.Role)
	merge(&cur.FlatNumber, patch.FlatNumber)
	merge(&cur.BuildingBlock, patch.BuildingBlock)
	merge(&cur.PhoneNumber, patch.PhoneNumber)
	merge(&cur.EmergencyContact, patch.EmergencyContact)
	merge(&cur.DateOfBirth, patch.DateOfBirth)
	merge(&cur.Specialization, patch.Specialization)
	if patch.FirstName != "" || patch.LastName != "" {
		u, err := e.Repo.GetUser(ctx, tx, p.UserID)
		if err != nil {
			return domain.Profile{}, err
		}
		first, last := u.FirstName, u.LastName
		merge(&first, patch.FirstName)
		merge(&last, patch.LastName)
		if err := e.Repo.UpdateUserNames(ctx, tx, p.UserID, first, last); err != nil {
			return domain.Profile{}, wrapTx("update names", err)
		}
	}
	if err := e.Repo.UpsertProfile(ctx, tx, p.UserID, cur, e.stamp()); err != nil {
		return domain.Profile{}, wrapTx("upsert profile", err)
	}
	out, err := e.Repo.GetProfile(ctx, tx, p.UserID)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Profile{}, err
	}
	e.Log.Info().Int64("user_id", p.UserID).Str("role", string(out.Role)).Msg("profile updated")
	return out, nil
}

// ProfileStatus reports whether the caller's profile has role, flat and block.
func (e Engine) ProfileStatus(ctx context.Context, p Principal) (ProfileStatus, error) {
	prof, err := e.Repo.GetProfile(ctx, nil, p.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProfileStatus{}, nil
	}
	if err != nil {
		return ProfileStatus{}, err
	}
	complete := prof.FlatNumber != "" && prof.BuildingBlock != "" && strings.TrimSpace(string(prof.Role)) != ""
	return ProfileStatus{Exists: true, IsComplete: complete}, nil
}

func merge(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func mergeRole(dst *domain.Role, v domain.Role) {
	if v != "" {
		*dst = v
	}
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
