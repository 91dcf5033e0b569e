package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"flatconnect/internal/domain"
	sdk "flatconnect/sdk/go"
)

// SessionKeeper is the persisted session the auth and profile flows write to.
type SessionKeeper interface {
	sdk.SessionSource
	Save(ctx context.Context, token string, role domain.Role) error
	SetRole(ctx context.Context, role domain.Role) error
	MarkProfileCompleted(ctx context.Context) error
	Clear(ctx context.Context) error
}

// AuthClient is the slice of the SDK the auth flows call.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (sdk.LoginResult, error)
	Register(ctx context.Context, in sdk.RegisterRequest) error
	GoogleLoginURL(ctx context.Context) (string, error)
}

// Page names where the user lands after an auth flow.
type Page string

const (
	PageDashboard         Page = "dashboard"
	PageMyComplaints      Page = "mycomplaints"
	PageWorkerDashboard   Page = "workerdashboard"
	PageProfileCompletion Page = "profile-completion"
)

// Landing returns the home page for a role.
func Landing(role domain.Role) Page {
	switch {
	case role.CanAssign():
		return PageDashboard
	case role == domain.RoleMember:
		return PageMyComplaints
	default:
		return PageWorkerDashboard
	}
}

// Auth runs login, signup, logout and the Google redirect lookup.
type Auth struct {
	Client   AuthClient
	Sessions SessionKeeper
	Log      zerolog.Logger
}

// LoginOutcome is what a successful login or signup leaves behind.
type LoginOutcome struct {
	Result  sdk.LoginResult
	Landing Page
}

// Login authenticates and persists the token and role.
func (a *Auth) Login(ctx context.Context, email, password string) (LoginOutcome, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return LoginOutcome{}, &ValidationError{Fields: missingCredentials(email, password), Message: "Email and password are required."}
	}
	res, err := a.Client.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		a.Log.Warn().Err(err).Msg("login failed")
		return LoginOutcome{}, opErr(OpLogin, err)
	}
	if err := a.Sessions.Save(ctx, res.Key, res.Profile.Role); err != nil {
		return LoginOutcome{}, fmt.Errorf("persist session: %w", err)
	}
	a.Log.Info().Str("role", string(res.Profile.Role)).Msg("logged in")
	return LoginOutcome{Result: res, Landing: Landing(res.Profile.Role)}, nil
}

func missingCredentials(email, password string) []string {
	var out []string
	if strings.TrimSpace(email) == "" {
		out = append(out, "email")
	}
	if password == "" {
		out = append(out, "password")
	}
	return out
}

// SignupForm is the registration form.
type SignupForm struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// Signup clears any stored session, registers, then logs in. The user lands on
// profile completion.
func (a *Auth) Signup(ctx context.Context, form SignupForm) (LoginOutcome, error) {
	if err := a.Sessions.Clear(ctx); err != nil {
		return LoginOutcome{}, fmt.Errorf("clear session: %w", err)
	}
	email := strings.TrimSpace(form.Email)
	if email == "" || form.Password == "" {
		return LoginOutcome{}, &ValidationError{Fields: missingCredentials(email, form.Password), Message: "Email and password are required."}
	}
	if form.Password != form.ConfirmPassword {
		return LoginOutcome{}, ErrPasswordMismatch
	}
	username, _, _ := strings.Cut(email, "@")
	err := a.Client.Register(ctx, sdk.RegisterRequest{
		Username:  username,
		Email:     email,
		Password1: form.Password,
		Password2: form.ConfirmPassword,
	})
	if err != nil {
		a.Log.Warn().Err(err).Msg("registration failed")
		return LoginOutcome{}, opErr(OpSignup, err)
	}
	res, err := a.Client.Login(ctx, email, form.Password)
	if err != nil {
		return LoginOutcome{}, opErr(OpSignup, err)
	}
	if err := a.Sessions.Save(ctx, res.Key, res.Profile.Role); err != nil {
		return LoginOutcome{}, fmt.Errorf("persist session: %w", err)
	}
	a.Log.Info().Str("username", username).Msg("account created")
	return LoginOutcome{Result: res, Landing: PageProfileCompletion}, nil
}

// Logout forgets the stored session.
func (a *Auth) Logout(ctx context.Context) error {
	return a.Sessions.Clear(ctx)
}

// GoogleURL returns the backend's OAuth redirect URL.
func (a *Auth) GoogleURL(ctx context.Context) (string, error) {
	u, err := a.Client.GoogleLoginURL(ctx)
	if err != nil {
		a.Log.Warn().Err(err).Msg("google login url failed")
		return "", opErr(OpGoogle, err)
	}
	return u, nil
}
