package flatconnectsdk

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"flatconnect/internal/domain"
)

// LoginResult is the login response: token plus user and profile summaries.
type LoginResult struct {
	Key     string       `json:"key"`
	User    LoginUser    `json:"user"`
	Profile LoginProfile `json:"profile"`
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

// RegisterRequest mirrors the registration form fields.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	kinds := statusKinds{http.StatusBadRequest: ErrUnauthenticated}
	var resp LoginResult
	if err := c.do(ctx, http.MethodPost, "api/auth/login/", false, body, &resp, kinds); err != nil {
		return resp, err
	}
	if resp.Key == "" {
		return resp, fmt.Errorf("%w: login response carried no token", ErrServer)
	}
	return resp, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "api/auth/registration/", false, in, nil, nil)
}

// GoogleLoginURL returns the OAuth redirect URL.
func (c *Client) GoogleLoginURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthorizationURL string `json:"authorization_url"`
		URL              string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "api/auth/social/google/login-url/", false, nil, &resp, nil); err != nil {
		return "", err
	}
	if resp.AuthorizationURL != "" {
		return resp.AuthorizationURL, nil
	}
	if resp.URL != "" {
		return resp.URL, nil
	}
	return "", fmt.Errorf("%w: no login url in response", ErrServer)
}

// Profile reads the caller's profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "api/auth/profile/", true, nil, &resp, nil)
	return resp, err
}

// UpdateProfile replaces the caller's profile fields.
func (c *Client) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodPut, "api/auth/profile/", true, p, &resp, nil)
	return resp, err
}

// AttachmentFromFile reads a local file into an Attachment.
func AttachmentFromFile(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return Attachment{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

// ProfileStatus reports whether the caller's profile exists and is complete.
type ProfileStatus struct {
	Exists     bool `json:"exists"`
	IsComplete bool `json:"is_complete"`
}

func (c *Client) ProfileStatus(ctx context.Context) (ProfileStatus, error) {
	var resp ProfileStatus
	err := c.do(ctx, http.MethodGet, "api/auth/profile/exists/", true, nil, &resp, nil)
	return resp, err
}
