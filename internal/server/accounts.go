package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"flatconnect/internal/domain"
	"flatconnect/internal/engine"
)

const googleAuthURL = "https://accounts.google.com/o/oauth2/auth"

type loginInput struct {
	Body struct {
		Email    string `json:"email,omitempty"`
		Username string `json:"username,omitempty"`
		Password string `json:"password"`
	}
}

type loginOutput struct {
	Body engine.LoginResult `json:"body"`
}

type registerInput struct {
	Body engine.RegisterInput
}

type detailOutput struct {
	Body struct {
		Detail string `json:"detail"`
	} `json:"body"`
}

type profileOutput struct {
	Body domain.Profile `json:"body"`
}

type profileInput struct {
	Body domain.Profile
}

func registerAccounts(api huma.API, s *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/auth/login/",
		Summary:     "Exchange credentials for a session token",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, in *loginInput) (*loginOutput, error) {
		login := in.Body.Email
		if login == "" {
			login = in.Body.Username
		}
		res, err := s.engine.Authenticate(ctx, login, in.Body.Password)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &loginOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/api/auth/registration/",
		Summary:       "Create an account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, in *registerInput) (*detailOutput, error) {
		if _, err := s.engine.Register(ctx, in.Body); err != nil {
			return nil, s.handleError(ctx, err)
		}
		out := &detailOutput{}
		out.Body.Detail = "Registration successful."
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "google-login-url",
		Method:      http.MethodGet,
		Path:        "/api/auth/social/google/login-url/",
		Summary:     "Google OAuth authorization URL",
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if s.google.ClientID == "" {
			return nil, newAPIError(http.StatusServiceUnavailable, "google_unconfigured", "Google login is not configured", nil)
		}
		q := url.Values{}
		q.Set("response_type", "code")
		q.Set("client_id", s.google.ClientID)
		q.Set("redirect_uri", s.google.RedirectURI)
		q.Set("scope", "openid email profile")
		q.Set("state", uuid.NewString())
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"authorization_url": googleAuthURL + "?" + q.Encode()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "profile-get",
		Method:      http.MethodGet,
		Path:        "/api/auth/profile/",
		Summary:     "Read the caller's profile",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*profileOutput, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		prof, err := s.engine.Profile(ctx, p)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &profileOutput{Body: prof}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "profile-update",
		Method:      http.MethodPut,
		Path:        "/api/auth/profile/",
		Summary:     "Update the caller's profile; empty fields are kept",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, in *profileInput) (*profileOutput, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		prof, err := s.engine.UpdateProfile(ctx, p, in.Body)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &profileOutput{Body: prof}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "profile-exists",
		Method:      http.MethodGet,
		Path:        "/api/auth/profile/exists/",
		Summary:     "Whether the caller's profile is complete",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.ProfileStatus `json:"body"`
	}, error) {
		p, herr := principalFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		st, err := s.engine.ProfileStatus(ctx, p)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &struct {
			Body engine.ProfileStatus `json:"body"`
		}{Body: st}, nil
	})
}
