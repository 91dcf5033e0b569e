package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"flatconnect/internal/engine"
	"flatconnect/internal/engine/auth"
	"flatconnect/internal/lifecycle"
	"flatconnect/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine engine.Engine
	Google GoogleConfig
	Log    zerolog.Logger
	// MaxUploadBytes bounds multipart bodies; zero means 20 MiB.
	MaxUploadBytes int64
	// FormMemoryBytes is how much of a multipart body stays in memory before
	// file parts spill to temp files; zero means 8 MiB.
	FormMemoryBytes int64
}

type GoogleConfig struct {
	ClientID    string
	RedirectURI string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"Only admins and secretaries can assign issues"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler emulating the FlatConnect backend.
func New(cfg Config) (http.Handler, error) {
	if len(cfg.Engine.Tokens.Secret) == 0 {
		return nil, errors.New("server: token secret not configured")
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(hlog.NewHandler(cfg.Log))
	router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().Str("method", r.Method).Stringer("url", r.URL).
			Int("status", status).Int("size", size).Dur("took", d).Msg("request")
	}))
	router.Use(newAuthMiddleware(cfg.Engine))

	hcfg := huma.DefaultConfig("FlatConnect API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	s := &handlers{engine: cfg.Engine, google: cfg.Google, log: cfg.Log, maxUpload: cfg.MaxUploadBytes, formMemory: cfg.FormMemoryBytes}
	registerHealth(api)
	registerAccounts(api, s)
	registerIssues(api, s)
	registerUploads(router, s)
	registerMedia(router, cfg.Engine.Media.Dir)
	registerOpenAPI(router, api)
	return router, nil
}

type handlers struct {
	engine     engine.Engine
	google     GoogleConfig
	log        zerolog.Logger
	maxUpload  int64
	formMemory int64
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func (s *handlers) handleError(ctx context.Context, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var verr engine.ValidationError
	if errors.As(err, &verr) {
		return newAPIError(http.StatusBadRequest, "validation_error", verr.Message, map[string]any{"field": verr.Field})
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidCredentials):
		return newAPIError(http.StatusBadRequest, "invalid_credentials", err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidToken):
		return newAPIError(http.StatusUnauthorized, "invalid_token", "Invalid token.", nil)
	case errors.Is(err, lifecycle.ErrPhotosRequired):
		return newAPIError(http.StatusBadRequest, "photos_required", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrWorkerRequired):
		return newAPIError(http.StatusBadRequest, "worker_required", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return newAPIError(http.StatusBadRequest, "invalid_transition", err.Error(), nil)
	case errors.Is(err, engine.ErrUnsupportedMedia):
		return newAPIError(http.StatusUnsupportedMediaType, "unsupported_media", err.Error(), nil)
	}
	zerolog.Ctx(ctx).Error().Err(err).Msg("request failed")
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerOpenAPI(r chi.Router, api huma.API) {
	var (
		once sync.Once
		spec []byte
		err  error
	)
	r.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			applyAuthSecurity(oas)
			spec, err = json.Marshal(oas)
		})
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "", "OpenAPI document unavailable", nil))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["tokenAuth"] = &huma.SecurityScheme{
		Type:        "apiKey",
		In:          "header",
		Name:        "Authorization",
		Description: "Token <key>",
	}
	security := []map[string][]string{{"tokenAuth": {}}}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if isPublic(route) {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func registerMedia(r chi.Router, dir string) {
	fs := http.StripPrefix("/media/", http.FileServer(http.Dir(dir)))
	r.Get("/media/*", fs.ServeHTTP)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health/",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}
