// Package app wires configuration, the session store and the SDK client into
// the workflows the CLI runs.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flatconnect/internal/config"
	"flatconnect/internal/domain"
	"flatconnect/internal/pages"
	"flatconnect/internal/session"
	"flatconnect/internal/workflow"
	sdk "flatconnect/sdk/go"
)

// Options override values from flatconnect.yml. Zero values keep the file's.
type Options struct {
	Workspace string
	BaseURL   string
	Timeout   time.Duration
	Log       zerolog.Logger
}

// App is one CLI invocation's client-side context.
type App struct {
	Workspace string
	Config    *config.Config
	Sessions  *session.Store
	Client    *sdk.Client
	Log       zerolog.Logger
}

// Open resolves the config and opens the workspace session store.
func Open(opts Options) (*App, error) {
	cfg, err := config.LoadOrDefault(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if u := strings.TrimSpace(opts.BaseURL); u != "" {
		cfg.API.BaseURL = u
	}
	if opts.Timeout > 0 {
		cfg.API.Timeout = opts.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := session.Open(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	client := sdk.New(cfg.API.BaseURL, store)
	client.Timeout = cfg.API.Timeout
	return &App{
		Workspace: opts.Workspace,
		Config:    cfg,
		Sessions:  store,
		Client:    client,
		Log:       opts.Log,
	}, nil
}

func (a *App) Close() error {
	return a.Sessions.Close()
}

// Session returns the stored session.
func (a *App) Session(ctx context.Context) (domain.Session, error) {
	return a.Sessions.Session(ctx)
}

// RequireSession fails with sdk.ErrUnauthenticated when nobody is logged in.
func (a *App) RequireSession(ctx context.Context) (domain.Session, error) {
	s, err := a.Sessions.Session(ctx)
	if err != nil {
		return s, err
	}
	if !s.Authenticated() {
		return s, fmt.Errorf("not logged in; run fc login: %w", sdk.ErrUnauthenticated)
	}
	return s, nil
}

func (a *App) Auth() *workflow.Auth {
	return &workflow.Auth{Client: a.Client, Sessions: a.Sessions, Log: a.Log}
}

func (a *App) Profiles() *workflow.Profiles {
	return &workflow.Profiles{Client: a.Client, Sessions: a.Sessions, Log: a.Log}
}

func (a *App) Submitter(loc workflow.Locator) *workflow.Submitter {
	return &workflow.Submitter{
		Client:  a.Client,
		Locator: loc,
		Codes:   workflow.CodesFromConfig(a.Config),
		Log:     a.Log,
	}
}

func (a *App) Assignment(refresh workflow.RefreshFunc) *workflow.Assignment {
	return workflow.NewAssignment(a.Client, refresh, a.Log)
}

func (a *App) Advance(refresh workflow.RefreshFunc) *workflow.Advance {
	return workflow.NewAdvance(a.Client, refresh, a.Log)
}

// Loader builds a page loader for the logged-in role.
func (a *App) Loader(ctx context.Context, kind pages.Kind) (*pages.Loader, error) {
	s, err := a.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	return pages.NewLoader(kind, a.Client, s.Role, a.Log)
}

// FindIssue fetches one issue by id.
func (a *App) FindIssue(ctx context.Context, id string) (domain.Issue, error) {
	if _, err := a.RequireSession(ctx); err != nil {
		return domain.Issue{}, err
	}
	issue, err := a.Client.Get(ctx, id)
	if err != nil {
		return domain.Issue{}, &workflow.OpError{Op: workflow.OpLoad, Err: err}
	}
	return issue, nil
}
