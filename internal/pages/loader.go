package pages

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"flatconnect/internal/domain"
	"flatconnect/internal/workflow"
)

// Loader holds the latest load of one page. Refresh replaces it wholesale.
type Loader struct {
	Src  Source
	Role domain.Role
	Load LoadFunc
	Log  zerolog.Logger

	mu      sync.Mutex
	loading bool
	page    Page
	err     error
}

// NewLoader builds a loader for a page kind.
func NewLoader(kind Kind, src Source, role domain.Role, log zerolog.Logger) (*Loader, error) {
	load, err := ForKind(kind)
	if err != nil {
		return nil, err
	}
	return &Loader{Src: src, Role: role, Load: load, Log: log}, nil
}

// Refresh re-fetches the page. A refresh already in flight makes it fail with
// workflow.ErrBusy. On failure the previous page is kept and the error recorded.
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return workflow.ErrBusy
	}
	l.loading = true
	l.mu.Unlock()

	page, err := l.Load(ctx, l.Src, l.Role)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	l.err = err
	if err != nil {
		l.Log.Warn().Err(err).Msg("page load failed")
		return err
	}
	l.page = page
	l.Log.Debug().Str("page", string(page.Kind)).Int("issues", len(page.Issues)).Msg("page loaded")
	return nil
}

// Page returns the last successful load.
func (l *Loader) Page() Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// Err returns the error of the last refresh, if it failed.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Loading reports whether a refresh is in flight.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}
