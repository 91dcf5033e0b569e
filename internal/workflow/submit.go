package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"flatconnect/internal/config"
	"flatconnect/internal/domain"
	sdk "flatconnect/sdk/go"
)

// ComplaintForm is what a resident fills in to file a complaint. Location is a
// free-text hint for the resident's own reference; it is not sent.
type ComplaintForm struct {
	Title       string
	Category    string
	Priority    string
	Location    string
	Description string
	Files       []sdk.Attachment
	Consent     bool
}

const requiredFieldsMessage = "Please fill out all required fields and provide consent."

// Validate checks the required fields and consent.
func (f ComplaintForm) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(f.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(f.Priority) == "" {
		missing = append(missing, "priority")
	}
	if strings.TrimSpace(f.Description) == "" {
		missing = append(missing, "description")
	}
	if !f.Consent {
		missing = append(missing, "consent")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Message: requiredFieldsMessage}
	}
	return nil
}

// Codes maps form labels to backend codes.
type Codes struct {
	Categories      map[string]string
	Priorities      map[string]string
	DefaultCategory string
	DefaultPriority string
}

// CodesFromConfig takes the lookup tables from flatconnect.yml.
func CodesFromConfig(cfg *config.Config) Codes {
	return Codes{
		Categories:      cfg.Complaints.Categories,
		Priorities:      cfg.Complaints.Priorities,
		DefaultCategory: cfg.Complaints.DefaultCategory,
		DefaultPriority: cfg.Complaints.DefaultPriority,
	}
}

// DefaultCodes is the built-in table.
func DefaultCodes() Codes {
	return CodesFromConfig(config.Default())
}

// Category maps a label to its code. Unknown labels get the default category's code.
func (c Codes) Category(label string) string {
	return lookup(c.Categories, label, c.DefaultCategory, "5")
}

// Priority maps a label to its code. Unknown labels get the default priority's code.
func (c Codes) Priority(label string) string {
	return lookup(c.Priorities, label, c.DefaultPriority, "1")
}

func lookup(table map[string]string, label, def, fallback string) string {
	if code, ok := table[strings.ToLower(strings.TrimSpace(label))]; ok {
		return code
	}
	if code, ok := table[def]; ok {
		return code
	}
	return fallback
}

// Coordinates is a device position in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Locator acquires the device position. It returns ErrLocationUnsupported when the
// device has no positioning and ErrLocationDenied (or any other error) when it refuses.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// FixedLocator always reports the same position.
type FixedLocator Coordinates

func (l FixedLocator) Locate(context.Context) (Coordinates, error) { return Coordinates(l), nil }

// NoLocator is a device without positioning.
type NoLocator struct{}

func (NoLocator) Locate(context.Context) (Coordinates, error) {
	return Coordinates{}, ErrLocationUnsupported
}

// Creator performs the create call.
type Creator interface {
	Create(ctx context.Context, in sdk.CreateIssueRequest) (domain.Issue, error)
}

// SubmitPath records which of the two submission paths ran.
type SubmitPath int

const (
	PathWithLocation SubmitPath = iota + 1
	PathWithoutLocation
)

func (p SubmitPath) String() string {
	switch p {
	case PathWithLocation:
		return "with-location"
	case PathWithoutLocation:
		return "without-location"
	default:
		return "none"
	}
}

// SubmitResult is the outcome of one submit action.
type SubmitResult struct {
	Issue domain.Issue
	Path  SubmitPath
	// Notice is the alert shown before falling back to submitting without coordinates.
	Notice string
}

// Submitter files complaints.
type Submitter struct {
	Client  Creator
	Locator Locator
	Codes   Codes
	Log     zerolog.Logger

	pending inflight
}

// Submit validates the form, maps labels to codes, tries to geotag it, and
// makes exactly one create call.
func (s *Submitter) Submit(ctx context.Context, form ComplaintForm) (SubmitResult, error) {
	if err := form.Validate(); err != nil {
		return SubmitResult{}, err
	}
	if !s.pending.begin("submit") {
		return SubmitResult{}, ErrBusy
	}
	defer s.pending.end("submit")

	req := sdk.CreateIssueRequest{
		Title:       strings.TrimSpace(form.Title),
		Description: strings.TrimSpace(form.Description),
		Category:    s.Codes.Category(form.Category),
		Priority:    s.Codes.Priority(form.Priority),
		Images:      form.Files,
	}
	res := SubmitResult{Path: PathWithoutLocation}
	locator := s.Locator
	if locator == nil {
		locator = NoLocator{}
	}
	pos, err := locator.Locate(ctx)
	switch {
	case err == nil:
		req.Latitude = fmt.Sprintf("%.3f", pos.Latitude)
		req.Longitude = fmt.Sprintf("%.3f", pos.Longitude)
		res.Path = PathWithLocation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return SubmitResult{}, err
	case errors.Is(err, ErrLocationUnsupported):
		res.Notice = "Geolocation not supported. Submitting without location coordinates."
	default:
		res.Notice = "Geolocation access denied. Submitting without location coordinates."
	}
	if res.Notice != "" {
		s.Log.Info().Err(err).Msg("submitting without coordinates")
	}

	issue, err := s.Client.Create(ctx, req)
	if errors.Is(err, sdk.ErrCreatedNotLoaded) {
		s.Log.Warn().Err(err).Str("issue", issue.ID).Msg("complaint filed but not reloaded")
		res.Issue = issue
		return res, nil
	}
	if err != nil {
		s.Log.Warn().Err(err).Str("path", res.Path.String()).Msg("complaint submission failed")
		return res, opErr(OpSubmit, err)
	}
	res.Issue = issue
	s.Log.Info().Str("issue", issue.ID).Str("path", res.Path.String()).Msg("complaint filed")
	return res, nil
}
