package flatconnectsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"flatconnect/internal/domain"
)

type (
	Issue        = domain.Issue
	Worker       = domain.Worker
	Session      = domain.Session
	Profile      = domain.Profile
	Category     = domain.Category
	Notification = domain.Notification
)

// SessionSource yields the current session. It is consulted on every call so a
// logout or a new login in another process takes effect immediately.
type SessionSource interface {
	Session(ctx context.Context) (domain.Session, error)
}

// Client is a minimal FlatConnect HTTP API client.
type Client struct {
	BaseURL    string
	Sessions   SessionSource
	HTTPClient *http.Client
	// Timeout applies only when HTTPClient is nil; zero keeps the transport default.
	Timeout time.Duration
}

// New creates a client reading credentials from sessions.
func New(baseURL string, sessions SessionSource) *Client {
	return &Client{
		BaseURL:  baseURL,
		Sessions: sessions,
	}
}

// Attachment is a file sent as a multipart part.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateIssueRequest carries already-mapped backend codes.
type CreateIssueRequest struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Latitude    string
	Longitude   string
	Images      []Attachment
}

// AssignResult is the backend's answer to an assignment.
type AssignResult struct {
	Status      string        `json:"status"`
	AssignedTo  domain.Worker `json:"assigned_to"`
	IssueStatus domain.Status `json:"issue_status"`
	IssueID     string        `json:"issue_id"`
}

type createResponse struct {
	Status         string `json:"status"`
	IssueID        string `json:"issue_id"`
	ImagesUploaded int    `json:"images_uploaded"`
}

type statusKinds map[int]error

// ListAll returns every issue visible to the caller.
func (c *Client) ListAll(ctx context.Context) ([]Issue, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "issues/", true, nil, &raw, nil); err != nil {
		return nil, err
	}
	return decodeList[Issue](raw, "results")
}

// ListMine returns issues the caller reported.
func (c *Client) ListMine(ctx context.Context) ([]Issue, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "issues/my/", true, nil, &raw, nil); err != nil {
		return nil, err
	}
	return decodeList[Issue](raw, "results")
}

// ListAssignedToMe returns issues assigned to the caller.
func (c *Client) ListAssignedToMe(ctx context.Context) ([]Issue, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "issues/assigned/", true, nil, &raw, nil); err != nil {
		return nil, err
	}
	return decodeList[Issue](raw, "results")
}

// ListWorkers returns users an issue can be assigned to.
func (c *Client) ListWorkers(ctx context.Context) ([]Worker, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "issues/workers/", true, nil, &raw, nil); err != nil {
		return nil, err
	}
	return decodeList[Worker](raw, "workers")
}

// Get fetches one issue.
func (c *Client) Get(ctx context.Context, id string) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("issues/%s/", url.PathEscape(id)), true, nil, &resp, nil)
	return resp, err
}

// Categories lists the backend's category table.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "issues/categories/", true, nil, &raw, nil); err != nil {
		return nil, err
	}
	return decodeList[Category](raw, "results")
}

// Notifications lists the caller's notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "issues/notifications/", true, nil, &raw, nil); err != nil {
		return nil, err
	}
	return decodeList[Notification](raw, "results")
}

// Create files a new issue and returns it as stored. When only the read-back
// fails, the error wraps ErrCreatedNotLoaded and the returned issue carries the
// new id.
func (c *Client) Create(ctx context.Context, in CreateIssueRequest) (Issue, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return Issue{}, fmt.Errorf("%w: title and description are required", ErrValidation)
	}
	kinds := statusKinds{http.StatusBadRequest: ErrValidation}
	fields := []formField{
		{"title", in.Title},
		{"description", in.Description},
		{"category", in.Category},
		{"priority", in.Priority},
	}
	if in.Latitude != "" && in.Longitude != "" {
		fields = append(fields, formField{"latitude", in.Latitude}, formField{"longitude", in.Longitude})
	}
	var resp createResponse
	var err error
	if len(in.Images) > 0 {
		err = c.doMultipart(ctx, "issues/create/", fields, "image_files", in.Images, &resp, kinds)
	} else {
		body := map[string]string{}
		for _, f := range fields {
			body[f.name] = f.value
		}
		err = c.do(ctx, http.MethodPost, "issues/create/", true, body, &resp, kinds)
	}
	if err != nil {
		if errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer) {
			return Issue{}, fmt.Errorf("%w: %w", ErrSubmission, err)
		}
		return Issue{}, err
	}
	if resp.IssueID == "" {
		return Issue{}, fmt.Errorf("%w: response carried no issue id", ErrSubmission)
	}
	issue, err := c.Get(ctx, resp.IssueID)
	if err != nil {
		partial := Issue{
			ID:          resp.IssueID,
			Title:       in.Title,
			Description: in.Description,
			Status:      domain.StatusNew,
		}
		return partial, fmt.Errorf("%w: issue %s: %w", ErrCreatedNotLoaded, resp.IssueID, err)
	}
	return issue, nil
}

// Assign hands a new issue to a worker.
func (c *Client) Assign(ctx context.Context, issueID string, workerID int64) (AssignResult, error) {
	body := map[string]any{
		"worker_id": workerID,
		"status":    domain.StatusAssigned,
	}
	kinds := statusKinds{http.StatusBadRequest: ErrInvalidWorker}
	var resp AssignResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("issues/%s/assign/", url.PathEscape(issueID)), true, body, &resp, kinds)
	return resp, err
}

// UpdateStatus moves an issue to status, uploading photos as evidence.
func (c *Client) UpdateStatus(ctx context.Context, issueID string, status domain.Status, photos []Attachment) error {
	kinds := statusKinds{
		http.StatusBadRequest:            ErrInvalidTransition,
		http.StatusRequestEntityTooLarge: ErrUpload,
		http.StatusUnsupportedMediaType:  ErrUpload,
	}
	fields := []formField{{"status", string(status)}}
	endpoint := fmt.Sprintf("issues/%s/status/", url.PathEscape(issueID))
	return c.doMultipart(ctx, endpoint, fields, "photos", photos, nil, kinds)
}

type formField struct {
	name  string
	value string
}

func (c *Client) do(ctx context.Context, method, endpoint string, auth bool, body any, out any, kinds statusKinds) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, auth, out, kinds)
}

func (c *Client) doMultipart(ctx context.Context, endpoint string, fields []formField, fileField string, files []Attachment, out any, kinds statusKinds) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("%w: %v", ErrUpload, err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpload, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUpload, f.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, true, out, kinds)
}

func (c *Client) send(req *http.Request, auth bool, out any, kinds statusKinds) error {
	if auth {
		if c.Sessions == nil {
			return ErrUnauthenticated
		}
		s, err := c.Sessions.Session(req.Context())
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}
		if !s.Authenticated() {
			return ErrUnauthenticated
		}
		req.Header.Set("Authorization", "Token "+s.Token)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, b, kinds)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrServer, err)
		}
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}

func (c *Client) url(endpoint string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// decodeList accepts both a bare array and an object wrapping the array under key.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	items := []T{}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: decode list: %v", ErrServer, err)
		}
		return items, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode list: %v", ErrServer, err)
	}
	inner, ok := envelope[key]
	if !ok {
		return items, nil
	}
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrServer, key, err)
	}
	return items, nil
}
