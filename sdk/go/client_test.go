package flatconnectsdk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flatconnect/internal/domain"
)

type staticSession domain.Session

func (s staticSession) Session(context.Context) (domain.Session, error) {
	return domain.Session(s), nil
}

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, staticSession{Token: "tok", Role: domain.RoleAdmin})
}

func TestListAcceptsBothShapes(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/issues/":
			io.WriteString(w, `[{"id":"a","title":"t","status":"new","priority":2}]`)
		case "/issues/my/":
			io.WriteString(w, `{"results":[{"id":"b","status":"assigned"}]}`)
		case "/issues/workers/":
			io.WriteString(w, `{"count":1,"workers":[{"id":7,"username":"ravi","role":"worker"}]}`)
		case "/issues/assigned/":
			io.WriteString(w, `null`)
		}
	})
	ctx := context.Background()
	all, err := c.ListAll(ctx)
	if err != nil || len(all) != 1 || all[0].Priority != domain.PriorityMedium {
		t.Fatalf("ListAll = %+v, %v", all, err)
	}
	mine, err := c.ListMine(ctx)
	if err != nil || len(mine) != 1 || mine[0].ID != "b" {
		t.Fatalf("ListMine = %+v, %v", mine, err)
	}
	workers, err := c.ListWorkers(ctx)
	if err != nil || len(workers) != 1 || workers[0].Role != domain.RoleWorker {
		t.Fatalf("ListWorkers = %+v, %v", workers, err)
	}
	assigned, err := c.ListAssignedToMe(ctx)
	if err != nil || assigned == nil || len(assigned) != 0 {
		t.Fatalf("ListAssignedToMe = %#v, %v", assigned, err)
	}
}

func TestErrorKinds(t *testing.T) {
	status := http.StatusForbidden
	body := `{"error":{"code":"forbidden","message":"Only admins and secretaries can assign issues"}}`
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
	ctx := context.Background()
	_, err := c.Assign(ctx, "x", 7)
	var apiErr *APIError
	if !errors.Is(err, ErrForbidden) || !errors.As(err, &apiErr) || apiErr.Message != "Only admins and secretaries can assign issues" {
		t.Fatalf("forbidden: %v", err)
	}
	status, body = http.StatusBadRequest, `{"error":"Can only assign to workers or admins"}`
	if _, err := c.Assign(ctx, "x", 7); !errors.Is(err, ErrInvalidWorker) {
		t.Fatalf("assign 400: %v", err)
	}
	if err := c.UpdateStatus(ctx, "x", domain.StatusInProgress, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("status 400: %v", err)
	}
	status, body = http.StatusNotFound, `{"detail":"Not found."}`
	if _, err := c.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("404: %v", err)
	}
	status, body = http.StatusRequestEntityTooLarge, ``
	if err := c.UpdateStatus(ctx, "x", domain.StatusResolved, []Attachment{{Filename: "a.png", Data: []byte("x")}}); !errors.Is(err, ErrUpload) {
		t.Fatalf("413: %v", err)
	}
	status, body = http.StatusBadGateway, `oops`
	if _, err := c.Create(ctx, CreateIssueRequest{Title: "t", Description: "d"}); !errors.Is(err, ErrSubmission) || !errors.Is(err, ErrServer) {
		t.Fatalf("create 502: %v", err)
	}
}

func TestCreateSendsMultipart(t *testing.T) {
	var fields map[string]string
	var files []string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/issues/create/":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				fields[k] = v[0]
			}
			for _, h := range r.MultipartForm.File["image_files"] {
				files = append(files, h.Filename)
			}
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"status":"Issue created","issue_id":"new-1","images_uploaded":1}`)
		case r.URL.Path == "/issues/new-1/":
			io.WriteString(w, `{"id":"new-1","title":"Leak","status":"new"}`)
		}
	})
	issue, err := c.Create(context.Background(), CreateIssueRequest{
		Title: "Leak", Description: "drip", Category: "1", Priority: "3",
		Latitude: "19.076", Longitude: "72.878",
		Images: []Attachment{{Filename: "leak.png", ContentType: "image/png", Data: []byte("png")}},
	})
	if err != nil || issue.ID != "new-1" {
		t.Fatalf("create = %+v, %v", issue, err)
	}
	if fields["category"] != "1" || fields["priority"] != "3" || fields["latitude"] != "19.076" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if len(files) != 1 || files[0] != "leak.png" {
		t.Fatalf("unexpected files %v", files)
	}
}

func TestNoRequestWithoutSession(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()
	c := New(srv.URL, staticSession{})
	if _, err := c.ListAll(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := c.Create(context.Background(), CreateIssueRequest{Title: " "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("made %d requests", calls)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url, staticSession{Token: "tok"})
	_, err := c.ListAll(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ListAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestLoginAndGoogleURL(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login/":
			b, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(b), `"email":"a@b.c"`) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"error":"Unable to log in with provided credentials."}`)
				return
			}
			io.WriteString(w, `{"key":"k1","user":{"id":3,"username":"a"},"profile":{"role":"worker","has_profile":true}}`)
		case "/api/auth/social/google/login-url/":
			io.WriteString(w, `{"authorization_url":"https://accounts.google.com/o/oauth2/auth?x=1"}`)
		}
	})
	ctx := context.Background()
	res, err := c.Login(ctx, "a@b.c", "pw")
	if err != nil || res.Key != "k1" || res.Profile.Role != domain.RoleWorker {
		t.Fatalf("login = %+v, %v", res, err)
	}
	if _, err := c.Login(ctx, "x@y.z", "pw"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	u, err := c.GoogleLoginURL(ctx)
	if err != nil || !strings.HasPrefix(u, "https://accounts.google.com/") {
		t.Fatalf("google = %q, %v", u, err)
	}
}

func TestCreateKeepsIDWhenReloadFails(t *testing.T) {
	creates := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/issues/create/":
			creates++
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"status":"Issue created","issue_id":"new-2","images_uploaded":0}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	issue, err := c.Create(context.Background(), CreateIssueRequest{Title: "Leak", Description: "drip", Category: "1", Priority: "1"})
	if !errors.Is(err, ErrCreatedNotLoaded) || errors.Is(err, ErrSubmission) {
		t.Fatalf("expected ErrCreatedNotLoaded only, got %v", err)
	}
	if issue.ID != "new-2" || issue.Title != "Leak" || issue.Status != domain.StatusNew {
		t.Fatalf("unexpected partial issue %+v", issue)
	}
	if creates != 1 {
		t.Fatalf("create called %d times", creates)
	}
}

func TestUnsupportedMediaIsUploadError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		io.WriteString(w, `{"error":{"code":"unsupported_media_type","message":"Only image uploads are accepted"}}`)
	})
	ctx := context.Background()
	_, err := c.Create(ctx, CreateIssueRequest{
		Title: "Leak", Description: "drip",
		Images: []Attachment{{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("x")}},
	})
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("create 415: %v", err)
	}
	if err := c.UpdateStatus(ctx, "x", domain.StatusResolved, []Attachment{{Filename: "notes.txt", Data: []byte("x")}}); !errors.Is(err, ErrUpload) {
		t.Fatalf("status 415: %v", err)
	}
}
