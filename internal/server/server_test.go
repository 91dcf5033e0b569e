package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"flatconnect/internal/db"
	"flatconnect/internal/domain"
	"flatconnect/internal/engine"
	"flatconnect/internal/engine/auth"
	"flatconnect/internal/migrate"
	"flatconnect/internal/session"
	"flatconnect/internal/workflow"
	sdk "flatconnect/sdk/go"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testServer struct {
	URL   string
	close func()
}

func newTestServer(t *testing.T, opts ...func(*Config)) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace, Name: db.DevServerDB})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn, migrate.DevServer); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, auth.Tokens{Secret: []byte("test-secret")}, db.MediaDir(workspace), zerolog.Nop())
	if err := e.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cfg := Config{
		Engine: e,
		Google: GoogleConfig{ClientID: "client-123", RedirectURI: "http://127.0.0.1:5173/auth/google/callback"},
		Log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	handler, err := New(cfg)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL: "http://" + ln.Addr().String(),
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

// login returns a client whose session holds a fresh token for login.
func (s *testServer) login(t *testing.T, login string) (*sdk.Client, *session.Static) {
	t.Helper()
	store := session.NewStatic("", "")
	a := &workflow.Auth{Client: sdk.New(s.URL, nil), Sessions: store, Log: zerolog.Nop()}
	if _, err := a.Login(context.Background(), login, engine.SeedPassword); err != nil {
		t.Fatalf("login %s: %v", login, err)
	}
	return sdk.New(s.URL, store), store
}

func TestHealthAndOpenAPI(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/health/")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %v %v", resp, err)
	}
	resp.Body.Close()
	resp, err = http.Get(s.URL + "/openapi.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	for _, p := range []string{"/issues/", "/issues/{id}/assign/", "/api/auth/login/"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("openapi missing %s", p)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	client := sdk.New(s.URL, session.NewStatic("not-a-jwt", domain.RoleMember))
	_, err := client.ListAll(context.Background())
	if !errors.Is(err, sdk.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, s.URL+"/issues/my/", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(body), `"code":"unauthorized"`) {
		t.Fatalf("unexpected %d %s", resp.StatusCode, body)
	}
}

func TestLoginFailureMessage(t *testing.T) {
	s := newTestServer(t)
	a := &workflow.Auth{Client: sdk.New(s.URL, nil), Sessions: session.NewStatic("", ""), Log: zerolog.Nop()}
	_, err := a.Login(context.Background(), "meena@flatconnect.local", "wrong-password")
	if !errors.Is(err, sdk.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if got := workflow.Message(err); got != "Login Failed: Unable to log in with provided credentials." {
		t.Fatalf("message: %q", got)
	}
}

func TestSignupAndProfileCompletion(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	store := session.NewStatic("", "")
	a := &workflow.Auth{Client: sdk.New(s.URL, nil), Sessions: store, Log: zerolog.Nop()}
	out, err := a.Signup(ctx, workflow.SignupForm{Email: "kiran@example.com", Password: "password123", ConfirmPassword: "password123"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if out.Landing != workflow.PageProfileCompletion || out.Result.User.Username != "kiran" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	client := sdk.New(s.URL, store)
	st, err := client.ProfileStatus(ctx)
	if err != nil || !st.Exists || st.IsComplete {
		t.Fatalf("status before completion = %+v, %v", st, err)
	}
	profiles := &workflow.Profiles{Client: client, Sessions: store, Log: zerolog.Nop()}
	prof, landing, err := profiles.Complete(ctx, workflow.ProfileForm{
		FullName:         "Kiran Shah",
		Phone:            "9800000000",
		EmergencyContact: "9800000001",
		BuildingBlock:    "C",
		FlatNumber:       "C-12",
		DateOfBirth:      "1990-02-01",
		Role:             "user",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if landing != workflow.PageMyComplaints || prof.Role != domain.RoleMember || prof.LastName != "Shah" {
		t.Fatalf("unexpected completion %+v %s", prof, landing)
	}
	st, _ = client.ProfileStatus(ctx)
	if !st.IsComplete {
		t.Fatalf("expected complete profile")
	}
	sess, _ := store.Session(ctx)
	if sess.Role != domain.RoleMember || !sess.ProfileCompleted {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestGoogleLoginURL(t *testing.T) {
	s := newTestServer(t)
	a := &workflow.Auth{Client: sdk.New(s.URL, nil), Sessions: session.NewStatic("", ""), Log: zerolog.Nop()}
	u, err := a.GoogleURL(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, "https://accounts.google.com/o/oauth2/auth?") || !strings.Contains(u, "client_id=client-123") {
		t.Fatalf("unexpected url %s", u)
	}
}

// A member files a complaint, an admin assigns it, the worker starts and
// resolves it with a photo, and the admin sees the evidence.
func TestComplaintLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	member, _ := s.login(t, "meena@flatconnect.local")
	admin, _ := s.login(t, "admin@flatconnect.local")
	worker, _ := s.login(t, "ravi@flatconnect.local")

	sub := &workflow.Submitter{
		Client:  member,
		Locator: workflow.FixedLocator{Latitude: 19.0760, Longitude: 72.8777},
		Codes:   workflow.DefaultCodes(),
		Log:     zerolog.Nop(),
	}
	res, err := sub.Submit(ctx, workflow.ComplaintForm{
		Title:       "Leak",
		Category:    "plumbing",
		Priority:    "high",
		Description: "Water dripping under the kitchen sink",
		Files:       []sdk.Attachment{{Filename: "leak.png", ContentType: "image/png", Data: pngBytes}},
		Consent:     true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	issue := res.Issue
	if issue.Status != domain.StatusNew || issue.Category != 1 || issue.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected issue %+v", issue)
	}
	if issue.Latitude == nil || *issue.Latitude != "19.076" || len(issue.Images) != 1 {
		t.Fatalf("unexpected location or images %+v", issue)
	}
	img, err := http.Get(s.URL + issue.Images[0].Image)
	if err != nil || img.StatusCode != http.StatusOK {
		t.Fatalf("fetch image: %v %v", img, err)
	}
	img.Body.Close()

	if _, err := member.ListWorkers(ctx); !errors.Is(err, sdk.ErrForbidden) {
		t.Fatalf("member listed workers: %v", err)
	}
	workers, err := admin.ListWorkers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ravi int64
	for _, w := range workers {
		if w.Username == "ravi" {
			ravi = w.ID
		}
	}
	refreshes := 0
	refresh := func(context.Context) error { refreshes++; return nil }
	asg := workflow.NewAssignment(admin, refresh, zerolog.Nop())
	if err := asg.Open(issue); err != nil {
		t.Fatal(err)
	}
	if err := asg.SelectWorker(ravi); err != nil {
		t.Fatal(err)
	}
	ar, err := asg.Confirm(ctx)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if ar.IssueStatus != domain.StatusAssigned || ar.AssignedTo.Username != "ravi" || refreshes != 1 {
		t.Fatalf("unexpected assign %+v (refreshes %d)", ar, refreshes)
	}

	mine, err := worker.ListAssignedToMe(ctx)
	if err != nil || len(mine) != 1 {
		t.Fatalf("assigned list = %d, %v", len(mine), err)
	}
	adv := workflow.NewAdvance(worker, refresh, zerolog.Nop())
	if err := adv.Start(ctx, mine[0]); err != nil {
		t.Fatalf("start: %v", err)
	}
	started, _ := worker.Get(ctx, issue.ID)
	comp, err := adv.OpenCompletion(started)
	if err != nil {
		t.Fatal(err)
	}
	if err := comp.Submit(ctx); !errors.Is(err, workflow.ErrPhotosRequired) {
		t.Fatalf("expected photos required, got %v", err)
	}
	if err := comp.AddPhoto(sdk.Attachment{Filename: "fixed.png", ContentType: "image/png", Data: pngBytes}); err != nil {
		t.Fatal(err)
	}
	if err := comp.Submit(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}

	resolved, err := admin.Get(ctx, issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := resolved.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	viewer, err := workflow.OpenViewer(resolved)
	if err != nil || viewer.Len() != 1 {
		t.Fatalf("viewer: %v", err)
	}
	notes, err := member.Notifications(ctx)
	if err != nil || len(notes) != 3 {
		t.Fatalf("notifications = %d, %v", len(notes), err)
	}
}

func TestAssignErrorsMapToMessages(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	member, _ := s.login(t, "meena")
	secretary, _ := s.login(t, "secretary")
	issue, err := member.Create(ctx, sdk.CreateIssueRequest{Title: "Broken light", Description: "Corridor light out", Category: "2", Priority: "1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if issue.Latitude != nil || len(issue.Images) != 0 {
		t.Fatalf("unexpected issue %+v", issue)
	}

	memberID := mustUserID(t, s, "meena")
	asg := workflow.NewAssignment(secretary, nil, zerolog.Nop())
	if err := asg.Open(issue); err != nil {
		t.Fatal(err)
	}
	_ = asg.SelectWorker(memberID)
	_, err = asg.Confirm(ctx)
	if !errors.Is(err, sdk.ErrInvalidWorker) {
		t.Fatalf("expected invalid worker, got %v", err)
	}
	if workflow.Message(err) != "Invalid worker selected. Please try again." {
		t.Fatalf("message: %q", workflow.Message(err))
	}
	if asg.State() != workflow.AssignSelecting {
		t.Fatalf("dialog should stay open, state %s", asg.State())
	}

	mAsg := workflow.NewAssignment(member, nil, zerolog.Nop())
	_ = mAsg.Open(issue)
	_ = mAsg.SelectWorker(memberID)
	_, err = mAsg.Confirm(ctx)
	if !errors.Is(err, sdk.ErrForbidden) || workflow.Message(err) != "You do not have permission to assign tasks." {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := member.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, sdk.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func mustUserID(t *testing.T, s *testServer, login string) int64 {
	t.Helper()
	client, _ := s.login(t, login)
	res, err := client.Login(context.Background(), login, engine.SeedPassword)
	if err != nil {
		t.Fatal(err)
	}
	return res.User.ID
}

func TestMultipartSpillFilesAreRemoved(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	s := newTestServer(t, func(c *Config) { c.FormMemoryBytes = 1 })
	member, _ := s.login(t, "meena@flatconnect.local")
	issue, err := member.Create(context.Background(), sdk.CreateIssueRequest{
		Title: "Leak", Description: "Drip under the sink", Category: "1", Priority: "2",
		Images: []sdk.Attachment{{Filename: "leak.png", ContentType: "image/png", Data: pngBytes}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(issue.Images) != 1 {
		t.Fatalf("expected one stored image, got %+v", issue.Images)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "multipart-") {
			t.Fatalf("temp upload left behind: %s", e.Name())
		}
	}
}

func TestOpenAPIConcurrentFirstRequests(t *testing.T) {
	s := newTestServer(t)
	const n = 8
	bodies := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Get(s.URL + "/openapi.json")
			if err != nil {
				errs[i] = err
				return
			}
			defer resp.Body.Close()
			b, err := io.ReadAll(resp.Body)
			bodies[i], errs[i] = string(b), err
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if bodies[i] == "" || bodies[i] != bodies[0] {
			t.Fatalf("request %d got a different document", i)
		}
	}
}
