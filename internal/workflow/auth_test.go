package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"flatconnect/internal/domain"
	"flatconnect/internal/session"
	sdk "flatconnect/sdk/go"
)

func TestLoginPersistsAndLands(t *testing.T) {
	cases := map[domain.Role]Page{
		domain.RoleAdmin:     PageDashboard,
		domain.RoleSecretary: PageDashboard,
		domain.RoleMember:    PageMyComplaints,
		domain.RoleWorker:    PageWorkerDashboard,
	}
	for role, want := range cases {
		client := &fakeAuthClient{result: sdk.LoginResult{Key: "tok-" + string(role), Profile: sdk.LoginProfile{Role: role}}}
		store := session.NewStatic("", "")
		auth := &Auth{Client: client, Sessions: store, Log: zerolog.Nop()}
		out, err := auth.Login(context.Background(), "a@b.io", "pw")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if out.Landing != want {
			t.Fatalf("%s landed on %s, want %s", role, out.Landing, want)
		}
		s, _ := store.Session(context.Background())
		if s.Token != "tok-"+string(role) || s.Role != role {
			t.Fatalf("session not persisted: %+v", s)
		}
	}
}

func TestLoginFailureLeavesSession(t *testing.T) {
	client := &fakeAuthClient{loginErr: &sdk.APIError{StatusCode: 400, Message: "Unable to log in with provided credentials.", Kind: sdk.ErrUnauthenticated}}
	store := session.NewStatic("old", domain.RoleMember)
	auth := &Auth{Client: client, Sessions: store, Log: zerolog.Nop()}
	_, err := auth.Login(context.Background(), "a@b.io", "bad")
	if Message(err) != "Login Failed: Unable to log in with provided credentials." {
		t.Fatalf("message: %q", Message(err))
	}
	if s, _ := store.Session(context.Background()); s.Token != "old" {
		t.Fatalf("failed login must not touch the session")
	}
}

func TestSignup(t *testing.T) {
	client := &fakeAuthClient{result: sdk.LoginResult{Key: "fresh", Profile: sdk.LoginProfile{Role: domain.RoleMember}}}
	store := session.NewStatic("stale", domain.RoleAdmin)
	_ = store.MarkProfileCompleted(context.Background())
	auth := &Auth{Client: client, Sessions: store, Log: zerolog.Nop()}

	_, err := auth.Signup(context.Background(), SignupForm{Email: "asha@flat.io", Password: "a", ConfirmPassword: "b"})
	if !errors.Is(err, ErrPasswordMismatch) || len(client.registers) != 0 {
		t.Fatalf("mismatch must fail locally: %v", err)
	}
	if s, _ := store.Session(context.Background()); s.Authenticated() {
		t.Fatalf("signup clears the previous session first")
	}

	out, err := auth.Signup(context.Background(), SignupForm{Email: "asha@flat.io", Password: "pw", ConfirmPassword: "pw"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if out.Landing != PageProfileCompletion {
		t.Fatalf("landing: %s", out.Landing)
	}
	reg := client.registers[0]
	if reg.Username != "asha" || reg.Password1 != "pw" || reg.Password2 != "pw" {
		t.Fatalf("register request: %+v", reg)
	}
	s, _ := store.Session(context.Background())
	if s.Token != "fresh" || s.ProfileCompleted {
		t.Fatalf("session after signup: %+v", s)
	}
}

func TestLogoutClears(t *testing.T) {
	store := session.NewStatic("tok", domain.RoleWorker)
	auth := &Auth{Client: &fakeAuthClient{}, Sessions: store}
	if err := auth.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s, _ := store.Session(context.Background()); s.Authenticated() || s.Role != "" {
		t.Fatalf("session survived logout: %+v", s)
	}
}

func TestProfileForm(t *testing.T) {
	form := ProfileForm{Role: "worker"}
	err := form.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"full_name", "phone", "emergency_contact", "building_block", "flat_number", "date_of_birth", "specialization"}
	if len(verr.Fields) != len(want) {
		t.Fatalf("fields: %v", verr.Fields)
	}
	for i := range want {
		if verr.Fields[i] != want[i] {
			t.Fatalf("fields: %v", verr.Fields)
		}
	}

	form = ProfileForm{FullName: "Asha", Phone: "1", EmergencyContact: "2", BuildingBlock: "B", FlatNumber: "101", DateOfBirth: "1990-02-30", Role: "user"}
	if err := form.Validate(); err == nil {
		t.Fatalf("expected bad date to fail")
	}
	form.DateOfBirth = "1990-02-03"
	if err := form.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	p := form.Profile()
	if p.FirstName != "Asha" || p.LastName != "User" || p.Role != domain.RoleMember || p.Specialization != "" {
		t.Fatalf("profile: %+v", p)
	}
	form.FullName = "Asha  Rani Iyer"
	if p := form.Profile(); p.LastName != "Rani Iyer" {
		t.Fatalf("last name: %q", p.LastName)
	}
	if back := FormFromProfile(p); back.Role != "user" || back.FullName != "Asha User" {
		t.Fatalf("round trip: %+v", back)
	}
}

func TestProfileComplete(t *testing.T) {
	client := &fakeProfileClient{}
	store := session.NewStatic("tok", domain.RoleMember)
	profiles := &Profiles{Client: client, Sessions: store, Log: zerolog.Nop()}
	form := ProfileForm{FullName: "Ravi Kumar", Phone: "1", EmergencyContact: "2", BuildingBlock: "B", FlatNumber: "101", DateOfBirth: "1988-10-01", Role: "worker", Specialization: "Plumbing"}
	saved, landing, err := profiles.Complete(context.Background(), form)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if landing != PageWorkerDashboard || saved.Specialization != "Plumbing" {
		t.Fatalf("landing %s saved %+v", landing, saved)
	}
	s, _ := store.Session(context.Background())
	if s.Role != domain.RoleWorker || !s.ProfileCompleted {
		t.Fatalf("session: %+v", s)
	}

	client.err = &sdk.APIError{StatusCode: 500, Kind: sdk.ErrServer}
	if _, err := profiles.Edit(context.Background(), form); Message(err) != "Failed to update profile. Please try again." {
		t.Fatalf("edit failure message: %q", Message(err))
	}
}
