package auth

import (
	"errors"
	"testing"
	"time"

	"flatconnect/internal/domain"
)

func TestTokensRoundTrip(t *testing.T) {
	tk := Tokens{Secret: []byte("s3cret")}
	token, err := tk.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := tk.Parse(token)
	if err != nil || id != 42 {
		t.Fatalf("parse = %d, %v", id, err)
	}
	other := Tokens{Secret: []byte("other")}
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}
	if _, err := tk.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestTokensExpire(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tk := Tokens{Secret: []byte("k"), TTL: time.Hour, Now: func() time.Time { return now }}
	token, err := tk.Issue(1)
	if err != nil {
		t.Fatal(err)
	}
	tk.Now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := tk.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role domain.Role
		perm string
		ok   bool
	}{
		{domain.RoleAdmin, PermIssueAssign, true},
		{domain.RoleSecretary, PermIssueAssign, true},
		{domain.RoleSecretary, PermIssueWork, false},
		{domain.RoleWorker, PermIssueWork, true},
		{domain.RoleWorker, PermWorkerList, false},
		{domain.RoleMember, PermIssueListAll, false},
		{domain.Role("janitor"), PermIssueWork, false},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.ok {
			t.Fatalf("%s/%s = %v", tc.role, tc.perm, got)
		}
	}
	err := Require(domain.RoleMember, PermIssueAssign, "Only admins and secretaries can assign issues")
	var fe ForbiddenError
	if !errors.As(err, &fe) || fe.Error() != "Only admins and secretaries can assign issues" {
		t.Fatalf("unexpected %v", err)
	}
}
