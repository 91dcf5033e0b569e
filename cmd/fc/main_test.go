package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"

	"flatconnect/internal/domain"
	"flatconnect/internal/lifecycle"
	"flatconnect/internal/workflow"
	sdk "flatconnect/sdk/go"
)

func TestSetEnvValueKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := setEnvValue(path, "FLATCONNECT_JWT_SECRET", "s3cret"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := setEnvValue(path, "FLATCONNECT_BASE_URL", "http://one"); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if err := setEnvValue(path, "FLATCONNECT_BASE_URL", "http://two"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if env["FLATCONNECT_BASE_URL"] != "http://two" || env["FLATCONNECT_JWT_SECRET"] != "s3cret" {
		t.Fatalf("unexpected env %v", env)
	}
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	if err := loadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestErrorText(t *testing.T) {
	if got := errorText(workflow.ErrNoWorkerSelected); got != "Please select a worker" {
		t.Fatalf("got %q", got)
	}
	login := &workflow.OpError{Op: workflow.OpLogin, Err: &sdk.APIError{StatusCode: 400, Message: "bad", Kind: sdk.ErrUnauthenticated}}
	if got := errorText(login); got != "Login Failed: bad" {
		t.Fatalf("got %q", got)
	}
	plain := errors.New("config flatconnect.yml: boom")
	if got := errorText(plain); !strings.Contains(got, "boom") {
		t.Fatalf("plain errors should keep their text, got %q", got)
	}
}

func TestNextStepFollowsTheCard(t *testing.T) {
	resolvedAt := "2025-03-01T09:30:00Z"
	cases := []struct {
		name   string
		issue  domain.Issue
		role   domain.Role
		want   lifecycle.Event
		failed bool
	}{
		{"secretary assigns new", domain.Issue{ID: "1", Status: domain.StatusNew}, domain.RoleSecretary, lifecycle.EventAssign, false},
		{"worker starts assigned", domain.Issue{ID: "2", Status: domain.StatusAssigned}, domain.RoleWorker, lifecycle.EventStart, false},
		{"worker completes in progress", domain.Issue{ID: "3", Status: domain.StatusInProgress}, domain.RoleWorker, lifecycle.EventComplete, false},
		{"worker sees completed task", domain.Issue{ID: "4", Status: domain.StatusResolved, ResolvedAt: &resolvedAt}, domain.RoleWorker, "", true},
		{"member has no action", domain.Issue{ID: "5", Status: domain.StatusNew}, domain.RoleMember, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := nextStep(tc.issue, tc.role)
			if tc.failed {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("nextStep = %s, %v; want %s", got, err, tc.want)
			}
		})
	}
}
