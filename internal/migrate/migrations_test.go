package migrate_test

import (
	"context"
	"testing"

	"flatconnect/internal/db"
	"flatconnect/internal/migrate"
)

func TestStepsAreOrdered(t *testing.T) {
	for _, set := range []migrate.Set{migrate.Session, migrate.DevServer} {
		steps, err := migrate.Steps(set)
		if err != nil {
			t.Fatalf("%s: %v", set, err)
		}
		if len(steps) == 0 {
			t.Fatalf("%s: no steps", set)
		}
		for i := 1; i < len(steps); i++ {
			if steps[i].Version <= steps[i-1].Version {
				t.Fatalf("%s: steps out of order: %v", set, steps)
			}
		}
	}
	if _, err := migrate.Steps("nope"); err == nil {
		t.Fatalf("expected error for unknown set")
	}
}

func TestMigrateIsIdempotentAndPerSet(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir(), Name: db.DevServerDB})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if v, err := migrate.Version(ctx, conn, migrate.DevServer); err != nil || v != 0 {
		t.Fatalf("fresh db version = %d, %v", v, err)
	}
	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(conn, migrate.DevServer); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
	steps, _ := migrate.Steps(migrate.DevServer)
	want := steps[len(steps)-1].Version
	v, err := migrate.Version(ctx, conn, migrate.DevServer)
	if err != nil || v != want {
		t.Fatalf("version = %d, %v; want %d", v, err, want)
	}
	if v, _ := migrate.Version(ctx, conn, migrate.Session); v != 0 {
		t.Fatalf("session set should be untouched, got %d", v)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&n); err != nil {
		t.Fatalf("notifications table missing: %v", err)
	}
}
