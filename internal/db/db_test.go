package db

import (
	"io/fs"
	"net/url"
	"testing"

	"github.com/taskapi/taskapi/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		sslmode string
	}{
		{
			name:    "plain",
			cfg:     config.DatabaseConfig{Host: "db", Port: 5432, User: "taskapi", Password: "p@ss word", DBName: "tasks"},
			sslmode: "disable",
		},
		{
			name:    "ssl",
			cfg:     config.DatabaseConfig{Host: "db", Port: 6543, User: "u", Password: "p", DBName: "tasks", UseSSL: true},
			sslmode: "require",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, err := url.Parse(DSN(tc.cfg))
			if err != nil {
				t.Fatalf("parse dsn: %v", err)
			}
			if u.Scheme != "postgres" {
				t.Fatalf("unexpected scheme %q", u.Scheme)
			}
			if u.Path != "/"+tc.cfg.DBName {
				t.Fatalf("unexpected path %q", u.Path)
			}
			if pw, _ := u.User.Password(); pw != tc.cfg.Password {
				t.Fatalf("password not preserved: %q", pw)
			}
			if got := u.Query().Get("sslmode"); got != tc.sslmode {
				t.Fatalf("expected sslmode %q, got %q", tc.sslmode, got)
			}
		})
	}
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("glob up migrations: %v", err)
	}
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	if err != nil {
		t.Fatalf("glob down migrations: %v", err)
	}
	if len(ups) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	if len(ups) != len(downs) {
		t.Fatalf("expected paired migrations, got %d up and %d down", len(ups), len(downs))
	}
}

func TestMigrateDownRejectsNonPositiveSteps(t *testing.T) {
	if err := MigrateDown("postgres://unused", 0); err == nil {
		t.Fatalf("expected error for zero steps")
	}
}
