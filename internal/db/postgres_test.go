package db_test

import (
	"testing"
	"time"

	"github.com/notifyhub/mailqueue/internal/config"
	"github.com/notifyhub/mailqueue/internal/db"
)

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/mq?sslmode=disable", "pgx5://u:p@localhost:5432/mq?sslmode=disable"},
		{"postgresql://localhost/mq", "pgx5://localhost/mq"},
		{"pgx5://localhost/mq", "pgx5://localhost/mq"},
		{"localhost/mq", "pgx5://localhost/mq"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := db.MigrationURL(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPoolConfig(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:   "postgres://u:p@db.internal:6432/mq?sslmode=disable",
		DBMaxConns:    12,
		DBMinConns:    3,
		DBMaxConnIdle: 5 * time.Minute,
	}

	pc, err := db.PoolConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.MaxConns != 12 || pc.MinConns != 3 {
		t.Fatalf("unexpected pool sizes %d/%d", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnIdleTime != 5*time.Minute {
		t.Fatalf("unexpected idle time %s", pc.MaxConnIdleTime)
	}
	if pc.ConnConfig.Host != "db.internal" || pc.ConnConfig.Port != 6432 {
		t.Fatalf("unexpected target %s:%d", pc.ConnConfig.Host, pc.ConnConfig.Port)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != db.ApplicationName {
		t.Fatalf("expected application_name %q, got %q", db.ApplicationName, got)
	}
}

func TestPoolConfig_KeepsExplicitApplicationName(t *testing.T) {
	pc, err := db.PoolConfig(&config.Config{DatabaseURL: "postgres://localhost/mq?application_name=ops"})
	if err != nil {
		t.Fatal(err)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "ops" {
		t.Fatalf("expected DSN application_name to win, got %q", got)
	}
}

func TestPoolConfig_MinAboveMaxIgnored(t *testing.T) {
	pc, err := db.PoolConfig(&config.Config{DatabaseURL: "postgres://localhost/mq", DBMaxConns: 2, DBMinConns: 5})
	if err != nil {
		t.Fatal(err)
	}
	if pc.MinConns > pc.MaxConns {
		t.Fatalf("min conns %d must not exceed max %d", pc.MinConns, pc.MaxConns)
	}
}

func TestPoolConfig_InvalidURL(t *testing.T) {
	if _, err := db.PoolConfig(&config.Config{DatabaseURL: "postgres://%zz"}); err == nil {
		t.Fatal("expected a parse error")
	}
}
