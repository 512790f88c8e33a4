package database

import (
	"strings"
	"testing"
)

func TestBuildPostgresDSN(t *testing.T) {
	cfg := Config{
		Host: "localhost",
		Port: 5432,
		Name: "simplenotify",
		User: "simplenotify",
	}

	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "host=localhost port=5432 user=simplenotify dbname=simplenotify sslmode=disable"
	if dsn != expected {
		t.Fatalf("unexpected dsn\nexpected: %s\nactual:   %s", expected, dsn)
	}
}

func TestBuildPostgresDSNOptionsOverride(t *testing.T) {
	cfg := Config{
		Name:     "push",
		User:     "svc",
		Password: "secret",
		Options:  map[string]string{"sslmode": "require", "application_name": "simplenotify"},
	}

	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !containsAll(dsn, "host=localhost", "password=secret", "sslmode=require", "application_name=simplenotify") {
		t.Fatalf("dsn missing expected parts: %s", dsn)
	}
}

func TestBuildPostgresDSNRequiresUser(t *testing.T) {
	if _, err := buildPostgresDSN(Config{Name: "push"}); err == nil {
		t.Fatal("expected error when user is missing")
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	cfg := Config{
		Host: "127.0.0.1",
		Port: 3306,
		Name: "simplenotify",
		User: "simplenotify",
	}

	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "simplenotify@tcp(127.0.0.1:3306)/simplenotify?charset=utf8mb4&loc=UTC&parseTime=True"
	if dsn != expected {
		t.Fatalf("unexpected dsn\nexpected: %s\nactual:   %s", expected, dsn)
	}
}

func TestBuildDSNPrefersExplicitOverride(t *testing.T) {
	cfg := Config{DSN: "custom-dsn"}

	pg, err := buildPostgresDSN(cfg)
	if err != nil || pg != "custom-dsn" {
		t.Fatalf("expected postgres override, got %q (%v)", pg, err)
	}
	my, err := buildMySQLDSN(cfg)
	if err != nil || my != "custom-dsn" {
		t.Fatalf("expected mysql override, got %q (%v)", my, err)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}
