package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sample struct {
	Token     string `json:"access_token"`
	ExpiresAt int64  `json:"expires_at"`
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	var got sample
	if err := s.Get(ctx, "missing", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	want := sample{Token: "abc", ExpiresAt: 1700000000}
	if err := s.Set(ctx, KeyToken, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Get(ctx, KeyToken, &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	when := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Set(ctx, KeyLastManual, when); err != nil {
		t.Fatalf("Set time failed: %v", err)
	}
	var gotTime time.Time
	if err := s.Get(ctx, KeyLastManual, &gotTime); err != nil {
		t.Fatalf("Get time failed: %v", err)
	}
	if !gotTime.Equal(when) {
		t.Errorf("Expected %v, got %v", when, gotTime)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, s)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected state file to exist: %v", err)
	}

	reopened, _ := NewFileStore(path)
	var got sample
	if err := reopened.Get(context.Background(), KeyToken, &got); err != nil || got.Token != "abc" {
		t.Errorf("Expected persisted token, got %+v (err %v)", got, err)
	}
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore("redis://" + addr + "/15")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	testCases := []struct {
		dsn     string
		wantErr bool
	}{
		{"memory://", false},
		{"file://" + filepath.Join(dir, "s.json"), false},
		{"badger://" + filepath.Join(dir, "kv"), false},
		{"etcd://localhost", true},
		{"", true},
	}
	for _, tc := range testCases {
		s, err := Open(tc.dsn)
		if (err != nil) != tc.wantErr {
			t.Errorf("Open(%q) error = %v, wantErr %v", tc.dsn, err, tc.wantErr)
			continue
		}
		if s != nil {
			s.Close()
		}
	}
}

func TestDSNPath(t *testing.T) {
	testCases := []struct {
		dsn      string
		expected string
	}{
		{"file://data/state.json", "data/state.json"},
		{"file:///var/lib/state.json", "/var/lib/state.json"},
		{"state.json", "state.json"},
	}
	for _, tc := range testCases {
		if got := dsnPath(tc.dsn); got != tc.expected {
			t.Errorf("dsnPath(%q) = %q, want %q", tc.dsn, got, tc.expected)
		}
	}
}
