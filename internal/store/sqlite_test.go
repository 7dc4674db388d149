package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "careermate.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteUserRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()

	got, err := s.GetUser(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil user for missing id, got %v err=%v", got, err)
	}

	now := time.Unix(1_700_000_000, 0)
	user := &domain.User{UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now}
	if err := s.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	later := now.Add(time.Hour)
	if err := s.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}

	got, err = s.GetUser(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got == nil || got.Username != "anon-1" || !got.LastSeenAt.Equal(later) {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestSQLiteSessionValuesAreScoped(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()
	tab1 := Scope{UserID: "anon_1", SessionID: "tab-1"}
	tab2 := Scope{UserID: "anon_1", SessionID: "tab-2"}

	if err := s.SetValue(ctx, tab1, "resumeText", "Jane Doe"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if err := s.SetValue(ctx, tab1, "resumeText", "Jane Q. Doe"); err != nil {
		t.Fatalf("SetValue overwrite failed: %v", err)
	}

	v, ok, err := s.GetValue(ctx, tab1, "resumeText")
	if err != nil || !ok || v != "Jane Q. Doe" {
		t.Fatalf("GetValue = %q ok=%v err=%v", v, ok, err)
	}

	if _, ok, _ := s.GetValue(ctx, tab2, "resumeText"); ok {
		t.Fatal("value leaked into another tab scope")
	}

	if err := s.DeleteValue(ctx, tab1, "resumeText"); err != nil {
		t.Fatalf("DeleteValue failed: %v", err)
	}
	if _, ok, _ := s.GetValue(ctx, tab1, "resumeText"); ok {
		t.Fatal("value still present after delete")
	}
	if err := s.DeleteValue(ctx, tab1, "resumeText"); err != nil {
		t.Fatalf("deleting an absent key should succeed: %v", err)
	}
}

func TestSQLiteClearScopeAndCleanup(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()
	scope := Scope{UserID: "anon_1", SessionID: "default"}

	for _, key := range []string{"interviewState", "resumeText", "interviewReport"} {
		if err := s.SetValue(ctx, scope, key, "x"); err != nil {
			t.Fatalf("SetValue(%s) failed: %v", key, err)
		}
	}

	n, err := s.ClearScope(ctx, scope)
	if err != nil || n != 3 {
		t.Fatalf("ClearScope = %d err=%v, want 3", n, err)
	}

	if err := s.SetValue(ctx, scope, "resumeText", "x"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	n, err = s.CleanupExpiredValues(ctx, -time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("CleanupExpiredValues = %d err=%v, want 1", n, err)
	}
}

func TestScopedStorage(t *testing.T) {
	t.Parallel()

	mem := NewMemory()
	ctx := context.Background()
	a := Scoped(mem, "anon_1", "tab-1")
	b := Scoped(mem, "anon_1", "tab-2")

	if err := a.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok, _ := a.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get = %q ok=%v", v, ok)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("scoped storage leaked between tabs")
	}
	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := a.Get(ctx, "k"); ok {
		t.Fatal("value present after delete")
	}
	if a.Scope().SessionID != "tab-1" {
		t.Fatalf("unexpected scope: %+v", a.Scope())
	}
}
