package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := NewRedis(ctx, &redis.Options{Addr: addr}, time.Minute)
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	scope := Scope{UserID: "anon_test", SessionID: t.Name()}
	if err := s.SetValue(ctx, scope, "resumeText", "Jane Doe"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	v, ok, err := s.GetValue(ctx, scope, "resumeText")
	if err != nil || !ok || v != "Jane Doe" {
		t.Fatalf("GetValue = %q ok=%v err=%v", v, ok, err)
	}
	if err := s.DeleteValue(ctx, scope, "resumeText"); err != nil {
		t.Fatalf("DeleteValue failed: %v", err)
	}
	if _, ok, _ := s.GetValue(ctx, scope, "resumeText"); ok {
		t.Fatal("value present after delete")
	}
}
