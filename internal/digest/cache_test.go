package digest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRenderCacheDisabledWithoutTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	cache, err := OpenRenderCache(path, 0)
	if err != nil {
		t.Fatalf("OpenRenderCache returned error: %v", err)
	}
	defer cache.Close()

	if err := cache.Put("rss_u_0_x", []byte("payload")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if _, ok := cache.Get("rss_u_0_x"); ok {
		t.Fatalf("disabled cache should always miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("disabled cache should not create a database file")
	}
}

func TestRenderCachePutGet(t *testing.T) {
	cache, err := OpenRenderCache(filepath.Join(t.TempDir(), "cache.db"), time.Minute)
	if err != nil {
		t.Fatalf("OpenRenderCache returned error: %v", err)
	}
	defer cache.Close()

	if err := cache.Put("rss_u_1_x", []byte("payload")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, ok := cache.Get("rss_u_1_x")
	if !ok || string(got) != "payload" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	if _, ok := cache.Get("rss_u_1_other"); ok {
		t.Fatalf("unknown key should miss")
	}
}

func TestRenderCacheExpiry(t *testing.T) {
	cache, err := OpenRenderCache(filepath.Join(t.TempDir(), "cache.db"), time.Minute)
	if err != nil {
		t.Fatalf("OpenRenderCache returned error: %v", err)
	}
	defer cache.Close()

	base := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	if err := cache.Put("rss_u_1_x", []byte("payload")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	cache.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := cache.Get("rss_u_1_x"); !ok {
		t.Fatalf("entry should still be fresh")
	}

	cache.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := cache.Get("rss_u_1_x"); ok {
		t.Fatalf("entry should have expired")
	}

	// Stale reads delete the record, so it stays gone even if time rolls back.
	cache.now = func() time.Time { return base }
	if _, ok := cache.Get("rss_u_1_x"); ok {
		t.Fatalf("expired entry should have been removed")
	}
}

func TestRenderCacheInvalidateScopesToDigest(t *testing.T) {
	cache, err := OpenRenderCache(filepath.Join(t.TempDir(), "cache.db"), time.Minute)
	if err != nil {
		t.Fatalf("OpenRenderCache returned error: %v", err)
	}
	defer cache.Close()

	keys := []string{
		RSSCacheKey("uuid-a", 1, ""),
		HTMLCacheKey("uuid-a", "2025-06-10", 1, ""),
		RSSCacheKey("uuid-b", 1, ""),
		HTMLCacheKey("uuid-b", "2025-06-10", 1, "custom"),
	}
	for _, key := range keys {
		if err := cache.Put(key, []byte("payload")); err != nil {
			t.Fatalf("Put(%s) returned error: %v", key, err)
		}
	}

	if err := cache.Invalidate("uuid-a"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}

	for _, key := range keys[:2] {
		if _, ok := cache.Get(key); ok {
			t.Fatalf("key %s should have been invalidated", key)
		}
	}
	for _, key := range keys[2:] {
		if _, ok := cache.Get(key); !ok {
			t.Fatalf("key %s should have survived", key)
		}
	}
}

func TestCacheKeysDifferByInputs(t *testing.T) {
	base := RSSCacheKey("uuid-a", 1, "")
	if RSSCacheKey("uuid-a", 2, "") == base {
		t.Fatalf("freshness token should change the key")
	}
	if RSSCacheKey("uuid-a", 1, "other") == base {
		t.Fatalf("name override should change the key")
	}
	if HTMLCacheKey("uuid-a", "2025-06-10", 1, "") == HTMLCacheKey("uuid-a", "2025-06-11", 1, "") {
		t.Fatalf("date should change the key")
	}
}
