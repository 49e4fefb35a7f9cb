package digest

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const rendersBucket = "renders"

// RenderCache stores rendered digest payloads in bbolt with a TTL. Each value
// carries an 8-byte big-endian stored-at timestamp prefix; freshness is always
// judged against that explicit timestamp, never file mtimes. A non-positive
// TTL disables the cache entirely and no database file is created.
type RenderCache struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

func OpenRenderCache(path string, ttl time.Duration) (*RenderCache, error) {
	if ttl <= 0 {
		return &RenderCache{ttl: ttl, now: time.Now}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rendersBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache bucket: %w", err)
	}

	return &RenderCache{db: db, ttl: ttl, now: time.Now}, nil
}

func (c *RenderCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached payload for key if present and fresh. Stale records
// are deleted on read; any storage error is treated as a miss.
func (c *RenderCache) Get(key string) ([]byte, bool) {
	if c.db == nil {
		return nil, false
	}

	var payload []byte
	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(rendersBucket))
		if bucket == nil {
			return nil
		}

		value := bucket.Get([]byte(key))
		if len(value) < 8 {
			return nil
		}

		storedAt := int64(binary.BigEndian.Uint64(value[:8]))
		if c.now().Unix()-storedAt > int64(c.ttl.Seconds()) {
			return bucket.Delete([]byte(key))
		}

		payload = make([]byte, len(value)-8)
		copy(payload, value[8:])
		return nil
	})
	if err != nil || payload == nil {
		return nil, false
	}
	return payload, true
}

// Put stores payload under key with the current time as its stored-at stamp.
func (c *RenderCache) Put(key string, payload []byte) error {
	if c.db == nil {
		return nil
	}

	value := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(value[:8], uint64(c.now().Unix()))
	copy(value[8:], payload)

	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(rendersBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %q missing", rendersBucket)
		}
		return bucket.Put([]byte(key), value)
	})
}

// Invalidate deletes every cached render for the given digest, both RSS and
// HTML, across all freshness tokens and name overrides.
func (c *RenderCache) Invalidate(uuid string) error {
	if c.db == nil {
		return nil
	}

	prefixes := [][]byte{
		[]byte("rss_" + uuid + "_"),
		[]byte("html_" + uuid + "_"),
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(rendersBucket))
		if bucket == nil {
			return nil
		}

		for _, prefix := range prefixes {
			cursor := bucket.Cursor()
			for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RSSCacheKey builds the cache key for a digest's RSS render. The freshness
// token changes whenever the digest record changes, so stale configurations
// can never serve from cache.
func RSSCacheKey(uuid string, token int64, nameOverride string) string {
	return fmt.Sprintf("rss_%s_%d_%s", uuid, token, hashParam(nameOverride))
}

// HTMLCacheKey builds the cache key for a digest's per-date HTML render.
func HTMLCacheKey(uuid, date string, token int64, nameOverride string) string {
	return fmt.Sprintf("html_%s_%s_%d_%s", uuid, date, token, hashParam(nameOverride))
}

func hashParam(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
