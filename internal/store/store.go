// Package store persists digest configurations in bbolt. Records are JSON
// encoded and keyed by UUID.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/digesthq/feed-digest/internal/domain"
)

const digestsBucket = "digests"

const maxNameLength = 150

// ErrNotFound is returned when no digest exists for a UUID.
var ErrNotFound = errors.New("digest not found")

// ValidationError reports a rejected create or update. The message is safe to
// return to API clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErr(message string) error {
	return &ValidationError{Message: message}
}

// Store is the bbolt-backed digest repository.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening digest database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(digestsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating digest bucket: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateParams holds the fields accepted when creating a digest.
// OnlyPriorToToday defaults to true when nil.
type CreateParams struct {
	FeedURL          string
	Name             string
	Timezone         string
	Filters          []string
	OnlyPriorToToday *bool
	MaxDays          int
}

// UpdateParams holds the fields accepted when updating a digest. Nil fields
// are left unchanged.
type UpdateParams struct {
	FeedURL          *string
	Name             *string
	Timezone         *string
	Filters          *[]string
	OnlyPriorToToday *bool
	MaxDays          *int
}

// Create validates and persists a new digest.
func (s *Store) Create(params CreateParams) (domain.Digest, error) {
	params.FeedURL = strings.TrimSpace(params.FeedURL)
	params.Name = strings.TrimSpace(params.Name)

	if err := validateFeedURL(params.FeedURL); err != nil {
		return domain.Digest{}, err
	}
	if err := validateName(params.Name); err != nil {
		return domain.Digest{}, err
	}
	if err := validateTimezone(params.Timezone); err != nil {
		return domain.Digest{}, err
	}
	if params.MaxDays < 0 {
		return domain.Digest{}, validationErr("The max days must be at least 0.")
	}

	onlyPrior := true
	if params.OnlyPriorToToday != nil {
		onlyPrior = *params.OnlyPriorToToday
	}

	now := s.now().UTC()
	d := domain.Digest{
		UUID:             uuid.NewString(),
		FeedURL:          params.FeedURL,
		Name:             params.Name,
		Timezone:         params.Timezone,
		Filters:          normalizeFilters(params.Filters),
		OnlyPriorToToday: onlyPrior,
		MaxDays:          params.MaxDays,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(digestsBucket))
		if err := checkUnique(bucket, d.FeedURL, d.Name, ""); err != nil {
			return err
		}
		return putDigest(bucket, d)
	})
	if err != nil {
		return domain.Digest{}, err
	}
	return d, nil
}

// Update applies a partial update and bumps UpdatedAt, which retires all
// cached renders keyed on the old freshness token.
func (s *Store) Update(id string, params UpdateParams) (domain.Digest, error) {
	var updated domain.Digest

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(digestsBucket))

		raw := bucket.Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}

		var d domain.Digest
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("decoding digest %s: %w", id, err)
		}

		if params.FeedURL != nil {
			feedURL := strings.TrimSpace(*params.FeedURL)
			if err := validateFeedURL(feedURL); err != nil {
				return err
			}
			d.FeedURL = feedURL
		}
		if params.Name != nil {
			name := strings.TrimSpace(*params.Name)
			if err := validateName(name); err != nil {
				return err
			}
			d.Name = name
		}
		if params.Timezone != nil {
			if err := validateTimezone(*params.Timezone); err != nil {
				return err
			}
			d.Timezone = *params.Timezone
		}
		if params.Filters != nil {
			d.Filters = normalizeFilters(*params.Filters)
		}
		if params.OnlyPriorToToday != nil {
			d.OnlyPriorToToday = *params.OnlyPriorToToday
		}
		if params.MaxDays != nil {
			if *params.MaxDays < 0 {
				return validationErr("The max days must be at least 0.")
			}
			d.MaxDays = *params.MaxDays
		}

		if err := checkUnique(bucket, d.FeedURL, d.Name, d.UUID); err != nil {
			return err
		}

		d.UpdatedAt = s.now().UTC()
		updated = d
		return putDigest(bucket, d)
	})
	if err != nil {
		return domain.Digest{}, err
	}
	return updated, nil
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(digestsBucket))
		if bucket.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

func (s *Store) Get(id string) (domain.Digest, error) {
	var d domain.Digest
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(digestsBucket)).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &d)
	})
	if err != nil {
		return domain.Digest{}, err
	}
	return d, nil
}

// List returns all digests, newest first.
func (s *Store) List() ([]domain.Digest, error) {
	var digests []domain.Digest
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(digestsBucket)).ForEach(func(_, raw []byte) error {
			var d domain.Digest
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			digests = append(digests, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(digests, func(i, j int) bool {
		return digests[i].CreatedAt.After(digests[j].CreatedAt)
	})
	return digests, nil
}

func putDigest(bucket *bolt.Bucket, d domain.Digest) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding digest %s: %w", d.UUID, err)
	}
	return bucket.Put([]byte(d.UUID), raw)
}

// checkUnique enforces that a feed URL can only repeat when each copy carries
// a distinct non-empty name.
func checkUnique(bucket *bolt.Bucket, feedURL, name, excludeUUID string) error {
	feedURLTaken := false
	nameTaken := false

	err := bucket.ForEach(func(key, raw []byte) error {
		if string(key) == excludeUUID {
			return nil
		}
		var existing domain.Digest
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		if strings.EqualFold(existing.FeedURL, feedURL) {
			feedURLTaken = true
		}
		if name != "" && strings.EqualFold(existing.Name, name) {
			nameTaken = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if feedURLTaken && name == "" {
		return validationErr("The feed URL has already been taken.")
	}
	if feedURLTaken && nameTaken {
		return validationErr("The feed name or URL must be unique.")
	}
	return nil
}

func validateFeedURL(feedURL string) error {
	if feedURL == "" {
		return validationErr("The feed URL field is required.")
	}
	parsed, err := url.Parse(feedURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return validationErr("The feed URL must be a valid HTTP or HTTPS URL.")
	}
	return nil
}

func validateName(name string) error {
	if len(name) > maxNameLength {
		return validationErr("The name may not be greater than 150 characters.")
	}
	return nil
}

func validateTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return validationErr("The timezone must be a valid timezone.")
	}
	return nil
}

func normalizeFilters(filters []string) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
