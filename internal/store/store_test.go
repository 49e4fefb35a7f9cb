package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "digests.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func strPtr(v string) *string       { return &v }
func intPtr(v int) *int             { return &v }
func slicePtr(v []string) *[]string { return &v }

func TestCreateAndGet(t *testing.T) {
	st := openTestStore(t)

	created, err := st.Create(CreateParams{
		FeedURL:  "http://example.com/feed.xml",
		Name:     "Example",
		Timezone: "America/New_York",
		Filters:  []string{"+#tech", " ", "-author:spam"},
		MaxDays:  7,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.UUID == "" {
		t.Fatalf("uuid not assigned")
	}
	if !created.OnlyPriorToToday {
		t.Fatalf("OnlyPriorToToday should default to true")
	}
	if len(created.Filters) != 2 {
		t.Fatalf("blank filters should be dropped: %v", created.Filters)
	}

	got, err := st.Get(created.UUID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.FeedURL != created.FeedURL || got.Name != created.Name || got.MaxDays != 7 {
		t.Fatalf("Get = %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	st := openTestStore(t)

	cases := []struct {
		name   string
		params CreateParams
	}{
		{"missing feed url", CreateParams{}},
		{"bad scheme", CreateParams{FeedURL: "ftp://example.com/feed"}},
		{"not a url", CreateParams{FeedURL: "not a url"}},
		{"long name", CreateParams{FeedURL: "http://example.com/f", Name: strings.Repeat("x", 151)}},
		{"bad timezone", CreateParams{FeedURL: "http://example.com/f", Timezone: "Mars/Olympus"}},
		{"negative max days", CreateParams{FeedURL: "http://example.com/f", MaxDays: -1}},
	}

	for _, tc := range cases {
		_, err := st.Create(tc.params)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}

func TestCreateUniqueness(t *testing.T) {
	st := openTestStore(t)

	if _, err := st.Create(CreateParams{FeedURL: "http://example.com/feed", Name: "First"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Same URL without a distinguishing name is rejected.
	_, err := st.Create(CreateParams{FeedURL: "http://example.com/feed"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "The feed URL has already been taken." {
		t.Fatalf("expected taken-url error, got %v", err)
	}

	// Same URL and same name is rejected.
	_, err = st.Create(CreateParams{FeedURL: "http://example.com/feed", Name: "First"})
	if !errors.As(err, &verr) || verr.Message != "The feed name or URL must be unique." {
		t.Fatalf("expected uniqueness error, got %v", err)
	}

	// Same URL with a distinct name is allowed.
	if _, err := st.Create(CreateParams{FeedURL: "http://example.com/feed", Name: "Second"}); err != nil {
		t.Fatalf("distinct name should be allowed, got %v", err)
	}
}

func TestUpdatePartialAndFreshness(t *testing.T) {
	st := openTestStore(t)

	created, err := st.Create(CreateParams{FeedURL: "http://example.com/feed", Name: "Example"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	st.now = func() time.Time { return created.UpdatedAt.Add(time.Hour) }

	updated, err := st.Update(created.UUID, UpdateParams{
		Name:    strPtr("Renamed"),
		MaxDays: intPtr(3),
		Filters: slicePtr([]string{"+#tech"}),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != "Renamed" || updated.MaxDays != 3 || len(updated.Filters) != 1 {
		t.Fatalf("Update = %+v", updated)
	}
	if updated.FeedURL != created.FeedURL {
		t.Fatalf("unset fields must not change")
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("UpdatedAt should be bumped")
	}
	if updated.FreshnessToken() == created.FreshnessToken() {
		t.Fatalf("freshness token should change on update")
	}

	flag := false
	updated2, err := st.Update(created.UUID, UpdateParams{OnlyPriorToToday: &flag})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated2.OnlyPriorToToday {
		t.Fatalf("OnlyPriorToToday should be updatable to false")
	}
}

func TestUpdateValidatesAndMissing(t *testing.T) {
	st := openTestStore(t)

	created, err := st.Create(CreateParams{FeedURL: "http://example.com/feed"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, err = st.Update(created.UUID, UpdateParams{FeedURL: strPtr("ftp://x")})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, err = st.Update("missing-uuid", UpdateParams{Name: strPtr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	st := openTestStore(t)

	created, err := st.Create(CreateParams{FeedURL: "http://example.com/feed"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := st.Delete(created.UUID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := st.Get(created.UUID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.Delete(created.UUID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should return ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	st := openTestStore(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Hour
		st.now = func() time.Time { return base.Add(offset) }
		if _, err := st.Create(CreateParams{FeedURL: "http://example.com/feed", Name: string(rune('a' + i))}); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	digests, err := st.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(digests) != 3 {
		t.Fatalf("len = %d", len(digests))
	}
	if digests[0].Name != "c" || digests[2].Name != "a" {
		t.Fatalf("not newest first: %v, %v, %v", digests[0].Name, digests[1].Name, digests[2].Name)
	}
}
