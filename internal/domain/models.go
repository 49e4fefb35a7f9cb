package domain

import "time"

// Domain contains the core models shared across packages.

// Entry is a single article extracted from an RSS or Atom feed, normalized to
// a common shape. Text fields are never absent, only empty; PublishedAt and
// Image are the only optional fields.
type Entry struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Categories  []string   `json:"categories"`
	Author      string     `json:"author"`
	GUID        string     `json:"guid"`
	Image       string     `json:"image,omitempty"`
}

// PrimaryCategory returns the grouping bucket for the entry.
func (e Entry) PrimaryCategory() string {
	if len(e.Categories) > 0 {
		return e.Categories[0]
	}
	return "Uncategorized"
}

// Digest is a configured feed rendered on demand.
type Digest struct {
	UUID             string    `json:"uuid"`
	FeedURL          string    `json:"feed_url"`
	Name             string    `json:"name,omitempty"`
	Timezone         string    `json:"timezone,omitempty"`
	Filters          []string  `json:"filters"`
	OnlyPriorToToday bool      `json:"only_prior_to_today"`
	MaxDays          int       `json:"max_days,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FreshnessToken is the opaque version marker used to key cached renders.
// Updating a digest bumps UpdatedAt, which retires every older cache key.
func (d Digest) FreshnessToken() int64 {
	if d.UpdatedAt.IsZero() {
		return 0
	}
	return d.UpdatedAt.Unix()
}
