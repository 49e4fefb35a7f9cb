// Package digest implements the feed digest pipeline: fetch, parse, window,
// filter, group, render, and the render cache in front of it.
package digest

import (
	"context"
	"sort"
	"time"

	"github.com/digesthq/feed-digest/internal/domain"
	"github.com/digesthq/feed-digest/internal/feed"
	"github.com/digesthq/feed-digest/internal/filter"
)

const dateLayout = "2006-01-02"

// Fetcher retrieves raw feed bytes. Satisfied by feed.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CategoryGroup holds the entries of one category within a date, newest first.
type CategoryGroup struct {
	Category string
	Entries  []domain.Entry
}

// DateGroup holds one calendar date's category groups.
type DateGroup struct {
	Date       string
	Categories []CategoryGroup
}

// Aggregator orchestrates a single synchronous pipeline run. It holds no
// per-request state; the clock is injectable for tests.
type Aggregator struct {
	fetcher Fetcher
	parser  *feed.Parser
	now     func() time.Time
}

func NewAggregator(fetcher Fetcher) *Aggregator {
	if fetcher == nil {
		fetcher = feed.NewFetcher(nil)
	}
	return &Aggregator{
		fetcher: fetcher,
		parser:  feed.NewParser(),
		now:     time.Now,
	}
}

// ForDate fetches and parses the feed, keeps only entries published on the
// given YYYY-MM-DD date in loc, applies filters, and groups by category.
func (a *Aggregator) ForDate(ctx context.Context, feedURL, date string, loc *time.Location, filters []string, onlyPriorToToday bool) (string, []CategoryGroup, error) {
	title, entries, err := a.load(ctx, feedURL, loc, onlyPriorToToday)
	if err != nil {
		return "", nil, err
	}

	dated := make([]domain.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.PublishedAt != nil && entry.PublishedAt.In(loc).Format(dateLayout) == date {
			dated = append(dated, entry)
		}
	}

	cfg := filter.Compile(filters)
	return title, groupByCategory(cfg.Apply(dated), cfg), nil
}

// ByDate fetches and parses the feed, applies filters, and buckets surviving
// dated entries by calendar date (newest date first), each date grouped by
// category. maxDays > 0 caps the number of most-recent date buckets.
func (a *Aggregator) ByDate(ctx context.Context, feedURL string, loc *time.Location, filters []string, onlyPriorToToday bool, maxDays int) (string, []DateGroup, error) {
	title, entries, err := a.load(ctx, feedURL, loc, onlyPriorToToday)
	if err != nil {
		return "", nil, err
	}

	cfg := filter.Compile(filters)
	entries = cfg.Apply(entries)

	buckets := make(map[string][]domain.Entry)
	for _, entry := range entries {
		if entry.PublishedAt == nil {
			continue
		}
		key := entry.PublishedAt.In(loc).Format(dateLayout)
		buckets[key] = append(buckets[key], entry)
	}

	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return naturalLess(dates[j], dates[i]) })

	if maxDays > 0 && len(dates) > maxDays {
		dates = dates[:maxDays]
	}

	groups := make([]DateGroup, 0, len(dates))
	for _, date := range dates {
		groups = append(groups, DateGroup{
			Date:       date,
			Categories: groupByCategory(buckets[date], cfg),
		})
	}

	return title, groups, nil
}

func (a *Aggregator) load(ctx context.Context, feedURL string, loc *time.Location, onlyPriorToToday bool) (string, []domain.Entry, error) {
	raw, err := a.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return "", nil, err
	}

	title, entries, err := a.parser.Parse(raw, loc)
	if err != nil {
		return "", nil, err
	}

	if onlyPriorToToday {
		entries = a.priorToToday(entries, loc)
	}
	return title, entries, nil
}

// priorToToday keeps entries published strictly before the start of the
// current day in loc. Undated entries are dropped here too.
func (a *Aggregator) priorToToday(entries []domain.Entry, loc *time.Location) []domain.Entry {
	now := a.now().In(loc)
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	kept := make([]domain.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.PublishedAt != nil && entry.PublishedAt.Before(startOfToday) {
			kept = append(kept, entry)
		}
	}
	return kept
}

// groupByCategory buckets dated entries under their primary category, applies
// content removals to summaries, sorts entries newest-first inside each
// bucket, and orders buckets by case-insensitive natural category order.
func groupByCategory(entries []domain.Entry, cfg filter.Config) []CategoryGroup {
	buckets := make(map[string][]domain.Entry)
	order := make([]string, 0)

	for _, entry := range entries {
		if entry.PublishedAt == nil {
			continue
		}
		entry.Summary = cfg.RemoveContent(entry.Summary)

		category := entry.PrimaryCategory()
		if _, seen := buckets[category]; !seen {
			order = append(order, category)
		}
		buckets[category] = append(buckets[category], entry)
	}

	sort.Slice(order, func(i, j int) bool { return naturalLess(order[i], order[j]) })

	groups := make([]CategoryGroup, 0, len(order))
	for _, category := range order {
		bucket := buckets[category]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].PublishedAt.Format(time.RFC3339) > bucket[j].PublishedAt.Format(time.RFC3339)
		})
		groups = append(groups, CategoryGroup{Category: category, Entries: bucket})
	}
	return groups
}
