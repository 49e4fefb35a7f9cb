package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"

	"github.com/digesthq/feed-digest/internal/domain"
)

// Parser normalizes RSS 2.0 and Atom feeds into domain entries. gofeed does
// the dialect detection and namespace handling; the fallback rules layered on
// top keep every text field present (empty, never absent) and degrade bad
// dates to a nil PublishedAt instead of dropping the entry.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// Parse decodes raw feed bytes and returns the feed title plus normalized
// entries with timestamps converted into loc.
func (p *Parser) Parse(raw []byte, loc *time.Location) (string, []domain.Entry, error) {
	if err := checkWellFormed(raw); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return "", nil, ErrUnsupportedFormat
		}
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	// Well-formed XML whose root is neither rss nor feed (OPML, RDF variants
	// gofeed maps elsewhere, JSON feeds) is a dialect problem, not a syntax one.
	if parsed.FeedType != "rss" && parsed.FeedType != "atom" {
		return "", nil, ErrUnsupportedFormat
	}

	if loc == nil {
		loc = time.UTC
	}

	entries := make([]domain.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, normalizeItem(item, parsed.FeedType, loc))
	}

	return strings.TrimSpace(parsed.Title), entries, nil
}

// checkWellFormed walks the raw bytes with a strict XML tokenizer before any
// dialect detection. gofeed tolerates mismatched tags and undeclared entities
// and would hand back a silently truncated feed; a publisher shipping broken
// XML must get a parse error instead. Input with no elements at all (plain
// text, JSON) fails here too.
func checkWellFormed(raw []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel

	sawElement := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	if !sawElement {
		return errors.New("no XML elements found")
	}
	return nil
}

func normalizeItem(item *gofeed.Item, feedType string, loc *time.Location) domain.Entry {
	summary := strings.TrimSpace(item.Description)
	if summary == "" {
		summary = strings.TrimSpace(item.Content)
	}

	return domain.Entry{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Summary:     summary,
		PublishedAt: itemPublishedAt(item, feedType, loc),
		Categories:  normalizeCategories(item.Categories),
		Author:      itemAuthor(item),
		GUID:        strings.TrimSpace(item.GUID),
		Image:       itemImage(item, feedType),
	}
}

// itemPublishedAt picks the entry timestamp. Atom prefers updated over
// published; RSS uses pubDate (gofeed already falls back to dc:date). An
// unparsable date leaves the entry undated rather than erroring.
func itemPublishedAt(item *gofeed.Item, feedType string, loc *time.Location) *time.Time {
	var parsed *time.Time
	if feedType == "atom" {
		parsed = item.UpdatedParsed
		if parsed == nil {
			parsed = item.PublishedParsed
		}
	} else {
		parsed = item.PublishedParsed
	}

	if parsed == nil {
		return nil
	}
	converted := parsed.In(loc)
	return &converted
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil {
		if name := strings.TrimSpace(item.Author.Name); name != "" {
			return name
		}
	}
	for _, person := range item.Authors {
		if person == nil {
			continue
		}
		if name := strings.TrimSpace(person.Name); name != "" {
			return name
		}
	}
	return ""
}

// normalizeCategories trims, drops empties, and deduplicates preserving order.
func normalizeCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// itemImage finds the first image URL: RSS enclosure with an empty or image/*
// type, then media:content, then media:thumbnail. Atom has no enclosure
// concept, so only the media namespace applies there.
func itemImage(item *gofeed.Item, feedType string) string {
	if feedType == "rss" && len(item.Enclosures) > 0 {
		enc := item.Enclosures[0]
		url := strings.TrimSpace(enc.URL)
		typ := strings.TrimSpace(enc.Type)
		if url != "" && (typ == "" || strings.HasPrefix(typ, "image/")) {
			return url
		}
	}

	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}

	if contents, ok := media["content"]; ok && len(contents) > 0 {
		url := strings.TrimSpace(contents[0].Attrs["url"])
		typ := strings.TrimSpace(contents[0].Attrs["type"])
		if url != "" && (typ == "" || strings.HasPrefix(typ, "image/")) {
			return url
		}
	}

	if thumbs, ok := media["thumbnail"]; ok && len(thumbs) > 0 {
		if url := strings.TrimSpace(thumbs[0].Attrs["url"]); url != "" {
			return url
		}
	}

	return ""
}
