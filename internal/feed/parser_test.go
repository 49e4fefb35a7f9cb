package feed

import (
	"errors"
	"testing"
	"time"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
     xmlns:dc="http://purl.org/dc/elements/1.1/"
     xmlns:content="http://purl.org/rss/1.0/modules/content/"
     xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Example News</title>
    <link>http://news.example.com</link>
    <item>
      <title>Tech story</title>
      <link>http://news.example.com/tech-story</link>
      <description>A short summary</description>
      <pubDate>Mon, 02 Jun 2025 10:30:00 +0000</pubDate>
      <guid>tech-story-1</guid>
      <dc:creator>Jane Doe</dc:creator>
      <category>Tech</category>
      <category>Tech</category>
      <category>AI</category>
      <enclosure url="http://img.example.com/a.jpg" type="image/jpeg" length="0"/>
    </item>
    <item>
      <title>Content fallback</title>
      <link>http://news.example.com/fallback</link>
      <content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>
      <dc:date>2025-06-01T08:00:00Z</dc:date>
    </item>
    <item>
      <title>Undated story</title>
      <link>http://news.example.com/undated</link>
      <description>Still kept</description>
      <pubDate>not a real date</pubDate>
    </item>
  </channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <id>urn:example:feed</id>
  <updated>2025-06-02T12:00:00Z</updated>
  <entry>
    <title>Atom entry</title>
    <id>urn:example:entry-1</id>
    <link href="http://atom.example.com/entry-1"/>
    <summary>Atom summary</summary>
    <published>2025-06-01T09:00:00Z</published>
    <updated>2025-06-02T11:00:00Z</updated>
    <author><name>Sam Roe</name></author>
    <category term="Go"/>
    <category term="Programming"/>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	parser := NewParser()

	title, entries, err := parser.Parse([]byte(rssSample), time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if title != "Example News" {
		t.Fatalf("title = %q", title)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d", len(entries))
	}

	first := entries[0]
	if first.Title != "Tech story" || first.Link != "http://news.example.com/tech-story" {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if first.Summary != "A short summary" {
		t.Fatalf("summary = %q", first.Summary)
	}
	if first.Author != "Jane Doe" {
		t.Fatalf("author = %q", first.Author)
	}
	if first.GUID != "tech-story-1" {
		t.Fatalf("guid = %q", first.GUID)
	}
	if first.Image != "http://img.example.com/a.jpg" {
		t.Fatalf("image = %q", first.Image)
	}
	if len(first.Categories) != 2 || first.Categories[0] != "Tech" || first.Categories[1] != "AI" {
		t.Fatalf("categories = %v", first.Categories)
	}
	want := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	if first.PublishedAt == nil || !first.PublishedAt.Equal(want) {
		t.Fatalf("published_at = %v", first.PublishedAt)
	}
}

func TestParseRSSContentAndDateFallbacks(t *testing.T) {
	parser := NewParser()

	_, entries, err := parser.Parse([]byte(rssSample), time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	fallback := entries[1]
	if fallback.Summary != "<p>Full body</p>" {
		t.Fatalf("summary = %q", fallback.Summary)
	}
	want := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	if fallback.PublishedAt == nil || !fallback.PublishedAt.Equal(want) {
		t.Fatalf("published_at = %v", fallback.PublishedAt)
	}
}

func TestParseRSSBadDateKeepsEntryUndated(t *testing.T) {
	parser := NewParser()

	_, entries, err := parser.Parse([]byte(rssSample), time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	undated := entries[2]
	if undated.Title != "Undated story" {
		t.Fatalf("unexpected entry: %+v", undated)
	}
	if undated.PublishedAt != nil {
		t.Fatalf("published_at should be nil, got %v", undated.PublishedAt)
	}
}

func TestParseRSSTextFieldsNeverAbsent(t *testing.T) {
	parser := NewParser()

	_, entries, err := parser.Parse([]byte(rssSample), time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	for i, entry := range entries {
		if entry.Categories == nil {
			t.Fatalf("entries[%d].Categories is nil", i)
		}
	}
}

func TestParseAtomPrefersUpdated(t *testing.T) {
	parser := NewParser()

	title, entries, err := parser.Parse([]byte(atomSample), time.UTC)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if title != "Example Atom" {
		t.Fatalf("title = %q", title)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d", len(entries))
	}

	entry := entries[0]
	want := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)
	if entry.PublishedAt == nil || !entry.PublishedAt.Equal(want) {
		t.Fatalf("published_at = %v, want updated timestamp", entry.PublishedAt)
	}
	if entry.Summary != "Atom summary" {
		t.Fatalf("summary = %q", entry.Summary)
	}
	if entry.Author != "Sam Roe" {
		t.Fatalf("author = %q", entry.Author)
	}
	if len(entry.Categories) != 2 || entry.Categories[0] != "Go" {
		t.Fatalf("categories = %v", entry.Categories)
	}
}

func TestParseConvertsToLocation(t *testing.T) {
	parser := NewParser()
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	_, entries, err := parser.Parse([]byte(atomSample), kolkata)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := entries[0].PublishedAt.Location(); got != kolkata {
		t.Fatalf("location = %v", got)
	}
	if got := entries[0].PublishedAt.Format("2006-01-02 15:04"); got != "2025-06-02 16:30" {
		t.Fatalf("local time = %q", got)
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	parser := NewParser()

	opml := `<?xml version="1.0"?><opml version="2.0"><head/><body/></opml>`
	if _, _, err := parser.Parse([]byte(opml), time.UTC); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("non-feed xml: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseMalformedXML(t *testing.T) {
	parser := NewParser()

	cases := []struct {
		name string
		raw  string
	}{
		{"truncated", `<?xml version="1.0"?><rss version="2.0"><channel><title>Broken`},
		{"mismatched tags", `<?xml version="1.0"?><rss version="2.0"><channel><item><title>x</title></channel></rss>`},
		{"undeclared entity", `<?xml version="1.0"?><rss version="2.0"><channel><title>&badent;</title></channel></rss>`},
		{"plain text", "plain text, not a feed"},
		{"json feed", `{"version":"https://jsonfeed.org/version/1.1","title":"x","items":[]}`},
	}

	for _, tc := range cases {
		if _, _, err := parser.Parse([]byte(tc.raw), time.UTC); !errors.Is(err, ErrMalformedFeed) {
			t.Fatalf("%s: expected ErrMalformedFeed, got %v", tc.name, err)
		}
	}
}
