package digest

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/digesthq/feed-digest/internal/domain"
)

const (
	summaryImageStyle = "max-width: 25rem; width: 100%; height: auto; border-radius: 4px; border: 1px solid #1f2937;"
	summaryLinkStyle  = "color: #9ca3af; text-decoration: underline;"
)

// Renderer serializes grouped entries to RSS XML or HTML. Pure string
// building; the only injected dependency is the clock.
type Renderer struct {
	appName string
	baseURL string
	now     func() time.Time
}

func NewRenderer(appName, baseURL string) *Renderer {
	return &Renderer{
		appName: appName,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// RenderRSS builds the digest RSS document: one item per date, each carrying
// the date's HTML digest in a CDATA description, a synthetic uuid:date guid,
// and the union of that date's entry categories.
func (r *Renderer) RenderRSS(d domain.Digest, feedTitle, nameOverride string, groups []DateGroup, loc *time.Location) string {
	baseTitle := feedTitle
	if baseTitle == "" {
		baseTitle = r.appName
	}

	lastBuild := r.now().In(loc).Format(time.RFC1123Z)
	pubDate := lastBuild
	if latest := latestEntryTime(groups); latest != nil {
		pubDate = latest.In(loc).Format(time.RFC1123Z)
	}

	items := make([]string, 0, len(groups))
	for _, group := range groups {
		midnight, err := time.ParseInLocation(dateLayout, group.Date, loc)
		if err != nil {
			continue
		}

		items = append(items, fmt.Sprintf(
			`<item><title>%s</title><link>%s</link><guid isPermaLink="false">%s</guid><pubDate>%s</pubDate>%s<description><![CDATA[%s]]></description></item>`,
			escapeXML(fmt.Sprintf("%s | %s", baseTitle, group.Date)),
			escapeXML(r.dateLink(d.UUID, group.Date, nameOverride)),
			escapeXML(fmt.Sprintf("%s:%s", d.UUID, group.Date)),
			midnight.Format(time.RFC1123Z),
			categoriesXML(group),
			r.renderGroupsHTML(group.Categories),
		))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
    <channel>
        <title>%s</title>
        <link>%s</link>
        <description>%s</description>
        <pubDate>%s</pubDate>
        <lastBuildDate>%s</lastBuildDate>
        %s
    </channel>
</rss>`,
		escapeXML(baseTitle+" | Daily Digest"),
		escapeXML(r.feedLink(d.UUID, nameOverride)),
		escapeXML("Daily feed digest"),
		pubDate,
		lastBuild,
		strings.Join(items, "\n        "),
	)
}

// RenderHTMLPage wraps the digest fragment for one date in a standalone page.
func (r *Renderer) RenderHTMLPage(title string, groups []CategoryGroup) string {
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
    <head>
        <meta charset="utf-8">
        <meta name="viewport" content="width=device-width, initial-scale=1">
        <title>%s</title>
    </head>
    <body style="margin: 0; background: #0b0f14; color: #d1d5db;">
        %s
    </body>
</html>`, escapeHTML(title), r.renderGroupsHTML(groups))
}

// renderGroupsHTML builds the digest fragment for one date's category groups.
// Titles, links, and categories are escaped; summaries are feed-supplied HTML
// and pass through with inline styles injected instead.
func (r *Renderer) renderGroupsHTML(groups []CategoryGroup) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, Liberation Mono, Courier New, monospace; font-size: 14px; line-height: 1.6; background: #0b0f14; color: #d1d5db; padding: 20px; border-radius: 8px;">`)

	if len(groups) == 0 {
		b.WriteString(`<p style="margin: 0;">No entries for this date.</p></div>`)
		return b.String()
	}

	for _, group := range groups {
		b.WriteString(`<h2 style="font-size: 15px; margin: 18px 0 8px; color: #7dd3fc; text-transform: uppercase; letter-spacing: 0.08em;">`)
		b.WriteString(escapeHTML(group.Category))
		b.WriteString(`</h2><ul style="list-style: none; padding-left: 0; margin: 0 0 18px;">`)

		for _, entry := range group.Entries {
			b.WriteString(`<li style="margin-bottom: 16px; padding: 12px 14px; border: 1px solid #1f2937; border-radius: 6px; background: #0f1720;">`)
			b.WriteString(`<div><span style="color: #60a5fa; margin-right: 8px;">🔗</span><a href="`)
			b.WriteString(escapeHTML(entry.Link))
			b.WriteString(`" style="color: #a5b4fc; text-decoration: none; font-weight: 600;">`)
			b.WriteString(escapeHTML(entry.Title))
			b.WriteString(`</a></div>`)

			if entry.Image != "" {
				b.WriteString(`<div style="margin: 10px 0;"><img src="`)
				b.WriteString(escapeHTML(entry.Image))
				b.WriteString(`" alt="" style="` + summaryImageStyle + `" /></div>`)
			}

			if entry.Summary != "" {
				b.WriteString(`<div style="margin: 8px 0; color: #e5e7eb;">`)
				b.WriteString(styleSummaryHTML(entry.Summary))
				b.WriteString(`</div>`)
			}

			if meta := entryMeta(entry); len(meta) > 0 {
				b.WriteString(`<div style="color: #94a3b8; font-size: 12px;">`)
				b.WriteString(strings.Join(meta, " · "))
				b.WriteString(`</div>`)
			}

			b.WriteString(`</li>`)
		}

		b.WriteString(`</ul>`)
	}

	b.WriteString(`</div>`)
	return b.String()
}

func entryMeta(entry domain.Entry) []string {
	var meta []string
	if entry.PublishedAt != nil {
		meta = append(meta, escapeHTML(entry.PublishedAt.Format(time.RFC3339)))
	}
	if author := strings.TrimSpace(entry.Author); author != "" {
		meta = append(meta, "by "+escapeHTML(author))
	}
	if len(entry.Categories) > 0 {
		escaped := make([]string, len(entry.Categories))
		for i, c := range entry.Categories {
			escaped[i] = escapeHTML(c)
		}
		meta = append(meta, "categories: "+strings.Join(escaped, ", "))
	}
	return meta
}

// styleSummaryHTML injects the digest's inline styles into img and a tags of
// a feed-supplied HTML fragment, appending to any existing style attribute.
func styleSummaryHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	inject := func(selector, style string) {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			existing := strings.TrimSpace(sel.AttrOr("style", ""))
			if existing == "" {
				sel.SetAttr("style", style)
				return
			}
			sel.SetAttr("style", strings.TrimRight(existing, "; ")+"; "+style)
		})
	}
	inject("img", summaryImageStyle)
	inject("a", summaryLinkStyle)

	styled, err := doc.Find("body").Html()
	if err != nil {
		return fragment
	}
	return styled
}

// categoriesXML emits the deduplicated union of a date's entry categories in
// first-seen order.
func categoriesXML(group DateGroup) string {
	var b strings.Builder
	seen := make(map[string]struct{})
	for _, cat := range group.Categories {
		for _, entry := range cat.Entries {
			for _, value := range entry.Categories {
				if _, dup := seen[value]; dup {
					continue
				}
				seen[value] = struct{}{}
				b.WriteString("<category>")
				b.WriteString(escapeXML(value))
				b.WriteString("</category>")
			}
		}
	}
	return b.String()
}

func latestEntryTime(groups []DateGroup) *time.Time {
	var latest *time.Time
	for _, dg := range groups {
		for _, cg := range dg.Categories {
			for _, entry := range cg.Entries {
				if entry.PublishedAt == nil {
					continue
				}
				if latest == nil || entry.PublishedAt.After(*latest) {
					latest = entry.PublishedAt
				}
			}
		}
	}
	return latest
}

func (r *Renderer) feedLink(uuid, nameOverride string) string {
	return r.baseURL + "/feed/" + uuid + nameQuery(nameOverride)
}

func (r *Renderer) dateLink(uuid, date, nameOverride string) string {
	return r.baseURL + "/feed/" + uuid + "/" + date + nameQuery(nameOverride)
}

func nameQuery(nameOverride string) string {
	if nameOverride == "" {
		return ""
	}
	q := url.Values{"name": []string{nameOverride}}
	return "?" + q.Encode()
}

func escapeHTML(value string) string { return html.EscapeString(value) }

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(value string) string { return xmlReplacer.Replace(value) }
