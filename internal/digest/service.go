package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/digesthq/feed-digest/internal/domain"
	"github.com/digesthq/feed-digest/internal/logger"
)

const (
	ContentTypeRSS  = "application/rss+xml; charset=UTF-8"
	ContentTypeHTML = "text/html; charset=UTF-8"
)

// Service runs the full digest pipeline behind the render cache. Cache
// failures are logged and never fail a render; only empty output skips the
// cache write so transient upstream hiccups are not pinned for a full TTL.
type Service struct {
	agg        *Aggregator
	renderer   *Renderer
	cache      *RenderCache
	appName    string
	defaultLoc *time.Location
	log        logger.Logger
}

func NewService(agg *Aggregator, renderer *Renderer, cache *RenderCache, appName string, defaultLoc *time.Location, log logger.Logger) *Service {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		agg:        agg,
		renderer:   renderer,
		cache:      cache,
		appName:    appName,
		defaultLoc: defaultLoc,
		log:        log,
	}
}

// RenderRSS returns the digest's RSS document and its content type, serving
// from cache when a fresh render exists.
func (s *Service) RenderRSS(ctx context.Context, d domain.Digest, nameOverride string) ([]byte, string, error) {
	key := RSSCacheKey(d.UUID, d.FreshnessToken(), nameOverride)
	if cached, ok := s.cache.Get(key); ok {
		s.log.DebugObj("serving cached render", "key", key)
		return cached, ContentTypeRSS, nil
	}

	loc := s.location(d.Timezone)
	feedTitle, groups, err := s.agg.ByDate(ctx, d.FeedURL, loc, d.Filters, d.OnlyPriorToToday, d.MaxDays)
	if err != nil {
		return nil, "", err
	}

	output := []byte(s.renderer.RenderRSS(d, s.resolveTitle(nameOverride, d.Name, feedTitle), nameOverride, groups, loc))
	if len(groups) > 0 {
		s.put(key, output)
	}
	return output, ContentTypeRSS, nil
}

// RenderHTML returns the standalone HTML page for one date of the digest.
func (s *Service) RenderHTML(ctx context.Context, d domain.Digest, date, nameOverride string) ([]byte, string, error) {
	key := HTMLCacheKey(d.UUID, date, d.FreshnessToken(), nameOverride)
	if cached, ok := s.cache.Get(key); ok {
		s.log.DebugObj("serving cached render", "key", key)
		return cached, ContentTypeHTML, nil
	}

	loc := s.location(d.Timezone)
	feedTitle, groups, err := s.agg.ForDate(ctx, d.FeedURL, date, loc, d.Filters, d.OnlyPriorToToday)
	if err != nil {
		return nil, "", err
	}

	baseTitle := s.resolveTitle(nameOverride, d.Name, feedTitle)
	if baseTitle == "" {
		baseTitle = s.appName
	}

	output := []byte(s.renderer.RenderHTMLPage(fmt.Sprintf("%s | %s", baseTitle, date), groups))
	if len(groups) > 0 {
		s.put(key, output)
	}
	return output, ContentTypeHTML, nil
}

// InvalidateCache purges all cached renders for a digest.
func (s *Service) InvalidateCache(uuid string) error {
	return s.cache.Invalidate(uuid)
}

func (s *Service) put(key string, output []byte) {
	if err := s.cache.Put(key, output); err != nil {
		s.log.WarnObj("failed to cache render", "error", err.Error())
	}
}

// resolveTitle picks the digest title: request override, then the stored
// digest name, then the upstream feed's own title.
func (s *Service) resolveTitle(nameOverride, digestName, feedTitle string) string {
	if nameOverride != "" {
		return nameOverride
	}
	if digestName != "" {
		return digestName
	}
	return feedTitle
}

func (s *Service) location(timezone string) *time.Location {
	if timezone == "" {
		return s.defaultLoc
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		s.log.WarnObj("invalid digest timezone, using default", "timezone", timezone)
		return s.defaultLoc
	}
	return loc
}
