// Package app wires the digest runtime: storage, render cache, pipeline,
// event publishers, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/digesthq/feed-digest/internal/api"
	"github.com/digesthq/feed-digest/internal/config"
	"github.com/digesthq/feed-digest/internal/digest"
	"github.com/digesthq/feed-digest/internal/feed"
	"github.com/digesthq/feed-digest/internal/logger"
	"github.com/digesthq/feed-digest/internal/store"
	"github.com/digesthq/feed-digest/pkg/events"
	"github.com/digesthq/feed-digest/pkg/httpclient"
)

const shutdownTimeout = 10 * time.Second

// Server is the digest service runtime.
type Server struct {
	cfg    *config.Config
	log    logger.Logger
	store  *store.Store
	cache  *digest.RenderCache
	fanout *events.Fanout
	srv    *http.Server
}

// NewServer builds the runtime from config.
func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(cfg.DigestDBPath)
	if err != nil {
		return nil, fmt.Errorf("open digest store: %w", err)
	}

	if cfg.DigestSeedFile != "" {
		created, err := st.Seed(cfg.DigestSeedFile, log)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("seed digests: %w", err)
		}
		log.InfoObj("digest seed applied", "seed_meta", map[string]any{
			"file":    cfg.DigestSeedFile,
			"created": created,
		})
	}

	cache, err := digest.OpenRenderCache(cfg.CacheDBPath, cfg.CacheTTL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open render cache: %w", err)
	}
	log.InfoObj("render cache initialized", "cache_config", map[string]any{
		"path":        cfg.CacheDBPath,
		"ttl_seconds": int(cfg.CacheTTL.Seconds()),
		"enabled":     cfg.CacheTTL > 0,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		cache.Close()
		st.Close()
		return nil, err
	}

	defaultLoc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		cache.Close()
		st.Close()
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	fetcher := feed.NewFetcher(httpclient.NewRestyClient(cfg.FetchTimeout))
	aggregator := digest.NewAggregator(fetcher)
	renderer := digest.NewRenderer(cfg.AppName, cfg.BaseURL)
	service := digest.NewService(aggregator, renderer, cache, cfg.AppName, defaultLoc, log)

	router := api.NewRouter(api.RouterConfig{
		Digests: api.NewDigestHandler(st, service, fanout, cfg.BaseURL, log),
		Feeds:   api.NewFeedHandler(st, service, log),
		Token:   cfg.APIToken,
	})

	return &Server{
		cfg:    cfg,
		log:    log,
		store:  st,
		cache:  cache,
		fanout: fanout,
		srv: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: router,
		},
	}, nil
}

// buildFanout constructs event publishers when a publishers file is
// configured. Lifecycle events are optional; no file means no fanout.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*events.Fanout, error) {
	if cfg.PublishersFile == "" {
		return events.NewFanout(nil), nil
	}

	reg, err := events.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := reg.Enabled()
	pubs, err := events.BuildAll(ctx, events.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	return events.NewFanout(pubs), nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return fmt.Errorf("server is not initialized")
	}
	defer s.close()

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.InfoObj("http server shutting down", "reason", ctx.Err().Error())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) close() {
	if err := s.cache.Close(); err != nil {
		s.log.ErrorObj("render cache close failed", "error", err.Error())
	}
	if err := s.store.Close(); err != nil {
		s.log.ErrorObj("digest store close failed", "error", err.Error())
	}
}
