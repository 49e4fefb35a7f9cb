package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/digesthq/feed-digest/internal/domain"
	"github.com/digesthq/feed-digest/internal/logger"
	"github.com/digesthq/feed-digest/internal/store"
	"github.com/digesthq/feed-digest/pkg/events"
)

// Invalidator purges cached renders for a digest.
type Invalidator interface {
	InvalidateCache(uuid string) error
}

// DigestHandler exposes digest CRUD. Lifecycle changes invalidate cached
// renders and fan out to configured event publishers; publisher failures are
// logged and never fail the request.
type DigestHandler struct {
	store   *store.Store
	cache   Invalidator
	fanout  *events.Fanout
	baseURL string
	log     logger.Logger
}

func NewDigestHandler(st *store.Store, cache Invalidator, fanout *events.Fanout, baseURL string, log logger.Logger) *DigestHandler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &DigestHandler{
		store:   st,
		cache:   cache,
		fanout:  fanout,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

type createDigestRequest struct {
	FeedURL          string   `json:"feed_url"`
	Name             string   `json:"name"`
	Timezone         string   `json:"timezone"`
	Filters          []string `json:"filters"`
	OnlyPriorToToday *bool    `json:"only_prior_to_today"`
	MaxDays          int      `json:"max_days"`
}

type updateDigestRequest struct {
	FeedURL          *string   `json:"feed_url"`
	Name             *string   `json:"name"`
	Timezone         *string   `json:"timezone"`
	Filters          *[]string `json:"filters"`
	OnlyPriorToToday *bool     `json:"only_prior_to_today"`
	MaxDays          *int      `json:"max_days"`
}

type digestLinks struct {
	RSS  string `json:"rss"`
	HTML string `json:"html"`
}

type digestResponse struct {
	domain.Digest
	Links digestLinks `json:"links"`
}

func (h *DigestHandler) present(d domain.Digest) digestResponse {
	return digestResponse{
		Digest: d,
		Links: digestLinks{
			RSS:  h.baseURL + "/feed/" + d.UUID,
			HTML: h.baseURL + "/feed/" + d.UUID + "/{date}",
		},
	}
}

func (h *DigestHandler) List(c *gin.Context) {
	digests, err := h.store.List()
	if err != nil {
		h.log.ErrorObj("failed to list digests", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error."})
		return
	}

	out := make([]digestResponse, 0, len(digests))
	for _, d := range digests {
		out = append(out, h.present(d))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *DigestHandler) Get(c *gin.Context) {
	d, err := h.store.Get(c.Param("uuid"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.present(d)})
}

func (h *DigestHandler) Create(c *gin.Context) {
	var req createDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Invalid request body."})
		return
	}

	d, err := h.store.Create(store.CreateParams{
		FeedURL:          req.FeedURL,
		Name:             req.Name,
		Timezone:         req.Timezone,
		Filters:          req.Filters,
		OnlyPriorToToday: req.OnlyPriorToToday,
		MaxDays:          req.MaxDays,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.emit(c, events.ActionCreated, d)
	c.JSON(http.StatusCreated, gin.H{"data": h.present(d)})
}

func (h *DigestHandler) Update(c *gin.Context) {
	var req updateDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Invalid request body."})
		return
	}

	d, err := h.store.Update(c.Param("uuid"), store.UpdateParams{
		FeedURL:          req.FeedURL,
		Name:             req.Name,
		Timezone:         req.Timezone,
		Filters:          req.Filters,
		OnlyPriorToToday: req.OnlyPriorToToday,
		MaxDays:          req.MaxDays,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.invalidate(d.UUID)
	h.emit(c, events.ActionUpdated, d)
	c.JSON(http.StatusOK, gin.H{"data": h.present(d)})
}

func (h *DigestHandler) Delete(c *gin.Context) {
	id := c.Param("uuid")

	d, err := h.store.Get(id)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if err := h.store.Delete(id); err != nil {
		h.renderError(c, err)
		return
	}

	h.invalidate(id)
	h.emit(c, events.ActionDeleted, d)
	c.Status(http.StatusNoContent)
}

func (h *DigestHandler) invalidate(uuid string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateCache(uuid); err != nil {
		h.log.WarnObj("failed to invalidate render cache", "error", err.Error())
	}
}

func (h *DigestHandler) emit(c *gin.Context, action string, d domain.Digest) {
	if h.fanout == nil || h.fanout.Size() == 0 {
		return
	}
	if _, err := h.fanout.Publish(c.Request.Context(), events.NewEvent(action, d)); err != nil {
		h.log.WarnObj("event fanout reported failures", "error", err.Error())
	}
}

func (h *DigestHandler) renderError(c *gin.Context, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": verr.Message})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Digest not found."})
	default:
		h.log.ErrorObj("digest request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error."})
	}
}
