package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/digesthq/feed-digest/internal/domain"
	"github.com/digesthq/feed-digest/internal/logger"
	"github.com/digesthq/feed-digest/internal/store"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const maxNameOverrideLength = 150

// FeedRenderer runs the digest pipeline and returns payload + content type.
type FeedRenderer interface {
	RenderRSS(ctx context.Context, d domain.Digest, nameOverride string) ([]byte, string, error)
	RenderHTML(ctx context.Context, d domain.Digest, date, nameOverride string) ([]byte, string, error)
}

// FeedHandler serves the rendered digest output. Pipeline failures surface as
// 422 with the reason so feed readers show a diagnosable error instead of a
// silently empty feed.
type FeedHandler struct {
	store   *store.Store
	service FeedRenderer
	log     logger.Logger
}

func NewFeedHandler(st *store.Store, service FeedRenderer, log logger.Logger) *FeedHandler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &FeedHandler{store: st, service: service, log: log}
}

// GetRSS serves the digest's RSS document, one item per day.
func (h *FeedHandler) GetRSS(c *gin.Context) {
	d, ok := h.lookup(c)
	if !ok {
		return
	}

	nameOverride, ok := h.nameOverride(c)
	if !ok {
		return
	}

	output, contentType, err := h.service.RenderRSS(c.Request.Context(), d, nameOverride)
	if err != nil {
		h.renderPipelineError(c, d.UUID, err)
		return
	}
	c.Data(http.StatusOK, contentType, output)
}

// GetHTML serves the standalone HTML digest for one date.
func (h *FeedHandler) GetHTML(c *gin.Context) {
	date := c.Param("date")
	if !datePattern.MatchString(date) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found."})
		return
	}

	d, ok := h.lookup(c)
	if !ok {
		return
	}

	nameOverride, ok := h.nameOverride(c)
	if !ok {
		return
	}

	output, contentType, err := h.service.RenderHTML(c.Request.Context(), d, date, nameOverride)
	if err != nil {
		h.renderPipelineError(c, d.UUID, err)
		return
	}
	c.Data(http.StatusOK, contentType, output)
}

func (h *FeedHandler) lookup(c *gin.Context) (domain.Digest, bool) {
	d, err := h.store.Get(c.Param("uuid"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Digest not found."})
		} else {
			h.log.ErrorObj("digest lookup failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error."})
		}
		return domain.Digest{}, false
	}
	return d, true
}

func (h *FeedHandler) nameOverride(c *gin.Context) (string, bool) {
	name := c.Query("name")
	if len(name) > maxNameOverrideLength {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "The name may not be greater than 150 characters."})
		return "", false
	}
	return name, true
}

func (h *FeedHandler) renderPipelineError(c *gin.Context, uuid string, err error) {
	h.log.WarnObj("digest render failed", "render_error", map[string]any{
		"digest_uuid": uuid,
		"error":       err.Error(),
	})
	c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
}
