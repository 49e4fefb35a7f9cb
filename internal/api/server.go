// Package api exposes the HTTP surface: digest CRUD under /api and the
// token-protected rendered feeds under /feed.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterConfig collects the handlers and auth settings for route wiring.
type RouterConfig struct {
	Digests *DigestHandler
	Feeds   *FeedHandler
	Token   string
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := RequireToken(cfg.Token)

	feed := router.Group("/feed", auth)
	{
		feed.GET("/:uuid", cfg.Feeds.GetRSS)
		feed.GET("/:uuid/:date", cfg.Feeds.GetHTML)
	}

	apiGroup := router.Group("/api", auth)
	{
		apiGroup.GET("/digests", cfg.Digests.List)
		apiGroup.POST("/digests", cfg.Digests.Create)
		apiGroup.GET("/digests/:uuid", cfg.Digests.Get)
		apiGroup.PUT("/digests/:uuid", cfg.Digests.Update)
		apiGroup.PATCH("/digests/:uuid", cfg.Digests.Update)
		apiGroup.DELETE("/digests/:uuid", cfg.Digests.Delete)
	}

	return router
}
