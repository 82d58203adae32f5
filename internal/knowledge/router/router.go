// Package router wires knowledge HTTP routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finsight-io/finsight/internal/knowledge/handler"
	"github.com/finsight-io/finsight/internal/knowledge/metrics"
)

// Register mounts the knowledge API routes plus health and metrics
// endpoints on the engine.
func Register(engine *gin.Engine, h *handler.KnowledgeHandler) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, metrics.GetKnowledgeMetrics().Export("finsight", "knowledge"))
	})

	v1 := engine.Group("/v1/knowledge")
	{
		v1.POST("/documents/upload", h.UploadDocument)
		v1.GET("/jobs/:id", h.GetJob)
		v1.POST("/search", h.Search)
		v1.POST("/analysis/enhanced", h.EnhancedAnalysis)
		v1.GET("/frameworks/:instrumentType", h.Frameworks)
		v1.GET("/stats", h.Stats)
	}
}
