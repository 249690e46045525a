package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentmemory/memsearch/api/handlers"
	"github.com/agentmemory/memsearch/logger"
	"github.com/agentmemory/memsearch/metrics"
	indexservice "github.com/agentmemory/memsearch/services/index"
	searchservice "github.com/agentmemory/memsearch/services/search"
	"github.com/agentmemory/memsearch/validation"
)

func setupRoutes(router *gin.Engine, logger logger.Logger, indexService *indexservice.Service, searchService *searchservice.Service, validator *validation.Validator, m *metrics.Metrics) {
	router.GET("/health", health())
	router.GET("/metrics", gin.WrapH(m.Handler()))

	handlers.SetupSearch(router, logger, searchService, validator)
	handlers.SetupIndex(router, logger, indexService)
	handlers.SetupStats(router, logger, indexService)
}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter(m *metrics.Metrics) *gin.Engine {
	router := gin.Default()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware(m))

	return router
}
