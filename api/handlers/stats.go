package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentmemory/memsearch/logger"
	"github.com/agentmemory/memsearch/services/index"
)

func SetupStats(router *gin.Engine, logger logger.Logger, service *index.Service) {
	router.GET("/stats", handleStats(service, logger))

}

func handleStats(service *index.Service, _ logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, service.Stats(), http.StatusOK, nil)
	}
}
