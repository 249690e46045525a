package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentmemory/memsearch/db/kvdb"
	"github.com/agentmemory/memsearch/logger"
	"github.com/agentmemory/memsearch/services/index"
)

type IndexResponse struct {
	RequestID string `json:"request_id"`
}

type IndexStatusResponse struct {
	RequestID string `json:"request_id"`
	Status    int    `json:"status"`
}

func SetupIndex(router *gin.Engine, logger logger.Logger, service *index.Service) {
	router.POST("/index", handleIndex(service, logger))
	router.GET("/index/:request_id", handleIndexStatus(service, logger))

}

func handleIndex(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()

		if err := service.Build(requestID); err != nil {
			logger.Warn("could not queue index update", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusConflict, []string{err.Error()})
			return
		}

		writeResponse(c, IndexResponse{RequestID: requestID}, http.StatusAccepted, nil)
	}
}

func handleIndexStatus(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("request_id")

		status, err := service.Status(requestID)
		if err != nil {
			if errors.Is(err, kvdb.ErrNotFound) {
				c.Abort()
				writeResponse(c, nil, http.StatusNotFound, []string{"request not found"})
				return
			}
			logger.Error("could not read index update status", "request_id", requestID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, IndexStatusResponse{RequestID: requestID, Status: status}, http.StatusOK, nil)
	}
}
