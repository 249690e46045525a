package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentmemory/memsearch/logger"
	"github.com/agentmemory/memsearch/services/search"
	"github.com/agentmemory/memsearch/validation"
)

const defaultResultLimit = 10

type SearchRequest struct {
	Query string `form:"query" validate:"required,valid_query,min=1,max=1000"`
	Limit int    `form:"limit" validate:"min=0,max=100"`
}

func (r *SearchRequest) setDefaults() {
	if r.Limit == 0 {
		r.Limit = defaultResultLimit
	}
}

type SearchResponse struct {
	Results []search.Result `json:"results"`
	Total   int             `json:"total"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator) {
	router.GET("/search", handleSearch(service, logger, validator))

}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		results, err := service.Search(c.Request.Context(), request.Query, request.Limit)
		if err != nil {
			logger.Error("search failed", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		searchResponse := SearchResponse{
			Results: results,
			Total:   len(results),
		}

		writeResponse(c, searchResponse, http.StatusOK, nil)
	}
}
