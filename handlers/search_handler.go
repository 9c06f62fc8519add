package handlers

import (
	"context"
	"errors"
	"net/http"

	"casecite-backend/models"
	"casecite-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Searcher runs searches and serves archived traces
type Searcher interface {
	Search(ctx context.Context, req models.CaseSearchRequest) (*models.SearchResponse, error)
	Trace(ctx context.Context, id string) (*models.SearchResponse, error)
}

// SearchHandler handles HTTP requests for citation search
type SearchHandler struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher Searcher, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{searcher: searcher, logger: logger}
}

// Search handles POST /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req models.CaseSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	resp, err := h.searcher.Search(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			respondError(c, http.StatusBadRequest, "EMPTY_QUERY", err.Error())
		case errors.Is(err, service.ErrQueryTooLong):
			respondError(c, http.StatusBadRequest, "QUERY_TOO_LONG", err.Error())
		case errors.Is(err, service.ErrRetrievalUnavailable):
			respondError(c, http.StatusServiceUnavailable, "RETRIEVAL_UNAVAILABLE", err.Error())
		default:
			h.logger.Error("Search failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "SEARCH_FAILED", "Search failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

// GetTrace handles GET /api/traces/:id
func (h *SearchHandler) GetTrace(c *gin.Context) {
	resp, err := h.searcher.Trace(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTraceID):
			respondError(c, http.StatusBadRequest, "INVALID_TRACE_ID", "Invalid trace id format")
		case errors.Is(err, service.ErrTraceNotFound):
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Trace not found")
		case errors.Is(err, service.ErrTracesDisabled):
			respondError(c, http.StatusNotFound, "TRACES_DISABLED", err.Error())
		default:
			h.logger.Error("Failed to load trace", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to load trace")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
