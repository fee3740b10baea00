package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pkang0831/fromFatToFit/config"
	"github.com/pkang0831/fromFatToFit/internal/domain"
	"github.com/pkang0831/fromFatToFit/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search *usecase.SearchService
	detail *usecase.DetailService
	cfg    *config.Config
}

// NewHandler creates a new HTTP handler
func NewHandler(search *usecase.SearchService, detail *usecase.DetailService, cfg *config.Config) *Handler {
	return &Handler{
		search: search,
		detail: detail,
		cfg:    cfg,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "fromfattofit-backend",
		"version": "1.0.0",
	})
}

// SearchFoods handles GET /api/v1/foods/search?query=...&limit=...
func (h *Handler) SearchFoods(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if len(query) < h.cfg.Search.MinQueryLength {
		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"results": []domain.SearchResult{},
		})
		return
	}

	limit := h.cfg.Search.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}
	limit = clamp(limit, 1, h.cfg.Search.MaxLimit)

	includeMicros := c.Query("micronutrients") == "true"

	results, err := h.search.Search(c.Request.Context(), query, limit, includeMicros)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// GetFoodDetail handles GET /api/v1/foods/:id
func (h *Handler) GetFoodDetail(c *gin.Context) {
	fdcID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "food id must be an integer"})
		return
	}

	includeMicros := c.Query("micronutrients") != "false"

	detail, err := h.detail.GetDetail(c.Request.Context(), fdcID, includeMicros)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "food not found"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// writeServiceError maps service errors onto HTTP statuses. A missing
// dataset is a temporary condition (the medallion build has not produced an
// artifact yet), so it maps to 503 rather than 500.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrDatasetUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "food dataset is not loaded yet, try again later",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
