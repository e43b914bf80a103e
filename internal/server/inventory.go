package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetStockLevel(c *gin.Context) {
	productID, err := snowflake.ParseString(strings.TrimSpace(c.Query("product_id")))
	if err != nil {
		AbortWithError(c, newValidationError("product_id", "invalid_product_id", "invalid product id"))
		return
	}
	locationID, err := snowflake.ParseString(strings.TrimSpace(c.Query("location_id")))
	if err != nil {
		AbortWithError(c, newValidationError("location_id", "invalid_location_id", "invalid location id"))
		return
	}

	level, err := s.inventorySvc.GetLevel(c.Request.Context(), productID, locationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": level})
}

func (s *Server) ListStockMovements(c *gin.Context) {
	productID, err := snowflake.ParseString(strings.TrimSpace(c.Query("product_id")))
	if err != nil {
		AbortWithError(c, newValidationError("product_id", "invalid_product_id", "invalid product id"))
		return
	}

	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	movements, err := s.inventorySvc.ListMovements(c.Request.Context(), productID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": movements})
}

type adjustStockRequest struct {
	ProductID  snowflake.ID `json:"product_id"`
	LocationID snowflake.ID `json:"location_id"`
	Delta      int64        `json:"delta"`
	Reference  string       `json:"reference"`
}

func (s *Server) AdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.inventorySvc.Adjust(c.Request.Context(), req.ProductID, req.LocationID, req.Delta, req.Reference); err != nil {
		AbortWithError(c, err)
		return
	}

	level, err := s.inventorySvc.GetLevel(c.Request.Context(), req.ProductID, req.LocationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": level})
}
