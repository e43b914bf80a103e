package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	gstdomain "github.com/easybilling/easybilling/internal/gst/domain"
)

func (s *Server) CreateGstRate(c *gin.Context) {
	var req gstdomain.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gstSvc.CreateRate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListGstRates(c *gin.Context) {
	resp, err := s.gstSvc.ListRates(c.Request.Context(), gstdomain.ListRatesRequest{
		Code:     strings.TrimSpace(c.Query("code")),
		Category: strings.TrimSpace(c.Query("category")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteGstRate(c *gin.Context) {
	if err := s.gstSvc.DeleteRate(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type calculateGstRequest struct {
	Code          string          `json:"code"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	SupplierState string          `json:"supplier_state"`
	CustomerState string          `json:"customer_state"`
	Interstate    bool            `json:"interstate"`
}

func (s *Server) CalculateGst(c *gin.Context) {
	var req calculateGstRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var (
		breakup gstdomain.TaxBreakup
		err     error
	)
	if strings.TrimSpace(req.Code) != "" {
		breakup, err = s.gstSvc.Calculate(c.Request.Context(), req.Code, req.Amount, req.SupplierState, req.CustomerState)
	} else {
		breakup, err = s.gstSvc.CalculateForCategory(c.Request.Context(), req.Category, req.Amount, req.Interstate)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": breakup})
}
