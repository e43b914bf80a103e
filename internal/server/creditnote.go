package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	creditnotedomain "github.com/easybilling/easybilling/internal/creditnote/domain"
)

func (s *Server) CreateCreditNote(c *gin.Context) {
	var req creditnotedomain.CreateCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.creditNoteSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCreditNotes(c *gin.Context) {
	status := creditnotedomain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	resp, err := s.creditNoteSvc.List(c.Request.Context(), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCreditNoteByID(c *gin.Context) {
	resp, err := s.creditNoteSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitCreditNote(c *gin.Context) {
	resp, err := s.creditNoteSvc.Submit(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveCreditNote(c *gin.Context) {
	resp, err := s.creditNoteSvc.Approve(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IssueCreditNote(c *gin.Context) {
	resp, err := s.creditNoteSvc.Issue(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type applyCreditNoteRequest struct {
	Method string `json:"method"`
}

func (s *Server) ApplyCreditNote(c *gin.Context) {
	var req applyCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	method := creditnotedomain.ApplicationMethod(strings.ToUpper(strings.TrimSpace(req.Method)))
	resp, err := s.creditNoteSvc.Apply(c.Request.Context(), strings.TrimSpace(c.Param("id")), method)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelCreditNote(c *gin.Context) {
	resp, err := s.creditNoteSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
