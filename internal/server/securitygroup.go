package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	securitygroupdomain "github.com/easybilling/easybilling/internal/securitygroup/domain"
)

func (s *Server) CreateSecurityGroup(c *gin.Context) {
	var req securitygroupdomain.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.securityGroupSvc.CreateGroup(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSecurityGroups(c *gin.Context) {
	resp, err := s.securityGroupSvc.ListGroups(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updatePermissionsRequest struct {
	Permissions []securitygroupdomain.Permission `json:"permissions"`
}

func (s *Server) UpdateSecurityGroupPermissions(c *gin.Context) {
	var req updatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.securityGroupSvc.UpdateGroupPermissions(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Permissions)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteSecurityGroup(c *gin.Context) {
	if err := s.securityGroupSvc.DeleteGroup(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type assignUserRequest struct {
	UserID snowflake.ID `json:"user_id"`
}

func (s *Server) AssignUserToGroup(c *gin.Context) {
	var req assignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.securityGroupSvc.AssignUser(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

func (s *Server) UnassignUserFromGroup(c *gin.Context) {
	userID, err := snowflake.ParseString(strings.TrimSpace(c.Param("userId")))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user", "invalid user id"))
		return
	}

	if err := s.securityGroupSvc.UnassignUser(c.Request.Context(), strings.TrimSpace(c.Param("id")), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unassigned"})
}

func (s *Server) ListUserSecurityGroups(c *gin.Context) {
	userID, err := snowflake.ParseString(strings.TrimSpace(c.Param("userId")))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user", "invalid user id"))
		return
	}

	resp, err := s.securityGroupSvc.ListUserGroups(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
