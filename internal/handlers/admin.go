package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartclinic/api/internal/middleware"
	"smartclinic/api/internal/models"
)

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetUserActive soft-deletes or restores a principal of any role. Accounts
// are never physically removed.
func (h HandlerSet) SetUserActive(c *gin.Context) {
	role, ok := models.ParseRole(c.Param("role"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	id, okID := pathID(c)
	if !okID {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active flag is required"})
		return
	}

	if err := h.auth.SetActive(c.Request.Context(), role, id, *req.Active); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account updated"})
}

type adminRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateAdminRole changes an admin's sub-role. Only super_admins may call it.
func (h HandlerSet) UpdateAdminRole(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	caller, err := h.auth.GetPrincipal(c.Request.Context(), models.RoleAdmin, identity.PrincipalID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if caller.AdminRole != models.AdminRoleSuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "access_denied"})
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	var req adminRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}

	if err := h.auth.PromoteAdmin(c.Request.Context(), id, models.AdminRole(req.Role)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "admin role updated"})
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	UserType  string    `json:"userType"`
	UserID    int64     `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h HandlerSet) AuditLogs(c *gin.Context) {
	var from, to time.Time
	if v := c.Query("dateFrom"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			from = t
		}
	}
	if v := c.Query("dateTo"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			to = t.Add(24 * time.Hour)
		}
	}

	entries, err := h.auditLogs.List(c.Request.Context(), c.Query("userType"), c.Query("action"), from, to, 200)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]auditLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditLogResponse{
			ID:        e.ID,
			UserType:  e.UserType,
			UserID:    e.UserID,
			Action:    e.Action,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}
