package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartclinic/api/internal/middleware"
	"smartclinic/api/internal/models"
	"smartclinic/api/internal/service"
	"smartclinic/api/internal/session"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string               `json:"token"`
	User  models.PrincipalView `json:"user"`
}

// Login authenticates against one role's collection. The username field
// accepts either username or email. On success it returns the bearer token
// and also establishes a session handle for browser flows carrying the same
// token.
func (h HandlerSet) Login(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		result, err := h.auth.Login(c.Request.Context(), role, req.Username, req.Password)
		if err != nil {
			h.writeError(c, err)
			return
		}

		h.establishSession(c, role, result)

		c.JSON(http.StatusOK, loginResponse{
			Token: result.Token,
			User:  result.Principal.PublicView(),
		})
	}
}

type registerPatientRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h HandlerSet) RegisterPatient(c *gin.Context) {
	var req registerPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auth.RegisterPatient(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.establishSession(c, models.RolePatient, result)

	c.JSON(http.StatusCreated, loginResponse{
		Token: result.Token,
		User:  result.Principal.PublicView(),
	})
}

// Logout destroys the session handle, if the request carries one. Bearer
// tokens are stateless and simply age out.
func (h HandlerSet) Logout(c *gin.Context) {
	if sid, err := c.Cookie(middleware.SessionCookie); err == nil && sid != "" {
		if err := h.sessions.Delete(c.Request.Context(), sid); err != nil {
			h.log.Warn().Err(err).Msg("session delete failed")
		}
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) establishSession(c *gin.Context, role models.Role, result service.LoginResult) {
	handle := session.Handle{
		Token:       result.Token,
		Role:        role,
		PrincipalID: result.Principal.ID,
		DisplayName: result.Principal.Username,
	}
	sid, err := h.sessions.Create(c.Request.Context(), handle)
	if err != nil {
		h.log.Warn().Err(err).Msg("session create failed")
		return
	}
	maxAge := int(h.cfg.Security.SessionTTL.Seconds())
	c.SetCookie(middleware.SessionCookie, sid, maxAge, "/", "", false, true)
}
