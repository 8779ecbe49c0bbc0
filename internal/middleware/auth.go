package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smartclinic/api/internal/models"
	"smartclinic/api/internal/service"
	"smartclinic/api/internal/session"
)

const (
	// IdentityKey is where a validated identity lands in the gin context.
	IdentityKey = "identity"

	// SessionCookie carries the opaque session id for browser flows.
	SessionCookie = "sid"
)

type ctxKey struct{}

// IdentityFrom extracts the request identity set by Authenticate, if any.
func IdentityFrom(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return service.Identity{}, false
	}
	id, ok := v.(service.Identity)
	return id, ok
}

// IdentityFromContext is the plain-context variant for code below the
// transport layer.
func IdentityFromContext(ctx context.Context) (service.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(service.Identity)
	return id, ok
}

// openPath reports whether the interceptor skips the request entirely:
// root and static assets, health checks, and every login action.
func openPath(path string) bool {
	if path == "/" || path == "/index.html" {
		return true
	}
	for _, prefix := range []string{"/static/", "/assets/", "/css/", "/js/", "/images/", "/api/healthz"} {
		if strings.HasPrefix(path, prefix) || path == strings.TrimSuffix(prefix, "/") {
			return true
		}
	}
	return strings.HasSuffix(path, "/login")
}

// roleFromPath maps the first path segment onto the claimed role for
// header-token requests: /admin/..., /doctor/..., /patient/...
func roleFromPath(path string) (models.Role, bool) {
	trimmed := strings.TrimPrefix(path, "/")
	segment, _, _ := strings.Cut(trimmed, "/")
	return models.ParseRole(segment)
}

// Authenticate runs on every request outside the allow-list. It resolves a
// credential from either the Authorization header (role claimed by path
// prefix) or an established session handle, validates it through the gateway,
// and attaches the identity for downstream handlers. It never terminates the
// pipeline itself; role-gated routes reject via RequireRoles.
func Authenticate(auth *service.AuthService, sessions session.Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if openPath(path) {
			c.Next()
			return
		}

		var (
			token string
			role  models.Role
			found bool
		)

		if header := c.GetHeader("Authorization"); header != "" {
			token = header
			role, found = roleFromPath(path)
		} else if sid, err := c.Cookie(SessionCookie); err == nil && sid != "" {
			if handle, err := sessions.Get(c.Request.Context(), sid); err == nil {
				token = handle.Token
				role = handle.Role
				found = true
			}
		}

		if !found || token == "" {
			c.Next()
			return
		}

		identity, err := auth.Authorize(c.Request.Context(), token, role)
		if err != nil {
			log.Debug().
				Err(err).
				Str("path", path).
				Str("claimed_role", string(role)).
				Msg("credential rejected")
			c.Next()
			return
		}

		c.Set(IdentityKey, identity)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), ctxKey{}, identity))
		c.Next()
	}
}
