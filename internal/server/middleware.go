package server

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rfacto/internal/actorcontext"
	authdomain "github.com/smallbiznis/rfacto/internal/auth/domain"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/config"
	obscontext "github.com/smallbiznis/rfacto/internal/observability/context"
)

const contextIdentityKey = "identity"

// publicPaths answer without a bearer token. A token, when sent, is still
// verified so that /api/health can echo the caller.
var publicPaths = []string{"/api/ping", "/api/health"}

func isPublicPath(path string) bool {
	return slices.Contains(publicPaths, path)
}

// RequestMeta records the client address and user agent for the activity log.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := actorcontext.WithRequestMeta(c.Request.Context(), actorcontext.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CORS answers preflight requests for the origins allowed by the runtime
// config. The list is read on every request so reloads apply immediately.
func CORS(runtime *config.RuntimeConfigHolder) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && runtime != nil && originAllowed(runtime.Get().AllowedOrigins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			c.Header("Access-Control-Expose-Headers", "X-Request-Id, Content-Disposition")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Authenticate resolves the bearer token into the caller identity. Public
// paths without a token pass through anonymously.
func (s *Server) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		public := isPublicPath(c.Request.URL.Path)
		if public && header == "" && !s.authSvc.DevMode() {
			c.Next()
			return
		}

		identity, err := s.authSvc.Authenticate(c.Request.Context(), header)
		if err != nil {
			if public {
				c.Next()
				return
			}
			AbortWithError(c, err)
			return
		}

		source := "token"
		if s.authSvc.DevMode() {
			source = "dev"
		}
		ctx := actorcontext.WithIdentity(c.Request.Context(), actorcontext.Identity{
			Email:  identity.Email,
			Name:   identity.Name,
			Role:   string(identity.Role),
			Source: source,
		})
		ctx = obscontext.WithActor(ctx, identity.Email, string(identity.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

// RequireMinRole refuses callers below min. The runtime config may raise the
// minimum of a route, keyed "METHOD /full/path"; it never lowers it.
func (s *Server) RequireMinRole(min authorization.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		required := s.effectiveRole(c.Request.Method, c.FullPath(), min)
		if err := s.authzSvc.Authorize(c.Request.Context(), identity.Role, required); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) effectiveRole(method, route string, min authorization.Role) authorization.Role {
	if s.runtime == nil {
		return min
	}
	key := method + " " + route
	// viper lower-cases map keys
	for k, override := range s.runtime.Get().RouteRoles {
		if !strings.EqualFold(strings.TrimSpace(k), key) {
			continue
		}
		if role, ok := authorization.ParseRole(override); ok {
			return authorization.Max(min, role)
		}
	}
	return min
}

func identityFromContext(c *gin.Context) (*authdomain.Identity, bool) {
	value, ok := c.Get(contextIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*authdomain.Identity)
	return identity, ok && identity != nil
}
