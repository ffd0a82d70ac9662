package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

// ContextKeyIdentity is the gin key holding the signed-in domain.Identity.
const ContextKeyIdentity = "identity"

// IdentitySource reports who is signed in. The session provider
// implements it.
type IdentitySource interface {
	Identity() (domain.Identity, bool)
}

// RequireSession rejects the request with 401 unless src has a signed-in
// identity. The identity is stored for GetIdentity and its user ID is added
// to the context logger.
func RequireSession(src IdentitySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := src.Identity()
		if !ok || id.UserID == "" {
			dto.AbortWithCode(c, dto.ErrorCodeUnauthorized, "sign in required")
			return
		}

		c.Set(ContextKeyIdentity, id)
		c.Request = c.Request.WithContext(logging.WithUserID(c.Request.Context(), id.UserID))

		c.Next()
	}
}

// GetIdentity returns the identity stored by RequireSession.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return domain.Identity{}, false
	}

	id, ok := v.(domain.Identity)

	return id, ok
}
