package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Degefa-Gomora/evangadiForum1/internal/auth"
	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/response"
)

const identityKey = "identity"

// JWTAuth rejects requests without a valid bearer token and attaches
// the verified identity to the gin context.
func JWTAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Set(log.FieldUserID, identity.UserID)
		c.Set(log.FieldUsername, identity.Username)
		c.Next()
	}
}

// IdentityFrom returns the identity attached by JWTAuth, or nil.
func IdentityFrom(c *gin.Context) *domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, ok := v.(*domain.Identity)
	if !ok {
		return nil
	}
	return identity
}
