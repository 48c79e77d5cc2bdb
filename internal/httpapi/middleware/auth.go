package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/healme/healme-chat/internal/auth"
	"github.com/healme/healme-chat/internal/common"
)

const IdentityKey = "identity"

func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			common.Abort(c, http.StatusUnauthorized, 40101, "missing token")
			return
		}

		id, err := auth.ParseJWT(strings.TrimPrefix(h, "Bearer "), secret)
		if err != nil {
			common.Abort(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}

		c.Set(IdentityKey, id)
		c.Next()
	}
}

// Identity returns the identity set by AuthRequired.
func Identity(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok
}
