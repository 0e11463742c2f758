package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notebook/internal/model"
	"github.com/xxxsen/notebook/internal/pkg/errcode"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
	"github.com/xxxsen/notebook/internal/pkg/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextUserKey   = "user"
)

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

func JWTAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "Not authenticated")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			switch {
			case errors.Is(err, appErr.ErrForbidden):
				response.Error(c, errcode.ErrForbidden, err.Error())
			case errors.Is(err, appErr.ErrUnauthorized):
				response.Error(c, errcode.ErrUnauthorized, err.Error())
			default:
				response.Error(c, errcode.ErrInternal, "internal error")
			}
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireSuperuser must run after JWTAuth.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		user, ok := value.(*model.User)
		if !ok || !user.IsSuperuser {
			response.Error(c, errcode.ErrForbidden, "The user doesn't have enough privileges")
			c.Abort()
			return
		}
		c.Next()
	}
}
