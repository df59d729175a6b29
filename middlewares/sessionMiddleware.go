package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware validates the bearer (or "token" header) JWT and puts
// the user on the request context. Requests without a valid token get 401.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			utils.ErrorStatus(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := utils.JwtValidate(token)
		if err != nil || claims.ID <= 0 {
			utils.ErrorStatus(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetUsernameInContext(ctx, claims.Username)
		ctx = utils.SetUserNameInContext(ctx, claims.Name)
		ctx = utils.SetUserRoleInContext(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const bearer = "Bearer "
	if len(auth) > len(bearer) && strings.EqualFold(auth[:len(bearer)], bearer) {
		return strings.TrimSpace(auth[len(bearer):])
	}
	return strings.TrimSpace(r.Header.Get("token"))
}
