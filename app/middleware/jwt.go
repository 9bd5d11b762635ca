package middleware

import (
	"net/http"
	"strings"

	"subtitle-fusion/app/auth"

	"github.com/gin-gonic/gin"
)

// JWTAuth 强制JWT认证，校验失败时以401终止请求
func JWTAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Authorization 头缺失或格式错误，应为 Bearer {token}")
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "无效的令牌: "+err.Error())
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("is_admin", claims.IsAdmin)
		c.Next()
	}
}

// bearerToken 从 Authorization 头提取 Bearer 令牌
func bearerToken(c *gin.Context) (string, bool) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	return token, ok && token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    401,
		"message": message,
	})
}
