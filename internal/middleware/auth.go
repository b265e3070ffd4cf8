package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"TownSquare/internal/pkg"
	"TownSquare/internal/repository/redis"
	"TownSquare/internal/service"
)

const ContextCallerKey = "caller"

// authenticate 解析 Bearer token 并与 redis 中的 token 比对
func authenticate(c *gin.Context, jwt *pkg.TokenManager, tokens *redis.TokenRepository) (service.Caller, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return service.Caller{}, "missing authorization header"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return service.Caller{}, "invalid authorization format"
	}
	tokenStr := parts[1]

	claims, err := jwt.ParseAccess(tokenStr)
	if err != nil {
		return service.Caller{}, "invalid or expired token"
	}

	// redis校验是否是正确的token
	origin, err := tokens.GetUserToken(c.Request.Context(), claims.UserID)
	if err != nil || origin != tokenStr {
		return service.Caller{}, "account has been logged in elsewhere"
	}

	// 校验通过后更新过期时间
	_ = tokens.ExtendUserToken(c.Request.Context(), claims.UserID)

	return service.Caller{ID: claims.UserID, Role: claims.Role, Name: claims.Name}, ""
}

// AuthMiddleware 必须登录
func AuthMiddleware(jwt *pkg.TokenManager, tokens *redis.TokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, msg := authenticate(c, jwt, tokens)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": msg, "redirect": LoginPath})
			return
		}
		c.Set(ContextCallerKey, caller)
		c.Next()
	}
}

// OptionalAuth 有合法 token 就注入调用者，否则按匿名处理
func OptionalAuth(jwt *pkg.TokenManager, tokens *redis.TokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller, msg := authenticate(c, jwt, tokens); msg == "" {
			c.Set(ContextCallerKey, caller)
		}
		c.Next()
	}
}

const LoginPath = "/api/user/login"

func CallerFrom(c *gin.Context) service.Caller {
	if v, ok := c.Get(ContextCallerKey); ok {
		if caller, ok := v.(service.Caller); ok {
			return caller
		}
	}
	return service.Caller{}
}
