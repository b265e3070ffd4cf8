package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"TownSquare/internal/middleware"
	"TownSquare/internal/pkg"
	"TownSquare/internal/service"
)

// fail 把 service 层错误映射为 HTTP 状态码，未知错误记日志并返回 500
func fail(c *gin.Context, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error(), "redirect": middleware.LoginPath})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, pkg.ErrRefreshExpired),
		errors.Is(err, pkg.ErrRefreshInvalid),
		errors.Is(err, pkg.ErrTokenParseFailure):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"msg": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"msg": "validation failed", "errors": verr.Fields})
	default:
		_ = c.Error(err)
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Uint64("user_id", middleware.CallerFrom(c).ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
	}
}

// failWithInput 校验失败时把提交的内容原样带回，方便前端回填表单
func failWithInput(c *gin.Context, logger *zap.Logger, err error, input any) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"msg": "validation failed", "errors": verr.Fields, "input": input})
		return
	}
	fail(c, logger, err)
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"msg": "not found"})
		return 0, false
	}
	return id, true
}
