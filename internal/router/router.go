package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"TownSquare/internal/handler"
	"TownSquare/internal/middleware"
	"TownSquare/internal/pkg"
	"TownSquare/internal/repository/redis"
	"TownSquare/internal/service"
)

type Deps struct {
	Events        *service.EventService
	RSVPs         *service.RSVPService
	Notifications *service.NotificationService
	Users         *service.UserService
	JWT           *pkg.TokenManager
	Tokens        *redis.TokenRepository
	Location      *time.Location
	Logger        *zap.Logger
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger.Named("http")))

	logger := d.Logger.Named("handler")
	user := handler.NewUserHandler(d.Users, logger)
	event := handler.NewEventHandler(d.Events, d.Location, logger)
	rsvp := handler.NewRSVPHandler(d.RSVPs, logger)
	notify := handler.NewNotificationHandler(d.Notifications, logger)

	auth := middleware.AuthMiddleware(d.JWT, d.Tokens)
	optional := middleware.OptionalAuth(d.JWT, d.Tokens)

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", user.Register)
		userGroup.POST("/login", user.Login)
		userGroup.POST("/logout", auth, user.Logout)
	}

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	r.GET("/api/home", event.Home)
	r.GET("/api/profile", auth, event.Profile)

	// 活动相关接口，匿名可浏览，写操作在 service 层判断登录与权限
	eventGroup := r.Group("/api/events")
	eventGroup.Use(optional)
	{
		eventGroup.GET("", event.List)
		eventGroup.POST("", event.Create)
		eventGroup.GET("/:id", event.Detail)
		eventGroup.GET("/:id/edit", event.EditForm)
		eventGroup.PUT("/:id", event.Update)
		eventGroup.DELETE("/:id", event.Delete)
		eventGroup.POST("/:id/rsvp", rsvp.RSVP)
		eventGroup.DELETE("/:id/rsvp", rsvp.Cancel)
	}

	// 通知相关接口
	notifyGroup := r.Group("/api/notifications")
	notifyGroup.Use(optional)
	{
		notifyGroup.GET("", notify.List)
		notifyGroup.GET("/unread-count", notify.UnreadCount)
		notifyGroup.POST("/read-all", notify.MarkAllAsRead)
		notifyGroup.POST("/:id/read", notify.MarkAsRead)
	}

	return r
}
