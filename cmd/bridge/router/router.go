package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"contextbase/cmd/bridge/handlers"
	"contextbase/cmd/bridge/middleware"
)

// New 는 브리지 API 라우트를 등록한 엔진을 만든다.
func New(svc handlers.ChatService, notes handlers.NotificationSource) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestTrace())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/state", handlers.StateHandler(svc))
		api.GET("/events", handlers.StreamHandler(svc))
		api.GET("/notifications", handlers.NotificationsHandler(notes))

		api.POST("/active", handlers.SelectChatHandler(svc))

		api.POST("/chats/refresh", handlers.RefreshChatsHandler(svc))
		api.POST("/chats", handlers.CreateChatHandler(svc))
		api.PATCH("/chats/:id", handlers.RenameChatHandler(svc))
		api.DELETE("/chats/:id", handlers.DeleteChatHandler(svc))
		api.GET("/chats/:id/messages", handlers.ListMessagesHandler(svc))
		api.POST("/chats/:id/messages", handlers.SendMessageHandler(svc))
	}

	return r
}

// WithCORS 는 브라우저 UI 가 다른 origin 에서 붙을 수 있도록 CORS 를 씌운다.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}).Handler(h)
}
