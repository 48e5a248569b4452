package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	chatH *ChatHandler,
	feedbackH *FeedbackHandler,
	knowledgeH *KnowledgeHandler,
	healthH *HealthHandler,
	ws gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	// El upgrade de WebSocket escribe sus propios headers.
	if ws != nil {
		r.GET("/ws", ws)
	}

	api := r.Group("/", jsonContentTypeMiddleware())
	api.GET("/healthz", healthH.Health)
	api.POST("/messages", chatH.PostMessage)
	api.GET("/conversations/:clientId", ClientTokenMiddleware(chatH.tokens), chatH.GetConversation)
	api.POST("/feedback", feedbackH.Submit)
	api.GET("/knowledge", knowledgeH.Search)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
