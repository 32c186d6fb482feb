package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/nixai/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Files     *FileHandler
	Ask       *AskHandler
	JWTSecret []byte
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/login", middleware.RateLimit(deps.RateLimit), deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	limited := middleware.RateLimit(deps.RateLimit)
	authGroup.GET("/auth/me", deps.Auth.Me)
	authGroup.POST("/upload", limited, deps.Files.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.POST("/ask", limited, deps.Ask.Ask)
	authGroup.GET("/chat-history", deps.Ask.History)
}
