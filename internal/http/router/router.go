package router

import (
	"github.com/gin-gonic/gin"

	"devpulse.app/pulse/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, answers handler.AnswerService) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	queryHandler := handler.NewQueryHandler(answers)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/query", queryHandler.Query)
	}
}
