package router

import (
	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/handler"
	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/gin-gonic/gin"
)

func Setup(presaleLogic *logic.PresaleLogic, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "presale-service",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 预售相关路由
		presaleHandler := handler.NewPresaleHandler(presaleLogic)
		presales := v1.Group("/presales")
		{
			presales.POST("", presaleHandler.CreatePresale)
			presales.GET("", presaleHandler.GetPresales)
			presales.GET("/:id", presaleHandler.GetPresale)
			presales.POST("/:id/join", presaleHandler.JoinPresale)
			presales.POST("/:id/withdraw", presaleHandler.WithdrawPresale)
			presales.POST("/:id/refund", presaleHandler.RefundPresale)
			presales.POST("/:id/launch", presaleHandler.LaunchPresale)
		}

		v1.GET("/stats", presaleHandler.GetStats)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
