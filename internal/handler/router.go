package handler

import (
	"rewardsystem/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		api.GET("/me", h.Me)
		api.GET("/transactions", h.Transactions)

		api.GET("/tasks", h.ListTasks)
		api.POST("/tasks/:task_id/start", h.StartTask)

		sessions := api.Group("/ad/sessions")
		{
			sessions.GET("/:session_id", h.GetSession)
			sessions.POST("/:session_id/client-done", h.ClientDone)
			sessions.GET("/:session_id/status", h.SessionState)
			sessions.POST("/:session_id/simulate-valued", h.SimulateValued)
		}

		// 广告商回调，GET/POST 都收
		api.GET("/monetag/postback", h.Postback)
		api.POST("/monetag/postback", h.Postback)

		api.POST("/withdraw", h.Withdraw)
		api.GET("/withdraw/history", h.WithdrawHistory)
		api.POST("/account/check", h.AccountCheck)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
