package router

import (
	"dinglou/internal/handlers"
	"dinglou/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	// Handlers
	authHandler := handlers.NewAuthHandler()
	discussionHandler := handlers.NewDiscussionHandler()
	bumpHandler := handlers.NewBumpHandler()

	// 公共路由 (Public Routes)
	r.GET("/discussions", discussionHandler.List)       // 讨论列表（按顶帖位置排序）
	r.GET("/discussions/:id", discussionHandler.Detail) // 讨论详情

	r.POST("/signup", authHandler.Register) // 提交注册
	r.POST("/login", authHandler.Login)     // 提交登录
	r.GET("/logout", authHandler.Logout)    // 退出登录

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/discussions", discussionHandler.Create)                  // 发起讨论
		authorized.POST("/discussions/:id/posts", discussionHandler.CreateComment) // 回复（触发吸收器）

		authorized.POST("/api/manual-bump/:id", bumpHandler.ManualBump) // 手动顶帖
	}

	// 管理路由 (Admin Routes)
	admin := r.Group("/api/bump")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/stats", bumpHandler.Stats)              // 顶帖统计
		admin.POST("/clear-cache", bumpHandler.ClearCache)  // 清缓存
		admin.POST("/settings", bumpHandler.UpdateSettings) // 保存设置
	}
}
