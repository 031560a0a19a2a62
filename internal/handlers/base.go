package handlers

import (
	"dinglou/internal/middleware"
	"dinglou/internal/models"

	"github.com/gin-gonic/gin"
)

// CurrentUser 从上下文取当前登录用户，未登录返回 nil
func CurrentUser(c *gin.Context) *models.User {
	if user, exists := c.Get(middleware.CheckUserKey); exists {
		return user.(*models.User)
	}
	return nil
}

// JSONError 统一的错误响应
func JSONError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}
