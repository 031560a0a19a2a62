package handlers

import (
	"net/http"
	"strings"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// createUser 创建新用户的通用函数，默认加入会员组
func (h *AuthHandler) createUser(username, email, password string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: hash,
		Avatar:   utils.GetRandomEmoji(), // 随机 emoji 头像
	}

	var memberGroup models.Group
	if err := db.DB.Order("priority asc").First(&memberGroup).Error; err == nil {
		user.Groups = []models.Group{memberGroup}
	}

	if err := db.DB.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (h *AuthHandler) Register(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	// Extract username from email
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		JSONError(c, http.StatusBadRequest, "邮箱格式不正确")
		return
	}
	username := parts[0]

	if len(password) < 6 {
		JSONError(c, http.StatusBadRequest, "密码至少6位")
		return
	}

	user, err := h.createUser(username, email, password)
	if err != nil {
		JSONError(c, http.StatusConflict, "邮箱已注册")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

func (h *AuthHandler) Login(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	var user models.User
	if err := db.DB.Where("email = ?", email).First(&user).Error; err != nil {
		JSONError(c, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		JSONError(c, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Status(http.StatusNoContent)
}
