package handlers

import (
	"net/http"
	"strconv"
	"time"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/services"
	"dinglou/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DiscussionHandler struct {
	absorber *services.AbsorberService
}

func NewDiscussionHandler() *DiscussionHandler {
	return &DiscussionHandler{
		absorber: services.GetAbsorberService(),
	}
}

// List 讨论列表，按 last_posted_at 倒序——顶帖引擎改写的就是这个排序位置
func (h *DiscussionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize := 30

	query := db.DB.Preload("User").Preload("Tags")

	// 可选标签过滤
	if tag := c.Query("tag"); tag != "" {
		query = query.Joins("JOIN discussion_tags ON discussion_tags.discussion_id = discussions.id").
			Joins("JOIN tags ON tags.id = discussion_tags.tag_id").
			Where("tags.name = ?", tag)
	}

	var discussions []models.Discussion
	query.Order("last_posted_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&discussions)

	c.JSON(http.StatusOK, gin.H{"discussions": discussions, "page": page})
}

// Detail 讨论详情及楼层
func (h *DiscussionHandler) Detail(c *gin.Context) {
	id := utils.StringToUint(c.Param("id"))

	var discussion models.Discussion
	if err := db.DB.Preload("User").Preload("Tags").First(&discussion, id).Error; err != nil {
		JSONError(c, http.StatusNotFound, "讨论不存在")
		return
	}

	var posts []models.Post
	db.DB.Preload("User").Where("discussion_id = ?", id).Order("number asc").Find(&posts)

	c.JSON(http.StatusOK, gin.H{"discussion": discussion, "posts": posts})
}

// Create 发起讨论：讨论本体 + 1 楼评论同事务落库，再走吸收器
// （首帖会无条件落下 last_bumped_at 基线）
func (h *DiscussionHandler) Create(c *gin.Context) {
	currentUser := CurrentUser(c)

	title := c.PostForm("title")
	content := c.PostForm("content")
	if title == "" || content == "" {
		JSONError(c, http.StatusBadRequest, "标题和内容不能为空")
		return
	}

	var tags []models.Tag
	if tagIDs := c.PostFormArray("tag_ids"); len(tagIDs) > 0 {
		ids := make([]uint, 0, len(tagIDs))
		for _, s := range tagIDs {
			if id := utils.StringToUint(s); id > 0 {
				ids = append(ids, id)
			}
		}
		db.DB.Where("id IN ?", ids).Find(&tags)
	}

	now := time.Now()
	discussion := models.Discussion{
		UserID:           currentUser.ID,
		Title:            title,
		Tags:             tags,
		CommentCount:     1,
		LastPostedAt:     now,
		LastPostedUserID: currentUser.ID,
		LastPostNumber:   1,
	}

	var post models.Post
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&discussion).Error; err != nil {
			return err
		}

		post = models.Post{
			DiscussionID: discussion.ID,
			UserID:       currentUser.ID,
			Number:       1,
			Type:         models.PostTypeComment,
			Content:      content,
			ContentHTML:  utils.RenderMarkdown(content),
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}

		return tx.Model(&discussion).Update("last_post_id", post.ID).Error
	})
	if err != nil {
		JSONError(c, http.StatusInternalServerError, "发布失败")
		return
	}

	h.absorber.HandlePostPosted(&post)

	c.JSON(http.StatusOK, gin.H{"discussion": discussion})
}

// CreateComment 回复讨论。正常发帖路径先把 last_posted_* 推进到新回复，
// 然后吸收器决定是否回退。
func (h *DiscussionHandler) CreateComment(c *gin.Context) {
	currentUser := CurrentUser(c)
	id := utils.StringToUint(c.Param("id"))

	var discussion models.Discussion
	if err := db.DB.First(&discussion, id).Error; err != nil {
		JSONError(c, http.StatusNotFound, "讨论不存在")
		return
	}

	content := c.PostForm("content")
	if content == "" {
		JSONError(c, http.StatusBadRequest, "内容不能为空")
		return
	}

	var post models.Post
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var number int64
		tx.Model(&models.Post{}).Where("discussion_id = ?", discussion.ID).Count(&number)

		post = models.Post{
			DiscussionID: discussion.ID,
			UserID:       currentUser.ID,
			Number:       int(number) + 1,
			Type:         models.PostTypeComment,
			Content:      content,
			ContentHTML:  utils.RenderMarkdown(content),
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}

		// 宿主的默认顶帖行为：排序位置推进到新回复
		return tx.Model(&discussion).Updates(map[string]interface{}{
			"last_posted_at":      post.CreatedAt,
			"last_posted_user_id": post.UserID,
			"last_post_id":        post.ID,
			"last_post_number":    post.Number,
			"comment_count":       gorm.Expr("comment_count + ?", 1),
		}).Error
	})
	if err != nil {
		JSONError(c, http.StatusInternalServerError, "回复失败")
		return
	}

	h.absorber.HandlePostPosted(&post)

	c.JSON(http.StatusOK, gin.H{"post": post})
}
