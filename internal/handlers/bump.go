package handlers

import (
	"errors"
	"net/http"
	"time"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/services"
	"dinglou/internal/settings"
	"dinglou/internal/utils"

	"github.com/gin-gonic/gin"
)

type BumpHandler struct {
	service  *services.BumpService
	repo     *services.BumpRepository
	resolver *services.SettingsResolver
	store    *settings.Store
}

func NewBumpHandler() *BumpHandler {
	return &BumpHandler{
		service:  services.GetBumpService(),
		repo:     services.GetBumpRepository(),
		resolver: services.GetSettingsResolver(),
		store:    settings.GetStore(),
	}
}

// ManualBump POST /api/manual-bump/:id
func (h *BumpHandler) ManualBump(c *gin.Context) {
	currentUser := CurrentUser(c)
	id := utils.StringToUint(c.Param("id"))

	var discussion models.Discussion
	if err := db.DB.Preload("Tags").First(&discussion, id).Error; err != nil {
		JSONError(c, http.StatusNotFound, "讨论不存在")
		return
	}

	if err := h.service.ManualBump(currentUser, &discussion); err != nil {
		var denied *services.BumpDenied
		if errors.As(err, &denied) {
			status := http.StatusUnprocessableEntity
			switch denied.Reason {
			case services.DenyFeatureDisabled, services.DenyTagNotAllowed, services.DenyPermissionDenied:
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{"error": denied.Error(), "reason": denied.Reason})
			return
		}
		JSONError(c, http.StatusInternalServerError, "顶帖失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"discussion": discussion,
		"bump":       h.bumpAttributes(currentUser, &discussion),
	})
}

// bumpAttributes 讨论响应里附带的顶帖信息：权限、时间、配额用量
func (h *BumpHandler) bumpAttributes(actor *models.User, discussion *models.Discussion) gin.H {
	attrs := gin.H{
		"canBump":      h.service.CanBump(actor, discussion),
		"lastBumpedAt": discussion.LastBumpedAt,
	}

	if last := h.repo.LastManualBump(actor.ID, discussion.ID); last != nil {
		attrs["lastManualBumpedAt"] = last.BumpedAt
	} else {
		attrs["lastManualBumpedAt"] = nil
	}

	resolved := h.resolver.Snapshot(actor)
	attrs["bumpCooldownHours"] = resolved.CooldownHours
	attrs["canModerateBumps"] = resolved.IsModerator
	attrs["isBumpDisabled"] = resolved.Disabled

	// 被禁用或版主不受配额约束
	if resolved.Disabled || resolved.IsModerator {
		attrs["dailyBumpQuota"] = nil
		attrs["weeklyBumpQuota"] = nil
		return attrs
	}

	if resolved.DailyQuota > 0 || resolved.WeeklyQuota > 0 {
		counts := h.repo.QuotaCounts(actor.ID)
		attrs["dailyBumpQuota"] = quotaInfo(resolved.DailyQuota, counts.Daily)
		attrs["weeklyBumpQuota"] = quotaInfo(resolved.WeeklyQuota, counts.Weekly)
	} else {
		attrs["dailyBumpQuota"] = nil
		attrs["weeklyBumpQuota"] = nil
	}

	return attrs
}

func quotaInfo(limit int, used int64) gin.H {
	if limit <= 0 {
		return nil
	}
	remaining := int64(limit) - used
	if remaining < 0 {
		remaining = 0
	}
	return gin.H{"used": used, "limit": limit, "remaining": remaining}
}

// Stats GET /api/bump/stats（管理员）
func (h *BumpHandler) Stats(c *gin.Context) {
	recent := h.repo.RecentBumps(10)

	recentList := make([]gin.H, 0, len(recent))
	for _, record := range recent {
		recentList = append(recentList, gin.H{
			"id":               record.ID,
			"discussion_id":    record.DiscussionID,
			"discussion_title": record.Discussion.Title,
			"discussion_slug":  record.Discussion.Slug,
			"user_id":          record.UserID,
			"username":         record.User.Username,
			"type":             "manual", // 流水只记录手动顶帖
			"created_at":       record.BumpedAt,
		})
	}

	var lastBumpDate *time.Time
	if len(recent) > 0 {
		lastBumpDate = &recent[0].BumpedAt
	}

	c.JSON(http.StatusOK, gin.H{
		"total_bumps":     h.repo.TotalBumpCount(),
		"today_bumps":     h.repo.DailyBumpCount(),
		"week_bumps":      h.repo.WeeklyBumpCount(),
		"absorber_active": h.store.GetBool(settings.KeyEnableAbsorber, false),
		"last_bump_date":  lastBumpDate,
		"recent_bumps":    recentList,
	})
}

// ClearCache POST /api/bump/clear-cache（管理员）
// 清解析器、配额和统计缓存。部分失败也返回成功，解析器缓存一定已失效。
func (h *BumpHandler) ClearCache(c *gin.Context) {
	h.service.ClearAllCaches()
	c.Status(http.StatusNoContent)
}

// UpdateSettings POST /api/bump/settings（管理员）
// 保存设置后立即清缓存，让新值生效
func (h *BumpHandler) UpdateSettings(c *gin.Context) {
	var payload map[string]string
	if err := c.ShouldBindJSON(&payload); err != nil {
		JSONError(c, http.StatusBadRequest, "请求格式错误")
		return
	}

	allowed := settings.Defaults()
	for key, value := range payload {
		if _, ok := allowed[key]; !ok {
			JSONError(c, http.StatusBadRequest, "未知的设置项: "+key)
			return
		}
		if err := h.store.Set(key, value); err != nil {
			JSONError(c, http.StatusInternalServerError, "保存失败")
			return
		}
	}

	h.service.ClearAllCaches()
	c.Status(http.StatusNoContent)
}
