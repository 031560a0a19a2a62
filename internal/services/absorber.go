package services

import (
	"log"
	"sync"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/settings"
)

// AbsorberService 顶帖吸收器。
//
// 新讨论的早期回复会把讨论顶到列表顶部，吸收器在回复入库后检查
// 讨论年龄（距创建的小时数）是否达到阈值，不达标就把排序字段回退到
// 上一条回复，讨论停留在原位。判断的是讨论年龄而不是距上次顶帖的
// 时间，这样拦截回复时不会吞掉之前的手动顶帖。
type AbsorberService struct {
	resolver *SettingsResolver
	store    *settings.Store
}

var (
	absorberInstance *AbsorberService
	absorberOnce     sync.Once
)

// GetAbsorberService 获取单例服务
func GetAbsorberService() *AbsorberService {
	absorberOnce.Do(func() {
		absorberInstance = NewAbsorberService(GetSettingsResolver(), settings.GetStore())
	})
	return absorberInstance
}

func NewAbsorberService(resolver *SettingsResolver, store *settings.Store) *AbsorberService {
	return &AbsorberService{resolver: resolver, store: store}
}

// HandlePostPosted 新帖入库后同步调用。
// 此时宿主的正常发帖路径已经把 last_posted_* 推进到了新回复；
// 这里的所有改写都是静默写（UpdateColumns，不触发钩子、通知或重算）。
func (s *AbsorberService) HandlePostPosted(post *models.Post) {
	// 只处理评论类型
	if post.Type != models.PostTypeComment {
		return
	}

	var discussion models.Discussion
	if err := db.DB.Preload("Tags").First(&discussion, post.DiscussionID).Error; err != nil {
		return
	}
	var actor models.User
	if err := db.DB.Preload("Groups").First(&actor, post.UserID).Error; err != nil {
		return
	}

	// 检查 1：吸收器开关
	if !s.store.GetBool(settings.KeyEnableAbsorber, false) {
		return
	}

	// 检查 2：绕过分组成员不受吸收器影响
	if s.resolver.CanBypassAbsorberGlobally(&actor) {
		return
	}

	// 检查 3：分组覆盖把阈值设为 0 同样绕过
	thresholdHours := s.resolver.GetThreshold(&actor)
	if thresholdHours == 0 {
		return
	}

	// 检查 4：标签白名单。配置了白名单且讨论不带任何白名单标签时不生效
	allowedTags := s.store.GetIDList(settings.KeyAbsorberTags)
	if len(allowedTags) > 0 && !intersects(allowedTags, discussion.TagIDs()) {
		return
	}

	lastBumpedAt := discussion.LastBumpedAt

	// 特例：从未顶过（首条回复），无条件放行并落下基线
	if lastBumpedAt == nil {
		db.DB.Model(&models.Discussion{}).
			Where("id = ?", discussion.ID).
			UpdateColumn("last_bumped_at", post.CreatedAt)

		log.Printf("bump: first bump allowed, discussion=%d post=%d", discussion.ID, post.ID)
		return
	}

	// 判断讨论年龄，而不是距上次顶帖的时间
	hoursSinceCreation := post.CreatedAt.Sub(discussion.CreatedAt).Hours()

	if hoursSinceCreation >= float64(thresholdHours) {
		// 讨论已足够老，放行，本次回复成为新的顶帖基线
		db.DB.Model(&models.Discussion{}).
			Where("id = ?", discussion.ID).
			UpdateColumn("last_bumped_at", post.CreatedAt)

		log.Printf("bump: allowed, discussion=%d post=%d age=%.1fh threshold=%dh",
			discussion.ID, post.ID, hoursSinceCreation, thresholdHours)
		return
	}

	// 拦截：把排序字段回退到上一条评论
	var previous models.Post
	err := db.DB.Where("discussion_id = ? AND type = ? AND id < ?",
		discussion.ID, models.PostTypeComment, post.ID).
		Order("id desc").
		First(&previous).Error
	if err != nil {
		// 首帖检查之后理论上不会走到这里，兜底回退到创建时间
		db.DB.Model(&models.Discussion{}).
			Where("id = ?", discussion.ID).
			UpdateColumns(map[string]interface{}{"last_posted_at": discussion.CreatedAt})

		log.Printf("bump: blocked, no previous post, discussion=%d post=%d", discussion.ID, post.ID)
		return
	}

	columns := map[string]interface{}{
		"last_posted_user_id": previous.UserID,
		"last_post_id":        previous.ID,
		"last_post_number":    previous.Number,
	}

	if lastBumpedAt.After(previous.CreatedAt) {
		// 手动顶帖保护：last_bumped_at 比上一条评论新，说明中间有手动顶帖，
		// 排序位置停留在顶帖时间而不是上一条评论的时间
		columns["last_posted_at"] = *lastBumpedAt

		log.Printf("bump: blocked but manual bump preserved, discussion=%d post=%d reverted_to=%d",
			discussion.ID, post.ID, previous.ID)
	} else {
		columns["last_posted_at"] = previous.CreatedAt

		log.Printf("bump: blocked and reverted, discussion=%d post=%d age=%.1fh threshold=%dh reverted_to=%d",
			discussion.ID, post.ID, hoursSinceCreation, thresholdHours, previous.ID)
	}

	// 拦截分支永远不改 last_bumped_at
	db.DB.Model(&models.Discussion{}).
		Where("id = ?", discussion.ID).
		UpdateColumns(columns)
}
