package services

import (
	"math"
	"sync"
	"time"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/settings"

	"gorm.io/gorm"
)

// BumpService 手动顶帖的许可判定与执行。
//
// CanBump 只做权限层面的廉价检查（功能开关、标签、版主/所有者），
// 冷却和配额只在 ManualBump 真正执行时判定。界面上的"可顶帖"
// 指示因此可能在提交时被配额拒绝，这是有意保留的不对称。
type BumpService struct {
	resolver *SettingsResolver
	repo     *BumpRepository
	store    *settings.Store

	// 同一用户的顶帖请求串行化，关闭"查流水-判定-写流水"的竞态窗口
	mu         sync.Mutex
	actorLocks map[uint]*sync.Mutex
}

var (
	bumpServiceInstance *BumpService
	bumpServiceOnce     sync.Once
)

// GetBumpService 获取单例服务
func GetBumpService() *BumpService {
	bumpServiceOnce.Do(func() {
		bumpServiceInstance = NewBumpService(GetSettingsResolver(), GetBumpRepository(), settings.GetStore())
	})
	return bumpServiceInstance
}

func NewBumpService(resolver *SettingsResolver, repo *BumpRepository, store *settings.Store) *BumpService {
	return &BumpService{
		resolver:   resolver,
		repo:       repo,
		store:      store,
		actorLocks: make(map[uint]*sync.Mutex),
	}
}

func (s *BumpService) actorLock(userID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.actorLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.actorLocks[userID] = lock
	}
	return lock
}

// CanBump 权限检查（不含冷却/配额），用于界面展示
func (s *BumpService) CanBump(actor *models.User, discussion *models.Discussion) bool {
	return s.checkPolicy(actor, discussion) == nil
}

// checkPolicy 步骤：功能开关 → 标签白名单 → 版主放行 → 所有者且未被分组禁用
func (s *BumpService) checkPolicy(actor *models.User, discussion *models.Discussion) *BumpDenied {
	if !s.store.GetBool(settings.KeyEnableManualBump, false) {
		return &BumpDenied{Reason: DenyFeatureDisabled}
	}

	allowedTags := s.store.GetIDList(settings.KeyManualBumpTags)
	if len(allowedTags) > 0 && !intersects(allowedTags, discussion.TagIDs()) {
		return &BumpDenied{Reason: DenyTagNotAllowed}
	}

	// bump 版主可顶任何讨论
	if s.resolver.CanModerateBumps(actor) {
		return nil
	}

	if discussion.UserID == actor.ID && !s.resolver.IsBumpDisabled(actor) {
		return nil
	}

	return &BumpDenied{Reason: DenyPermissionDenied}
}

// ManualBump 完整判定并执行手动顶帖。
// 成功时更新讨论的 last_posted_at / last_bumped_at；
// 非版主额外追加一条流水（版主不计量）。
func (s *BumpService) ManualBump(actor *models.User, discussion *models.Discussion) error {
	lock := s.actorLock(actor.ID)
	lock.Lock()
	defer lock.Unlock()

	if denied := s.checkPolicy(actor, discussion); denied != nil {
		return denied
	}

	now := time.Now()
	isModerator := s.resolver.CanModerateBumps(actor)

	if !isModerator {
		resolved := s.resolver.Snapshot(actor)

		// 冷却：同一用户对同一讨论的上次手动顶帖
		if resolved.CooldownHours > 0 {
			if last := s.repo.LastManualBump(actor.ID, discussion.ID); last != nil {
				elapsed := now.Sub(last.BumpedAt).Hours()
				if elapsed < float64(resolved.CooldownHours) {
					return &BumpDenied{
						Reason:         DenyCooldownActive,
						HoursRemaining: int(math.Ceil(float64(resolved.CooldownHours) - elapsed)),
					}
				}
			}
		}

		// 配额：滚动窗口计数
		if resolved.DailyQuota > 0 || resolved.WeeklyQuota > 0 {
			counts := s.repo.QuotaCounts(actor.ID)

			if resolved.DailyQuota > 0 && counts.Daily >= int64(resolved.DailyQuota) {
				return &BumpDenied{Reason: DenyDailyQuotaExceeded, Limit: resolved.DailyQuota}
			}
			if resolved.WeeklyQuota > 0 && counts.Weekly >= int64(resolved.WeeklyQuota) {
				return &BumpDenied{Reason: DenyWeeklyQuotaExceeded, Limit: resolved.WeeklyQuota}
			}
		}
	}

	// 执行顶帖：时间戳更新和流水追加放在同一事务里
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Discussion{}).
			Where("id = ?", discussion.ID).
			Updates(map[string]interface{}{
				"last_posted_at": now,
				"last_bumped_at": now,
			}).Error; err != nil {
			return err
		}

		if !isModerator {
			return s.repo.CreateBump(tx, actor.ID, discussion.ID, now)
		}
		return nil
	})
	if err != nil {
		return err
	}

	discussion.LastPostedAt = now
	discussion.LastBumpedAt = &now
	return nil
}

// ClearAllCaches 管理员保存设置后调用：清解析器缓存和统计缓存，
// 再整体 Flush 清掉按用户缓存的配额计数。
func (s *BumpService) ClearAllCaches() {
	s.resolver.ClearCache()
	s.repo.InvalidateStatsCache()
	s.repo.cache.Flush()
}
