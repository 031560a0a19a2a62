package services

import (
	"fmt"
	"sync"
	"time"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/utils"

	"gorm.io/gorm"
)

const (
	// 配额计数查询频繁，短缓存
	quotaCacheTTL = 60 * time.Second
	// 管理面板统计允许更久的缓存
	statsCacheTTL = 5 * time.Minute
)

// QuotaCounts 滚动 24 小时 / 7 天内的手动顶帖次数
type QuotaCounts struct {
	Daily  int64
	Weekly int64
}

// BumpRepository 顶帖流水的查询与写入，带缓存
type BumpRepository struct {
	cache *utils.GlobalCache
}

var (
	bumpRepoInstance *BumpRepository
	bumpRepoOnce     sync.Once
)

// GetBumpRepository 获取单例仓库
func GetBumpRepository() *BumpRepository {
	bumpRepoOnce.Do(func() {
		bumpRepoInstance = NewBumpRepository(utils.GetCache())
	})
	return bumpRepoInstance
}

func NewBumpRepository(cache *utils.GlobalCache) *BumpRepository {
	return &BumpRepository{cache: cache}
}

// QuotaCounts 查询用户的日/周顶帖计数，缓存 60 秒。
// 单次扫描同时算出两个窗口，避免扫两遍流水。
func (r *BumpRepository) QuotaCounts(userID uint) QuotaCounts {
	cacheKey := quotaCountsKey(userID)

	value := r.cache.Remember(cacheKey, quotaCacheTTL, func() interface{} {
		return r.queryQuotaCounts(userID)
	})

	counts, _ := value.(QuotaCounts)
	return counts
}

func (r *BumpRepository) queryQuotaCounts(userID uint) QuotaCounts {
	now := time.Now()
	var result struct {
		DailyCount  int64
		WeeklyCount int64
	}
	db.DB.Model(&models.BumpRecord{}).
		Where("user_id = ?", userID).
		Select(
			"COUNT(CASE WHEN bumped_at >= ? THEN 1 END) AS daily_count, COUNT(CASE WHEN bumped_at >= ? THEN 1 END) AS weekly_count",
			now.Add(-24*time.Hour), now.Add(-7*24*time.Hour),
		).
		Scan(&result)

	return QuotaCounts{Daily: result.DailyCount, Weekly: result.WeeklyCount}
}

// LastManualBump 某用户在某讨论上最近一次的手动顶帖。
// 冷却判断需要实时数据，不走缓存。没有记录时返回 nil。
func (r *BumpRepository) LastManualBump(userID, discussionID uint) *models.BumpRecord {
	var record models.BumpRecord
	err := db.DB.Where("user_id = ? AND discussion_id = ?", userID, discussionID).
		Order("bumped_at desc").
		First(&record).Error
	if err != nil {
		return nil
	}
	return &record
}

// CreateBump 在调用方事务内追加一条流水，并做点状失效（只清该用户的配额计数）
func (r *BumpRepository) CreateBump(tx *gorm.DB, userID, discussionID uint, bumpedAt time.Time) error {
	record := models.BumpRecord{
		UserID:       userID,
		DiscussionID: discussionID,
		BumpedAt:     bumpedAt,
	}
	if err := tx.Create(&record).Error; err != nil {
		return err
	}

	r.InvalidateQuotaCache(userID)
	return nil
}

// InvalidateQuotaCache 清除指定用户的配额计数缓存
func (r *BumpRepository) InvalidateQuotaCache(userID uint) {
	r.cache.Delete(quotaCountsKey(userID))
}

// TotalBumpCount 顶帖总次数（管理面板，缓存 5 分钟）
func (r *BumpRepository) TotalBumpCount() int64 {
	value := r.cache.Remember("bump:stats:total", statsCacheTTL, func() interface{} {
		var count int64
		db.DB.Model(&models.BumpRecord{}).Count(&count)
		return count
	})
	count, _ := value.(int64)
	return count
}

// DailyBumpCount 最近 24 小时顶帖次数
func (r *BumpRepository) DailyBumpCount() int64 {
	value := r.cache.Remember("bump:stats:daily", statsCacheTTL, func() interface{} {
		var count int64
		db.DB.Model(&models.BumpRecord{}).
			Where("bumped_at >= ?", time.Now().Add(-24*time.Hour)).
			Count(&count)
		return count
	})
	count, _ := value.(int64)
	return count
}

// WeeklyBumpCount 最近 7 天顶帖次数
func (r *BumpRepository) WeeklyBumpCount() int64 {
	value := r.cache.Remember("bump:stats:weekly", statsCacheTTL, func() interface{} {
		var count int64
		db.DB.Model(&models.BumpRecord{}).
			Where("bumped_at >= ?", time.Now().Add(-7*24*time.Hour)).
			Count(&count)
		return count
	})
	count, _ := value.(int64)
	return count
}

// RecentBumps 最近 N 条流水，带用户和讨论信息（管理面板）
func (r *BumpRepository) RecentBumps(limit int) []models.BumpRecord {
	cacheKey := fmt.Sprintf("bump:stats:recent:%d", limit)
	value := r.cache.Remember(cacheKey, statsCacheTTL, func() interface{} {
		var records []models.BumpRecord
		db.DB.Preload("User").Preload("Discussion").
			Order("bumped_at desc").
			Limit(limit).
			Find(&records)
		return records
	})
	records, _ := value.([]models.BumpRecord)
	return records
}

// InvalidateStatsCache 清除管理面板统计缓存
func (r *BumpRepository) InvalidateStatsCache() {
	r.cache.Delete("bump:stats:total")
	r.cache.Delete("bump:stats:daily")
	r.cache.Delete("bump:stats:weekly")
	for _, limit := range []int{1, 10, 20, 50} {
		r.cache.Delete(fmt.Sprintf("bump:stats:recent:%d", limit))
	}
}

func quotaCountsKey(userID uint) string {
	return fmt.Sprintf("bump:quota-counts:%d", userID)
}
