// Package settings 提供数据库键值配置存储。
// bump 相关的数字设置存字符串化整数，分组/标签列表和分组覆盖存 JSON。
package settings

import (
	"encoding/json"
	"log"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/utils"
)

// 设置键常量
const (
	KeyEnableAbsorber         = "bump.enable-absorber"
	KeyThresholdHours         = "bump.threshold-hours"
	KeyAbsorberTags           = "bump.absorber-tags"
	KeyAbsorberBypassGroups   = "bump.absorber-bypass-groups"
	KeyEnableManualBump       = "bump.enable-manual-bump"
	KeyManualBumpTags         = "bump.manual-bump-tags"
	KeyManualCooldownHours    = "bump.manual-cooldown-hours"
	KeyModeratorGroups        = "bump.moderator-groups"
	KeyOwnerDailyQuota        = "bump.owner-daily-quota"
	KeyOwnerWeeklyQuota       = "bump.owner-weekly-quota"
	KeyGroupOverridesManual   = "bump.group-overrides-manual"
	KeyGroupOverridesAbsorber = "bump.group-overrides-absorber"
)

type Store struct{}

var storeInstance *Store

// GetStore 获取单例设置存储
func GetStore() *Store {
	if storeInstance == nil {
		storeInstance = &Store{}
	}
	return storeInstance
}

// Get 读取设置，不存在时返回默认值
func (s *Store) Get(key, def string) string {
	var setting models.Setting
	if err := db.DB.First(&setting, "key = ?", key).Error; err != nil {
		return def
	}
	return setting.Value
}

// GetInt 读取整数设置
func (s *Store) GetInt(key string, def int) int {
	v := s.Get(key, "")
	if v == "" {
		return def
	}
	return utils.StringToInt(v)
}

// GetBool 读取布尔设置（存储为 "1"/"0"）
func (s *Store) GetBool(key string, def bool) bool {
	v := s.Get(key, "")
	if v == "" {
		return def
	}
	return v == "1" || v == "true"
}

// GetIDList 读取 JSON 数组形式的 ID 列表（如版主分组、标签白名单）。
// 数组元素可能是字符串化的数字，解析失败时按空列表处理。
func (s *Store) GetIDList(key string) []uint {
	raw := s.Get(key, "[]")
	var items []json.Number
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		// 兼容字符串元素的写法 ["1","4"]
		var strs []string
		if err2 := json.Unmarshal([]byte(raw), &strs); err2 != nil {
			log.Printf("settings: malformed id list for %s, treating as empty", key)
			return nil
		}
		ids := make([]uint, 0, len(strs))
		for _, v := range strs {
			if id := utils.StringToUint(v); id > 0 {
				ids = append(ids, id)
			}
		}
		return ids
	}
	ids := make([]uint, 0, len(items))
	for _, n := range items {
		if id := utils.StringToUint(n.String()); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Set 写入设置（upsert）
func (s *Store) Set(key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	return db.DB.Save(&setting).Error
}

// Defaults 返回缺省设置，建库时写入（已存在的键不覆盖）
func Defaults() map[string]string {
	return map[string]string{
		KeyEnableAbsorber:         "1",
		KeyThresholdHours:         "72",
		KeyAbsorberTags:           "[]",
		KeyAbsorberBypassGroups:   "[]",
		KeyEnableManualBump:       "1",
		KeyManualBumpTags:         "[]",
		KeyManualCooldownHours:    "72",
		KeyModeratorGroups:        "[]",
		KeyOwnerDailyQuota:        "0",
		KeyOwnerWeeklyQuota:       "0",
		KeyGroupOverridesManual:   "{}",
		KeyGroupOverridesAbsorber: "{}",
	}
}
