package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dinglou/internal/models"
	"dinglou/internal/settings"
	"dinglou/internal/utils"
)

// OverrideKind 区分两张分组覆盖表
type OverrideKind string

const (
	KindManual   OverrideKind = "manual"
	KindAbsorber OverrideKind = "absorber"
)

// 解析结果缓存 1 小时
const resolverCacheTTL = time.Hour

// SettingsResolver 按用户组解析 bump 设置。
//
// 解析顺序：用户所属分组按 Priority 降序（同优先级按 ID 降序），
// 第一个定义了该键的覆盖生效；都没有时回退到全局默认值。
//
// 缓存为单层：所有键都带一个代数（generation）前缀，ClearCache 原子递增
// 代数即让全部旧条目立即失效（旧条目靠 LRU/TTL 自然淘汰）。
// 相同分组组合的用户共享缓存条目。
type SettingsResolver struct {
	store *settings.Store
	cache *utils.GlobalCache
	gen   atomic.Uint64
}

var (
	resolverInstance *SettingsResolver
	resolverOnce     sync.Once
)

// GetSettingsResolver 获取单例解析器
func GetSettingsResolver() *SettingsResolver {
	resolverOnce.Do(func() {
		resolverInstance = NewSettingsResolver(settings.GetStore(), utils.GetCache())
	})
	return resolverInstance
}

// NewSettingsResolver 构造解析器（测试可传入独立缓存）
func NewSettingsResolver(store *settings.Store, cache *utils.GlobalCache) *SettingsResolver {
	return &SettingsResolver{store: store, cache: cache}
}

// GetCooldown 手动顶帖冷却小时数（-1 禁用，0 不限）
func (s *SettingsResolver) GetCooldown(user *models.User) int {
	return s.resolveForUser(user, KindManual, "cooldown", settings.KeyManualCooldownHours)
}

// GetDailyQuota 每日顶帖配额（-1 禁用，0 不限）
func (s *SettingsResolver) GetDailyQuota(user *models.User) int {
	return s.resolveForUser(user, KindManual, "daily", settings.KeyOwnerDailyQuota)
}

// GetWeeklyQuota 每周顶帖配额（-1 禁用，0 不限）
func (s *SettingsResolver) GetWeeklyQuota(user *models.User) int {
	return s.resolveForUser(user, KindManual, "weekly", settings.KeyOwnerWeeklyQuota)
}

// GetThreshold 吸收器阈值小时数。吸收器没有 -1 语义，负值一律钳为 0（0 = 绕过）。
func (s *SettingsResolver) GetThreshold(user *models.User) int {
	value := s.resolveForUser(user, KindAbsorber, "threshold", settings.KeyThresholdHours)
	if value < 0 {
		return 0
	}
	return value
}

// IsBumpDisabled 三项手动顶帖设置任一为 -1 即整体禁用
func (s *SettingsResolver) IsBumpDisabled(user *models.User) bool {
	return s.GetCooldown(user) == -1 ||
		s.GetDailyQuota(user) == -1 ||
		s.GetWeeklyQuota(user) == -1
}

// HasUnlimitedBumps 每日每周配额都为 0
func (s *SettingsResolver) HasUnlimitedBumps(user *models.User) bool {
	return s.GetDailyQuota(user) == 0 && s.GetWeeklyQuota(user) == 0
}

// CanBypassAbsorber 分组覆盖把阈值设为 0 时绕过吸收器
func (s *SettingsResolver) CanBypassAbsorber(user *models.User) bool {
	return s.GetThreshold(user) == 0
}

// CanModerateBumps 是否为 bump 版主（可顶任何讨论，不受冷却配额约束）
func (s *SettingsResolver) CanModerateBumps(user *models.User) bool {
	moderatorGroups := s.store.GetIDList(settings.KeyModeratorGroups)
	// 未配置任何分组时没有人是版主
	if len(moderatorGroups) == 0 {
		return false
	}
	return intersects(moderatorGroups, user.GroupIDs())
}

// CanBypassAbsorberGlobally 绕过分组的成员永远不受吸收器影响，
// 与阈值覆盖（threshold: 0）是两条独立通道。
func (s *SettingsResolver) CanBypassAbsorberGlobally(user *models.User) bool {
	bypassGroups := s.store.GetIDList(settings.KeyAbsorberBypassGroups)
	if len(bypassGroups) == 0 {
		return false
	}
	return intersects(bypassGroups, user.GroupIDs())
}

// ResolvedSettings 单次调用使用的不可变设置快照
type ResolvedSettings struct {
	CooldownHours  int
	DailyQuota     int
	WeeklyQuota    int
	ThresholdHours int
	IsModerator    bool
	BypassAbsorber bool
	Disabled       bool
}

// Snapshot 一次性解析出决策引擎需要的全部值
func (s *SettingsResolver) Snapshot(user *models.User) ResolvedSettings {
	cooldown := s.GetCooldown(user)
	daily := s.GetDailyQuota(user)
	weekly := s.GetWeeklyQuota(user)
	return ResolvedSettings{
		CooldownHours:  cooldown,
		DailyQuota:     daily,
		WeeklyQuota:    weekly,
		ThresholdHours: s.GetThreshold(user),
		IsModerator:    s.CanModerateBumps(user),
		BypassAbsorber: s.CanBypassAbsorberGlobally(user),
		Disabled:       cooldown == -1 || daily == -1 || weekly == -1,
	}
}

// ClearCache 设置变更后调用。递增代数让所有解析缓存立即失效。
func (s *SettingsResolver) ClearCache() {
	s.gen.Add(1)
}

// resolveForUser 解析单个设置值
func (s *SettingsResolver) resolveForUser(user *models.User, kind OverrideKind, key, fallbackKey string) int {
	// 缓存键：代数 + 排序后的分组组合 + 覆盖表 + 键
	ids := user.GroupIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	cacheKey := fmt.Sprintf("bump:g%d:groups:%s:%s:%s", s.gen.Load(), strings.Join(parts, ","), kind, key)

	value := s.cache.Remember(cacheKey, resolverCacheTTL, func() interface{} {
		overrides := s.groupOverrides(kind)

		// 按优先级降序找第一个定义了该键的分组覆盖
		groups := make([]models.Group, len(user.Groups))
		copy(groups, user.Groups)
		sort.Slice(groups, func(i, j int) bool {
			if groups[i].Priority != groups[j].Priority {
				return groups[i].Priority > groups[j].Priority
			}
			return groups[i].ID > groups[j].ID
		})
		for _, g := range groups {
			if groupMap, ok := overrides[g.ID]; ok {
				if v, ok := groupMap[key]; ok {
					return v
				}
			}
		}

		// 回退到全局默认
		return s.store.GetInt(fallbackKey, 0)
	})

	result, _ := value.(int)
	return result
}

// groupOverrides 加载并解析某张覆盖表。
// JSON 非法时按空表处理（回退全局默认），非数字分组键忽略。
func (s *SettingsResolver) groupOverrides(kind OverrideKind) map[uint]map[string]int {
	settingKey := settings.KeyGroupOverridesManual
	if kind == KindAbsorber {
		settingKey = settings.KeyGroupOverridesAbsorber
	}
	raw := s.store.Get(settingKey, "{}")

	var parsed map[string]map[string]json.Number
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Printf("bump: malformed group overrides for %s, falling back to defaults", kind)
		return nil
	}

	overrides := make(map[uint]map[string]int, len(parsed))
	for groupKey, values := range parsed {
		groupID, err := strconv.ParseUint(groupKey, 10, 64)
		if err != nil {
			// 只接受数字分组键
			continue
		}
		m := make(map[string]int, len(values))
		for k, v := range values {
			if n, err := v.Int64(); err == nil {
				m[k] = int(n)
			}
		}
		overrides[uint(groupID)] = m
	}
	return overrides
}

// intersects 两个 ID 列表是否有交集
func intersects(a, b []uint) bool {
	set := make(map[uint]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
