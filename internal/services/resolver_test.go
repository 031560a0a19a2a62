package services

import (
	"encoding/json"
	"fmt"
	"testing"

	"dinglou/internal/settings"
)

func setManualOverrides(t *testing.T, store *settings.Store, overrides map[string]map[string]int) {
	t.Helper()
	raw, err := json.Marshal(overrides)
	if err != nil {
		t.Fatalf("Failed to marshal overrides: %v", err)
	}
	if err := store.Set(settings.KeyGroupOverridesManual, string(raw)); err != nil {
		t.Fatalf("Failed to set overrides: %v", err)
	}
}

func TestResolveHighestPriorityGroupWins(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g1 := createGroup(t, "会员", 0)
	g2 := createGroup(t, "贵宾", 10)
	user := createUser(t, "alice", g1, g2)

	store.Set(settings.KeyManualCooldownHours, "24")
	setManualOverrides(t, store, map[string]map[string]int{
		fmt.Sprintf("%d", g2.ID): {"cooldown": 5},
	})

	resolver := newTestResolver(t, store)
	if got := resolver.GetCooldown(user); got != 5 {
		t.Errorf("Expected cooldown 5 from high priority group, got %d", got)
	}
}

func TestResolveFallsThroughGroupsWithoutKey(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	low := createGroup(t, "会员", 0)
	high := createGroup(t, "贵宾", 10)
	user := createUser(t, "alice", low, high)

	// 高优先级分组没有定义 cooldown，低优先级的覆盖生效
	setManualOverrides(t, store, map[string]map[string]int{
		fmt.Sprintf("%d", high.ID): {"daily": 3},
		fmt.Sprintf("%d", low.ID):  {"cooldown": 8},
	})

	resolver := newTestResolver(t, store)
	if got := resolver.GetCooldown(user); got != 8 {
		t.Errorf("Expected cooldown 8, got %d", got)
	}
	if got := resolver.GetDailyQuota(user); got != 3 {
		t.Errorf("Expected daily quota 3, got %d", got)
	}
}

func TestResolveGlobalFallback(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g := createGroup(t, "会员", 0)
	user := createUser(t, "alice", g)

	store.Set(settings.KeyManualCooldownHours, "24")

	resolver := newTestResolver(t, store)
	if got := resolver.GetCooldown(user); got != 24 {
		t.Errorf("Expected global fallback 24, got %d", got)
	}
}

func TestMalformedOverridesFailOpen(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g := createGroup(t, "会员", 0)
	user := createUser(t, "alice", g)

	store.Set(settings.KeyManualCooldownHours, "24")
	store.Set(settings.KeyGroupOverridesManual, "{not valid json")

	resolver := newTestResolver(t, store)
	if got := resolver.GetCooldown(user); got != 24 {
		t.Errorf("Expected fallback to global on malformed JSON, got %d", got)
	}
}

func TestNonNumericGroupKeysIgnored(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g := createGroup(t, "会员", 0)
	user := createUser(t, "alice", g)

	store.Set(settings.KeyManualCooldownHours, "24")
	store.Set(settings.KeyGroupOverridesManual,
		fmt.Sprintf(`{"bogus":{"cooldown":1},"%d":{"cooldown":5}}`, g.ID))

	resolver := newTestResolver(t, store)
	if got := resolver.GetCooldown(user); got != 5 {
		t.Errorf("Expected 5 with non-numeric key ignored, got %d", got)
	}
}

func TestThresholdClampsNegative(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g := createGroup(t, "会员", 0)
	user := createUser(t, "alice", g)

	// 吸收器没有 -1 语义，负值钳为 0
	store.Set(settings.KeyGroupOverridesAbsorber,
		fmt.Sprintf(`{"%d":{"threshold":-1}}`, g.ID))

	resolver := newTestResolver(t, store)
	if got := resolver.GetThreshold(user); got != 0 {
		t.Errorf("Expected threshold clamped to 0, got %d", got)
	}
	if !resolver.CanBypassAbsorber(user) {
		t.Errorf("Expected clamped threshold to mean bypass")
	}
}

func TestIsBumpDisabled(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g := createGroup(t, "受限", 0)
	user := createUser(t, "alice", g)

	setManualOverrides(t, store, map[string]map[string]int{
		fmt.Sprintf("%d", g.ID): {"weekly": -1},
	})

	resolver := newTestResolver(t, store)
	if !resolver.IsBumpDisabled(user) {
		t.Errorf("Expected bump disabled when any manual setting is -1")
	}
}

func TestClearCacheRoundTrip(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g := createGroup(t, "会员", 0)
	user := createUser(t, "alice", g)

	store.Set(settings.KeyManualCooldownHours, "24")
	resolver := newTestResolver(t, store)

	if got := resolver.GetCooldown(user); got != 24 {
		t.Fatalf("Expected 24, got %d", got)
	}

	// 改设置但不清缓存：旧值仍然命中
	store.Set(settings.KeyManualCooldownHours, "48")
	if got := resolver.GetCooldown(user); got != 24 {
		t.Errorf("Expected stale cached 24 before ClearCache, got %d", got)
	}

	// 清缓存后立即读到新值
	resolver.ClearCache()
	if got := resolver.GetCooldown(user); got != 48 {
		t.Errorf("Expected 48 after ClearCache, got %d", got)
	}
}

func TestCanModerateBumps(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	mods := createGroup(t, "版主", 50)
	plain := createGroup(t, "会员", 0)
	moderator := createUser(t, "mod", mods)
	member := createUser(t, "alice", plain)

	resolver := newTestResolver(t, store)

	// 未配置任何分组时没有人是版主
	if resolver.CanModerateBumps(moderator) {
		t.Errorf("Expected no moderators when no groups configured")
	}

	store.Set(settings.KeyModeratorGroups, fmt.Sprintf(`["%d"]`, mods.ID))
	if !resolver.CanModerateBumps(moderator) {
		t.Errorf("Expected moderator group member to moderate bumps")
	}
	if resolver.CanModerateBumps(member) {
		t.Errorf("Expected plain member not to moderate bumps")
	}
}

func TestCanBypassAbsorberGlobally(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	vip := createGroup(t, "贵宾", 10)
	plain := createGroup(t, "会员", 0)
	vipUser := createUser(t, "vip", vip)
	member := createUser(t, "alice", plain)

	store.Set(settings.KeyAbsorberBypassGroups, fmt.Sprintf(`[%d]`, vip.ID))

	resolver := newTestResolver(t, store)
	if !resolver.CanBypassAbsorberGlobally(vipUser) {
		t.Errorf("Expected bypass group member to bypass absorber")
	}
	if resolver.CanBypassAbsorberGlobally(member) {
		t.Errorf("Expected plain member not to bypass absorber")
	}
}

func TestSnapshot(t *testing.T) {
	setupTestDB(t)
	store := newTestStore(t)

	g := createGroup(t, "会员", 0)
	user := createUser(t, "alice", g)

	store.Set(settings.KeyManualCooldownHours, "12")
	store.Set(settings.KeyOwnerDailyQuota, "2")
	store.Set(settings.KeyOwnerWeeklyQuota, "9")
	store.Set(settings.KeyThresholdHours, "36")

	resolver := newTestResolver(t, store)
	resolved := resolver.Snapshot(user)

	if resolved.CooldownHours != 12 || resolved.DailyQuota != 2 || resolved.WeeklyQuota != 9 {
		t.Errorf("Unexpected snapshot: %+v", resolved)
	}
	if resolved.ThresholdHours != 36 {
		t.Errorf("Expected threshold 36, got %d", resolved.ThresholdHours)
	}
	if resolved.IsModerator || resolved.Disabled || resolved.BypassAbsorber {
		t.Errorf("Expected plain member flags to be false: %+v", resolved)
	}
}
