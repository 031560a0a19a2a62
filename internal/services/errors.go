package services

import (
	"fmt"
)

// DenyReason 顶帖被拒绝的类型化原因
type DenyReason string

const (
	DenyFeatureDisabled     DenyReason = "feature_disabled"
	DenyTagNotAllowed       DenyReason = "tag_not_allowed"
	DenyPermissionDenied    DenyReason = "permission_denied"
	DenyCooldownActive      DenyReason = "cooldown_active"
	DenyDailyQuotaExceeded  DenyReason = "daily_quota_exceeded"
	DenyWeeklyQuotaExceeded DenyReason = "weekly_quota_exceeded"
)

// BumpDenied 携带拒绝原因及展示所需的附加信息。
// 所有拒绝都是用户可感知、可重试的业务错误，不是系统故障。
type BumpDenied struct {
	Reason         DenyReason
	HoursRemaining int // 仅 CooldownActive
	Limit          int // 仅配额类
}

func (e *BumpDenied) Error() string {
	switch e.Reason {
	case DenyFeatureDisabled:
		return "手动顶帖功能未开启"
	case DenyTagNotAllowed:
		return "该讨论所属标签不允许顶帖"
	case DenyPermissionDenied:
		return "没有权限顶帖"
	case DenyCooldownActive:
		return fmt.Sprintf("冷却中，%d 小时后可再次顶帖", e.HoursRemaining)
	case DenyDailyQuotaExceeded:
		return fmt.Sprintf("已达到每日顶帖上限（%d 次）", e.Limit)
	case DenyWeeklyQuotaExceeded:
		return fmt.Sprintf("已达到每周顶帖上限（%d 次）", e.Limit)
	}
	return "顶帖被拒绝"
}
