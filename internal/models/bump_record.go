package models

import (
	"time"
)

// BumpRecord 手动顶帖流水，只追加不修改。
// 版主顶帖不计入流水（版主不受配额限制）。
// 两组联合索引分别服务冷却查询（按讨论）和配额查询（按用户）。
type BumpRecord struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index:idx_bump_user_time,priority:1" json:"user_id"`
	User         User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	DiscussionID uint       `gorm:"not null;index:idx_bump_discussion_time,priority:1" json:"discussion_id"`
	Discussion   Discussion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"discussion"`
	BumpedAt     time.Time  `gorm:"not null;index:idx_bump_user_time,priority:2;index:idx_bump_discussion_time,priority:2" json:"bumped_at"`
}

func (BumpRecord) TableName() string {
	return "bump_records"
}
