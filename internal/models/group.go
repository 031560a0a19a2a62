package models

import (
	"time"
)

// Group 用户组。Priority 决定设置覆盖的解析顺序：
// 数值越大优先级越高，同优先级时 ID 较大者优先。
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Priority  int       `gorm:"default:0;not null" json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}
