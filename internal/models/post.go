package models

import (
	"time"
)

// Post 类型常量。吸收器只关心 comment 类型，其余类型（如系统事件帖）一律忽略。
const (
	PostTypeComment = "comment"
	PostTypeEvent   = "event"
)

type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	DiscussionID uint       `gorm:"not null;index" json:"discussion_id"`
	Discussion   Discussion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"discussion"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	User         User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Number       int        `gorm:"not null" json:"number"` // 楼层号，从 1 开始
	Type         string     `gorm:"size:20;default:'comment';not null" json:"type"`
	Content      string     `gorm:"type:text" json:"content"`
	ContentHTML  string     `gorm:"type:text" json:"content_html"`
	CreatedAt    time.Time  `json:"created_at"`
}
