package models

import (
	"time"
)

// Discussion 讨论主题。列表页按 LastPostedAt 倒序排列，
// 吸收器和手动顶帖都是通过改写 LastPosted* 字段来控制排序位置。
//
// LastBumpedAt 记录最近一次成功的顶帖时间（手动顶帖或通过吸收器的回复顶帖）。
// 一旦写入只会向后推进，吸收器拦截回复时不会改动它。
type Discussion struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	User             User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Title            string     `gorm:"not null" json:"title"`
	Slug             string     `gorm:"size:200;index" json:"slug"`
	Tags             []Tag      `gorm:"many2many:discussion_tags;" json:"tags"`
	CommentCount     int        `gorm:"default:0" json:"comment_count"`
	LastPostedAt     time.Time  `gorm:"index" json:"last_posted_at"`
	LastPostedUserID uint       `json:"last_posted_user_id"`
	LastPostID       uint       `json:"last_post_id"`
	LastPostNumber   int        `json:"last_post_number"`
	LastBumpedAt     *time.Time `json:"last_bumped_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TagIDs 返回讨论所属标签的 ID 列表
func (d *Discussion) TagIDs() []uint {
	ids := make([]uint, 0, len(d.Tags))
	for _, t := range d.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}
