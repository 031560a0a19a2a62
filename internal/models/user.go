package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`                           // Hash
	Avatar    string    `gorm:"default:🌱" json:"avatar"`                     // emoji 头像
	Role      string    `gorm:"size:20;default:'user';not null" json:"role"` // user, admin
	Groups    []Group   `gorm:"many2many:user_groups;" json:"groups"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// No DeletedAt for hard delete
}

// IsAdmin 是否为站点管理员（与 bump 版主无关，后者由用户组配置决定）
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// GroupIDs 返回用户所属用户组的 ID 列表
func (u *User) GroupIDs() []uint {
	ids := make([]uint, 0, len(u.Groups))
	for _, g := range u.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}
