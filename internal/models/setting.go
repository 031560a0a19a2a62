package models

// Setting 站点键值配置。数字类设置存字符串化整数，
// 列表/覆盖类设置存 JSON 字符串。
type Setting struct {
	Key   string `gorm:"primaryKey;size:100" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}
