package settings

import (
	"encoding/json"
	"fmt"
	"log"

	"dinglou/internal/db"
	"dinglou/internal/models"
)

// Seed 写入缺省设置，并为管理员组预置覆盖示例：
// 管理员无冷却无配额、绕过吸收器、具备 bump 版主身份。
// 已存在的键不覆盖。
func Seed() {
	var count int64
	db.DB.Model(&models.Setting{}).Count(&count)
	if count > 0 {
		log.Println("Settings already seeded, skipping")
		return
	}

	defaults := Defaults()

	// 管理员组的默认覆盖
	var admin models.Group
	if err := db.DB.Order("priority desc").First(&admin).Error; err == nil {
		gid := fmt.Sprintf("%d", admin.ID)

		manual, _ := json.Marshal(map[string]map[string]int{
			gid: {"cooldown": 0, "daily": 0, "weekly": 0},
		})
		absorber, _ := json.Marshal(map[string]map[string]int{
			gid: {"threshold": 0},
		})
		moderators, _ := json.Marshal([]string{gid})

		defaults[KeyGroupOverridesManual] = string(manual)
		defaults[KeyGroupOverridesAbsorber] = string(absorber)
		defaults[KeyModeratorGroups] = string(moderators)
	}

	for key, value := range defaults {
		if err := db.DB.Create(&models.Setting{Key: key, Value: value}).Error; err != nil {
			log.Printf("Failed to seed setting %s: %v", key, err)
		}
	}
	log.Println("Default settings created successfully")
}
