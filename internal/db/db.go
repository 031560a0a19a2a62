package db

import (
	"log"
	"os"

	"dinglou/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=dinglou port=5432 sslmode=disable TimeZone=Asia/Shanghai"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	// Seed initial groups and tags
	seedGroups()
	seedTags()
}

// Migrate 建表，测试也会用它初始化内存库
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Tag{},
		&models.Discussion{},
		&models.Post{},
		&models.BumpRecord{},
		&models.Setting{},
	)
}

func seedGroups() {
	var count int64
	DB.Model(&models.Group{}).Count(&count)
	if count > 0 {
		log.Println("Groups already seeded, skipping")
		return
	}

	// 预设用户组，Priority 决定设置覆盖的优先级
	groups := []models.Group{
		{Name: "管理员", Priority: 100},
		{Name: "版主", Priority: 50},
		{Name: "会员", Priority: 0},
	}

	for _, group := range groups {
		if err := DB.Create(&group).Error; err != nil {
			log.Printf("Failed to create group %s: %v", group.Name, err)
		}
	}
	log.Println("Initial groups created successfully")
}

func seedTags() {
	var count int64
	DB.Model(&models.Tag{}).Count(&count)
	if count > 0 {
		log.Println("Tags already seeded, skipping")
		return
	}

	// 创建预设标签
	tags := []models.Tag{
		{Name: "技术", Description: "技术相关的讨论和分享"},
		{Name: "生活", Description: "生活日常、经验分享"},
		{Name: "交易", Description: "二手交易、求购出售"},
		{Name: "闲聊", Description: "随便聊聊"},
	}

	for _, tag := range tags {
		if err := DB.Create(&tag).Error; err != nil {
			log.Printf("Failed to create tag %s: %v", tag.Name, err)
		}
	}
	log.Println("Initial tags created successfully")
}
