package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"dinglou/internal/db"
	"dinglou/internal/models"
	"dinglou/internal/settings"
	"dinglou/internal/utils"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 每个用例一个独立的内存库，替换全局 db.DB
func setupTestDB(t *testing.T) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	old := db.DB
	db.DB = gdb
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		db.DB = old
	})
}

func newTestStore(t *testing.T) *settings.Store {
	t.Helper()
	store := settings.GetStore()
	for key, value := range settings.Defaults() {
		if err := store.Set(key, value); err != nil {
			t.Fatalf("Failed to seed setting %s: %v", key, err)
		}
	}
	return store
}

func createGroup(t *testing.T, name string, priority int) models.Group {
	t.Helper()
	group := models.Group{Name: name, Priority: priority}
	if err := db.DB.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	return group
}

func createUser(t *testing.T, username string, groups ...models.Group) *models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
		Groups:   groups,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return &user
}

func createDiscussion(t *testing.T, owner *models.User, createdAt time.Time, tags ...models.Tag) *models.Discussion {
	t.Helper()
	discussion := models.Discussion{
		UserID:       owner.ID,
		Title:        "测试讨论",
		Tags:         tags,
		CreatedAt:    createdAt,
		LastPostedAt: createdAt,
	}
	if err := db.DB.Create(&discussion).Error; err != nil {
		t.Fatalf("Failed to create discussion: %v", err)
	}
	return &discussion
}

func createComment(t *testing.T, discussion *models.Discussion, author *models.User, number int, createdAt time.Time) *models.Post {
	t.Helper()
	post := models.Post{
		DiscussionID: discussion.ID,
		UserID:       author.ID,
		Number:       number,
		Type:         models.PostTypeComment,
		Content:      "测试回复",
		CreatedAt:    createdAt,
	}
	if err := db.DB.Create(&post).Error; err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	return &post
}

func createBumpRecord(t *testing.T, user *models.User, discussion *models.Discussion, bumpedAt time.Time) {
	t.Helper()
	record := models.BumpRecord{
		UserID:       user.ID,
		DiscussionID: discussion.ID,
		BumpedAt:     bumpedAt,
	}
	if err := db.DB.Create(&record).Error; err != nil {
		t.Fatalf("Failed to create bump record: %v", err)
	}
}

func reloadDiscussion(t *testing.T, id uint) *models.Discussion {
	t.Helper()
	var discussion models.Discussion
	if err := db.DB.First(&discussion, id).Error; err != nil {
		t.Fatalf("Failed to reload discussion: %v", err)
	}
	return &discussion
}

// sameTime 跨驱动的时间比较，精确到秒
func sameTime(a, b time.Time) bool {
	return a.Unix() == b.Unix()
}

func newTestResolver(t *testing.T, store *settings.Store) *SettingsResolver {
	t.Helper()
	return NewSettingsResolver(store, utils.NewCache(500))
}
