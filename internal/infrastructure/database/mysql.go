package database

import (
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 连接
func InitMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("连接 MySQL 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("获取底层 DB 失败: %v", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.User{},
		&model.TaskRun{},
		&model.AdSession{},
		&model.AdPostback{},
		&model.Withdrawal{},
		&model.DeviceAccount{},
		&model.AccountTransaction{},
		&model.OutboxMessage{},
	); err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	seedDemoUser(db)

	DB = db
	log.Println("MySQL 连接成功")
	return db
}

// seedDemoUser 演示账号，方便本地联调，已存在则跳过
func seedDemoUser(db *gorm.DB) {
	var count int64
	db.Model(&model.User{}).Where("id = ?", 1).Count(&count)
	if count > 0 {
		return
	}

	demo := &model.User{
		ID:         1,
		Username:   "abel",
		Balance:    1900,
		AdsWatched: 10,
		DailyAds:   10,
		DailyStamp: model.DayStamp(time.Now()),
	}
	if err := db.Create(demo).Error; err != nil {
		log.Printf("写入演示账号失败: %v", err)
	}
}
