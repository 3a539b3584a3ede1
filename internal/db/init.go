package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"backend/internal/logger"
)

var Init bool
var SQLDB *sql.DB
var DB *gorm.DB

// Init_DB 打开数据库并迁移表结构，首次启动时写入种子数据
func Init_DB(path string) error {
	if path == "" {
		path = "broadcast.db"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		Init = true
	} else {
		logger.Debug("数据库已存在: %s", path)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层连接失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	DB = db
	SQLDB = sqlDB

	if err := db.AutoMigrate(&BroadcastRecord{}, &ScheduleEntry{}, &DeviceName{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	if Init {
		InitDeviceNames()
	}
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// InitDeviceNames 首次启动时写入特殊教室的默认坐标映射
func InitDeviceNames() {
	var count int64
	DB.Model(&DeviceName{}).Count(&count)
	if count > 0 {
		return
	}

	names := []DeviceName{
		{Name: "操场", Row: 4, Col: 16},
		{Name: "体育馆", Row: 4, Col: 15},
		{Name: "食堂", Row: 4, Col: 14},
		{Name: "报告厅", Row: 4, Col: 13},
	}
	for _, n := range names {
		if err := DB.Create(&n).Error; err != nil {
			logger.Warn("创建设备名映射 %s 失败: %v", n.Name, err)
		} else {
			logger.Info("创建设备名映射: %s -> (%d, %d)", n.Name, n.Row, n.Col)
		}
	}
}
