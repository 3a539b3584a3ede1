package db

import "time"

// 广播历史表
type BroadcastRecord struct {
	ID        uint      `gorm:"primaryKey"`
	JobID     string    `gorm:"type:varchar(64);index"`
	Kind      string    `gorm:"type:varchar(16)"` // text / audio
	Content   string    `gorm:"type:text"`        // 文本内容或音频路径
	Targets   string    `gorm:"type:text"`        // 逗号分隔的目标名
	Rooms     string    `gorm:"type:text"`        // 逗号分隔的房间号
	Status    string    `gorm:"type:varchar(16)"` // completed / failed / stopped
	Detail    string    `gorm:"type:text"`
	StartedAt time.Time `gorm:"type:datetime"`
	EndedAt   time.Time `gorm:"type:datetime"`
	Duration  float64
}

// 定时广播表
type ScheduleEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"type:varchar(128)"`
	Kind      string `gorm:"type:varchar(16)"` // text / audio
	Text      string `gorm:"type:text"`
	Lang      string `gorm:"type:varchar(16)"`
	AudioPath string `gorm:"type:varchar(512)"`
	Targets   string `gorm:"type:text"`        // 逗号分隔的目标名
	FireTime  string `gorm:"type:varchar(8)"`  // HH:MM
	Weekdays  string `gorm:"type:varchar(32)"` // 逗号分隔，1=周一 ... 7=周日
	Enabled   bool
	LastFired time.Time `gorm:"type:datetime"`
}

// 设备名映射表：特殊教室名 -> 矩阵坐标
type DeviceName struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"type:varchar(64);uniqueIndex"`
	Row  int
	Col  int
}
