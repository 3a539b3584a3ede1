package db

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{db: DB}
}

// Create 新增定时广播条目
func (r *ScheduleRepository) Create(entry *ScheduleEntry) error {
	return r.db.Create(entry).Error
}

// Update 整条更新
func (r *ScheduleRepository) Update(entry *ScheduleEntry) error {
	result := r.db.Model(&ScheduleEntry{}).Where("id = ?", entry.ID).Updates(map[string]interface{}{
		"name":       entry.Name,
		"kind":       entry.Kind,
		"text":       entry.Text,
		"lang":       entry.Lang,
		"audio_path": entry.AudioPath,
		"targets":    entry.Targets,
		"fire_time":  entry.FireTime,
		"weekdays":   entry.Weekdays,
		"enabled":    entry.Enabled,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("定时广播条目不存在")
	}
	return nil
}

// Delete 删除条目
func (r *ScheduleRepository) Delete(id uint) error {
	result := r.db.Delete(&ScheduleEntry{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("定时广播条目不存在")
	}
	return nil
}

// GetByID 按ID查询
func (r *ScheduleRepository) GetByID(id uint) (*ScheduleEntry, error) {
	var entry ScheduleEntry
	if err := r.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("定时广播条目不存在")
		}
		return nil, err
	}
	return &entry, nil
}

// ListAll 全部条目
func (r *ScheduleRepository) ListAll() ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	err := r.db.Order("fire_time").Find(&entries).Error
	return entries, err
}

// ListEnabled 启用中的条目，调度器每分钟扫描用
func (r *ScheduleRepository) ListEnabled() ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	err := r.db.Where("enabled = ?", true).Find(&entries).Error
	return entries, err
}

// MarkFired 记录触发时刻，同一分钟内不重复触发
func (r *ScheduleRepository) MarkFired(id uint, at time.Time) error {
	return r.db.Model(&ScheduleEntry{}).Where("id = ?", id).
		Update("last_fired", at).Error
}
